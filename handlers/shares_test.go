package handlers

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"boardgame-recommender/models"
	"boardgame-recommender/services"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// viewStore is a ShareStore that only tracks rows and view bumps.
type viewStore struct {
	mu     sync.Mutex
	rows   map[string]models.SharedRecommendationSet
	bumped []string
}

func (s *viewStore) Create(_ context.Context, sh *models.SharedRecommendationSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sh.ShareID] = *sh
	return nil
}

func (s *viewStore) Get(_ context.Context, id string) (*models.SharedRecommendationSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, services.ErrShareNotFound
	}
	return &row, nil
}

func (s *viewStore) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumped = append(s.bumped, id)
	return nil
}

func (s *viewStore) Delete(context.Context, ...string) (int64, error) { return 0, nil }

func (s *viewStore) CreatedBefore(context.Context, time.Time) ([]models.SharedRecommendationSet, error) {
	return nil, nil
}

func (s *viewStore) Oldest(context.Context, int) ([]models.SharedRecommendationSet, error) {
	return nil, nil
}

func (s *viewStore) Count(context.Context) (int64, error) { return int64(len(s.rows)), nil }

// laterTasks queues tasks and runs them only when drained, after the
// requests that submitted them have finished.
type laterTasks struct {
	fns []func(context.Context) error
}

func (l *laterTasks) Submit(_ string, fn func(context.Context) error) bool {
	l.fns = append(l.fns, fn)
	return true
}

func (l *laterTasks) drain(t *testing.T) {
	t.Helper()
	for _, fn := range l.fns {
		require.NoError(t, fn(context.Background()))
	}
	l.fns = nil
}

func TestGetShare_ViewBumpTargetsRequestedShare(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &viewStore{rows: map[string]models.SharedRecommendationSet{}}
	for _, id := range []string{"aaaaaaaaaa", "bbbbbbbbbb"} {
		store.rows[id] = models.SharedRecommendationSet{ShareID: id, Prompt: "prompt " + id, CreatedAt: clock.Now()}
	}
	tasks := &laterTasks{}
	svc := services.NewShareService(store, tasks, nil, clock, 0, 0, zap.NewNop())

	app := fiber.New()
	app.Get("/api/shares/:id", NewShareHandler(svc, "", zap.NewNop()).Get)

	for _, id := range []string{"aaaaaaaaaa", "bbbbbbbbbb"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/api/shares/"+id, nil), -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	tasks.drain(t)
	assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb"}, store.bumped)
}
