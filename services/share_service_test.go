package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"boardgame-recommender/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRecs() []models.Recommendation {
	return []models.Recommendation{
		{GameID: models.StringPtr("g1"), Title: "Ticket to Ride", Pitch: "Trains!", WhyItFits: []string{"Light", "Family friendly"}},
		{GameID: models.StringPtr("g3"), Title: "Wingspan", Pitch: "Birds!", WhyItFits: []string{"Gorgeous", "Engine building"}},
	}
}

func newShareFixture(maxShares int) (*ShareService, *memShareStore, *syncTasks, *fakeArchiver, *clockwork.FakeClock) {
	store := newMemShareStore()
	tasks := &syncTasks{}
	arch := &fakeArchiver{}
	clock := clockwork.NewFakeClock()
	svc := NewShareService(store, tasks, arch, clock, DefaultShareExpiry, maxShares, zap.NewNop())
	return svc, store, tasks, arch, clock
}

func TestShareService_CreateThenGet(t *testing.T) {
	svc, store, tasks, _, clock := newShareFixture(0)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateShareInput{
		Prompt:          "  family game night  ",
		Title:           models.StringPtr("Friday picks"),
		Recommendations: sampleRecs(),
		Metadata:        models.ShareMetadata{InterpretedNeeds: []string{"family friendly"}},
	})
	require.NoError(t, err)
	assert.Len(t, created.ShareID, 10)
	assert.Equal(t, int64(0), created.ViewCount)
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, clock.Now().Add(DefaultShareExpiry), *created.ExpiresAt)

	got, err := svc.Get(ctx, created.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "family game night", got.Prompt)
	assert.Equal(t, sampleRecs(), got.Recommendations)
	assert.Equal(t, int64(1), got.ViewCount)
	assert.Equal(t, "Friday picks", *got.Title)

	require.Len(t, tasks.errs, 1)
	assert.NoError(t, tasks.errs[0])
	persisted, _ := store.Get(ctx, created.ShareID)
	assert.Equal(t, int64(1), persisted.ViewCount)
}

func TestShareService_ViewCountOnlyIncreases(t *testing.T) {
	svc, _, _, _, _ := newShareFixture(0)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateShareInput{Prompt: "p", Recommendations: sampleRecs()})
	require.NoError(t, err)

	var last int64
	for range 3 {
		got, err := svc.Get(ctx, created.ShareID)
		require.NoError(t, err)
		assert.Greater(t, got.ViewCount, last)
		last = got.ViewCount
	}
	assert.Equal(t, int64(3), last)
}

func TestShareService_NotFound(t *testing.T) {
	svc, _, _, _, _ := newShareFixture(0)
	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestShareService_ExpiredIsRemovedOnRead(t *testing.T) {
	svc, store, _, _, clock := newShareFixture(0)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateShareInput{Prompt: "p", Recommendations: sampleRecs()})
	require.NoError(t, err)

	clock.Advance(DefaultShareExpiry + time.Second)

	_, err = svc.Get(ctx, created.ShareID)
	assert.ErrorIs(t, err, ErrShareExpired)

	_, err = store.Get(ctx, created.ShareID)
	assert.ErrorIs(t, err, ErrShareNotFound)

	_, err = svc.Get(ctx, created.ShareID)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestShareService_ViewBumpFailureIsNotSurfaced(t *testing.T) {
	store := newMemShareStore()
	tasks := &rejectingTasks{}
	svc := NewShareService(store, tasks, nil, clockwork.NewFakeClock(), 0, 0, zap.NewNop())
	created, err := svc.Create(context.Background(), CreateShareInput{Prompt: "p", Recommendations: sampleRecs()})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ShareID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ViewCount)
}

type rejectingTasks struct{}

func (rejectingTasks) Submit(string, func(context.Context) error) bool { return false }

func TestShareService_CleanupExpiredAndCapped(t *testing.T) {
	svc, store, _, arch, clock := newShareFixture(2)
	ctx := context.Background()

	old, err := svc.Create(ctx, CreateShareInput{Prompt: "old", Recommendations: sampleRecs()})
	require.NoError(t, err)
	clock.Advance(DefaultShareExpiry + time.Hour)

	var fresh []string
	for i := range 3 {
		s, err := svc.Create(ctx, CreateShareInput{Prompt: fmt.Sprintf("fresh %d", i), Recommendations: sampleRecs()})
		require.NoError(t, err)
		fresh = append(fresh, s.ShareID)
		clock.Advance(time.Minute)
	}

	res, err := svc.CleanupExpiredShares(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Expired)
	assert.Equal(t, int64(1), res.Evicted)
	assert.Equal(t, 2, res.Archived)
	assert.ElementsMatch(t, []string{old.ShareID, fresh[0]}, arch.archived)

	n, _ := store.Count(ctx)
	assert.Equal(t, int64(2), n)
	_, err = store.Get(ctx, fresh[2])
	assert.NoError(t, err)
}

func TestShareService_CleanupArchiveFailureStillDeletes(t *testing.T) {
	svc, store, _, arch, clock := newShareFixture(0)
	arch.err = errors.New("bucket unavailable")
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateShareInput{Prompt: "old", Recommendations: sampleRecs()})
	require.NoError(t, err)
	clock.Advance(DefaultShareExpiry + time.Hour)

	res, err := svc.CleanupExpiredShares(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Expired)
	assert.Equal(t, 0, res.Archived)
	n, _ := store.Count(ctx)
	assert.Zero(t, n)
}

func TestShareURL(t *testing.T) {
	assert.Equal(t, "https://games.example/share/abc", ShareURL("https://games.example/", "abc"))
}
