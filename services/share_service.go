package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"boardgame-recommender/metrics"
	"boardgame-recommender/models"
	"boardgame-recommender/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultShareExpiry = 30 * 24 * time.Hour
	DefaultMaxShares   = 10000
)

// TaskRunner runs best-effort background work. Submit reports false when
// the task could not be queued.
type TaskRunner interface {
	Submit(name string, fn func(context.Context) error) bool
}

// ShareArchiver exports shares before they are deleted.
type ShareArchiver interface {
	Archive(ctx context.Context, shares []models.SharedRecommendationSet) error
}

// CreateShareInput is the payload of a share action.
type CreateShareInput struct {
	Prompt          string                  `json:"prompt" validate:"required,max=1000"`
	Title           *string                 `json:"title" validate:"omitempty,max=120"`
	Recommendations []models.Recommendation `json:"recommendations" validate:"required,min=1,max=10"`
	Metadata        models.ShareMetadata    `json:"metadata"`
}

// CleanupResult summarizes a cleanupExpiredShares run.
type CleanupResult struct {
	Expired  int64 `json:"expired"`
	Evicted  int64 `json:"evicted"`
	Archived int   `json:"archived"`
}

type ShareService struct {
	Store     ShareStore
	Tasks     TaskRunner
	Archive   ShareArchiver
	Clock     clockwork.Clock
	Expiry    time.Duration
	MaxShares int
	logger    *zap.Logger
}

func NewShareService(store ShareStore, tasks TaskRunner, archive ShareArchiver, clock clockwork.Clock, expiry time.Duration, maxShares int, logger *zap.Logger) *ShareService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if expiry <= 0 {
		expiry = DefaultShareExpiry
	}
	if maxShares <= 0 {
		maxShares = DefaultMaxShares
	}
	return &ShareService{
		Store:     store,
		Tasks:     tasks,
		Archive:   archive,
		Clock:     clock,
		Expiry:    expiry,
		MaxShares: maxShares,
		logger:    logger.Named("shares"),
	}
}

// Create persists the set under a fresh short id with zero views.
func (s *ShareService) Create(ctx context.Context, in CreateShareInput) (*models.SharedRecommendationSet, error) {
	now := s.Clock.Now()
	expires := now.Add(s.Expiry)

	var title *string
	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		t := strings.TrimSpace(*in.Title)
		title = &t
	}

	share := &models.SharedRecommendationSet{
		ShareID:         utils.NewShareID(),
		Title:           title,
		Prompt:          strings.TrimSpace(in.Prompt),
		Recommendations: in.Recommendations,
		Metadata:        in.Metadata,
		ViewCount:       0,
		CreatedAt:       now,
		ExpiresAt:       &expires,
	}
	if err := s.Store.Create(ctx, share); err != nil {
		return nil, err
	}
	metrics.SharesCreated.Inc()
	s.logger.Info("share created", zap.String("share_id", share.ShareID), zap.Int("recommendations", len(share.Recommendations)))
	return share, nil
}

// Get returns the share with this read counted. Expired shares are deleted
// and reported as ErrShareExpired. The persisted view count is bumped in
// the background; a failed bump is logged only.
func (s *ShareService) Get(ctx context.Context, id string) (*models.SharedRecommendationSet, error) {
	share, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	if now.Sub(share.CreatedAt) > s.Expiry {
		if _, err := s.Store.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete expired share", zap.String("share_id", id), zap.Error(err))
		}
		return nil, ErrShareExpired
	}

	expires := share.CreatedAt.Add(s.Expiry)
	share.ExpiresAt = &expires
	share.ViewCount++
	metrics.ShareViews.Inc()

	// The bump runs after the caller returns, so it must not hold on to id.
	shareID := share.ShareID
	bump := func(ctx context.Context) error {
		return s.Store.IncrementViews(ctx, shareID)
	}
	if s.Tasks == nil || !s.Tasks.Submit("share_view:"+shareID, bump) {
		s.logger.Warn("view count update dropped", zap.String("share_id", shareID))
	}
	return share, nil
}

// CleanupExpiredShares deletes shares past the expiry window, then trims
// the table to MaxShares by deleting the oldest rows. Rows are archived
// first when an archiver is configured; archive failures do not block the
// deletion.
func (s *ShareService) CleanupExpiredShares(ctx context.Context) (CleanupResult, error) {
	var res CleanupResult

	expired, err := s.Store.CreatedBefore(ctx, s.Clock.Now().Add(-s.Expiry))
	if err != nil {
		return res, err
	}
	if len(expired) > 0 {
		res.Archived += s.archive(ctx, expired)
		n, err := s.Store.Delete(ctx, shareIDs(expired)...)
		if err != nil {
			return res, err
		}
		res.Expired = n
		metrics.SharesExpired.Add(float64(n))
	}

	total, err := s.Store.Count(ctx)
	if err != nil {
		return res, err
	}
	if excess := int(total) - s.MaxShares; excess > 0 {
		oldest, err := s.Store.Oldest(ctx, excess)
		if err != nil {
			return res, err
		}
		res.Archived += s.archive(ctx, oldest)
		n, err := s.Store.Delete(ctx, shareIDs(oldest)...)
		if err != nil {
			return res, err
		}
		res.Evicted = n
	}

	s.logger.Info("share cleanup finished",
		zap.Int64("expired", res.Expired), zap.Int64("evicted", res.Evicted), zap.Int("archived", res.Archived))
	return res, nil
}

func (s *ShareService) archive(ctx context.Context, shares []models.SharedRecommendationSet) int {
	if s.Archive == nil || len(shares) == 0 {
		return 0
	}
	if err := s.Archive.Archive(ctx, shares); err != nil {
		if !errors.Is(err, utils.ErrArchiveDisabled) {
			s.logger.Warn("share archive failed", zap.Int("shares", len(shares)), zap.Error(err))
		}
		return 0
	}
	return len(shares)
}

func shareIDs(shares []models.SharedRecommendationSet) []string {
	ids := make([]string, len(shares))
	for i := range shares {
		ids[i] = shares[i].ShareID
	}
	return ids
}

// ShareURL builds the public link for a share id.
func ShareURL(baseURL, id string) string {
	return fmt.Sprintf("%s/share/%s", strings.TrimSuffix(baseURL, "/"), id)
}
