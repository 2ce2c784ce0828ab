package services

import (
	"context"
	"errors"
	"time"

	"boardgame-recommender/marketplace"
	"boardgame-recommender/metrics"
	"boardgame-recommender/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPriceFreshness = 72 * time.Hour
	StorePrimary          = "amazon"
	StoreReference        = "boardgamegeek"
	bulkConcurrency       = 4
)

// PriceLookup is one (game id, title) pair for bulk resolution.
type PriceLookup struct {
	GameID string `json:"gameId"`
	Title  string `json:"title" validate:"required,max=200"`
}

// RefreshResult summarizes a refreshPrices run.
type RefreshResult struct {
	Checked   int `json:"checked"`
	Refreshed int `json:"refreshed"`
	Fallback  int `json:"fallback"`
}

// PriceService resolves prices through the cascade: fresh cache row,
// reference-site link, signed product search, generated search link.
type PriceService struct {
	Store     PriceStore
	Catalog   CatalogStore
	Reference marketplace.ReferenceLookup
	Products  marketplace.ProductSearch
	Clock     clockwork.Clock
	Freshness time.Duration
	logger    *zap.Logger
}

func NewPriceService(store PriceStore, catalog CatalogStore, ref marketplace.ReferenceLookup, products marketplace.ProductSearch, clock clockwork.Clock, freshness time.Duration, logger *zap.Logger) *PriceService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if freshness <= 0 {
		freshness = DefaultPriceFreshness
	}
	return &PriceService{
		Store:     store,
		Catalog:   catalog,
		Reference: ref,
		Products:  products,
		Clock:     clock,
		Freshness: freshness,
		logger:    logger.Named("prices"),
	}
}

// ResolvePrice never fails: when every source comes up empty it returns a
// search-link placeholder tagged as fallback.
func (s *PriceService) ResolvePrice(ctx context.Context, gameID, title string) models.ResolvedPrice {
	if gameID != "" {
		rec, err := s.Store.Latest(ctx, gameID, StorePrimary, StoreReference)
		if err != nil {
			s.logger.Warn("price cache read failed", zap.String("game_id", gameID), zap.Error(err))
		} else if rec != nil && rec.Age(s.Clock.Now()) < s.Freshness {
			metrics.PriceLookups.WithLabelValues(models.PriceSourceCache).Inc()
			return resolved(rec, title, models.PriceSourceCache)
		}
	}
	return s.resolveRemote(ctx, gameID, title)
}

// resolveRemote runs the network tiers of the cascade, skipping the cache.
func (s *PriceService) resolveRemote(ctx context.Context, gameID, title string) models.ResolvedPrice {
	if rp, ok := s.fromReference(ctx, gameID, title); ok {
		metrics.PriceLookups.WithLabelValues(models.PriceSourceAPI).Inc()
		return rp
	}
	if rp, ok := s.fromProducts(ctx, gameID, title); ok {
		metrics.PriceLookups.WithLabelValues(models.PriceSourceAPI).Inc()
		return rp
	}
	metrics.PriceLookups.WithLabelValues(models.PriceSourceFallback).Inc()
	return s.placeholder(gameID, title)
}

func (s *PriceService) fromReference(ctx context.Context, gameID, title string) (models.ResolvedPrice, bool) {
	if s.Reference == nil {
		return models.ResolvedPrice{}, false
	}
	ref, err := s.Reference.Lookup(ctx, title)
	if err != nil {
		s.logLookupFailure("reference", title, err)
		return models.ResolvedPrice{}, false
	}
	rec := &models.PriceRecord{
		ID:         uuid.NewString(),
		GameID:     gameID,
		Store:      StoreReference,
		URL:        ref.URL,
		ExternalID: ref.ID,
		UpdatedAt:  s.Clock.Now(),
	}
	s.persist(ctx, rec)
	return resolved(rec, title, models.PriceSourceAPI), true
}

func (s *PriceService) fromProducts(ctx context.Context, gameID, title string) (models.ResolvedPrice, bool) {
	if s.Products == nil {
		return models.ResolvedPrice{}, false
	}
	p, err := s.Products.Search(ctx, title)
	if err != nil {
		s.logLookupFailure("product", title, err)
		return models.ResolvedPrice{}, false
	}
	rec := &models.PriceRecord{
		ID:         uuid.NewString(),
		GameID:     gameID,
		Store:      StorePrimary,
		Amount:     p.Amount,
		Currency:   p.Currency,
		URL:        p.URL,
		ImageURL:   p.ImageURL,
		ExternalID: p.ASIN,
		UpdatedAt:  s.Clock.Now(),
	}
	s.persist(ctx, rec)
	return resolved(rec, title, models.PriceSourceAPI), true
}

func (s *PriceService) placeholder(gameID, title string) models.ResolvedPrice {
	link := marketplace.SearchLink("", title, "")
	if s.Products != nil {
		link = s.Products.FallbackURL(title)
	}
	return models.ResolvedPrice{
		GameID:    gameID,
		Title:     title,
		Store:     StorePrimary,
		URL:       link,
		Source:    models.PriceSourceFallback,
		UpdatedAt: s.Clock.Now(),
	}
}

// persist is write-through: a failed cache write is logged, not surfaced.
func (s *PriceService) persist(ctx context.Context, rec *models.PriceRecord) {
	if rec.GameID == "" {
		return
	}
	if err := s.Store.Upsert(ctx, rec); err != nil {
		s.logger.Warn("price cache write failed", zap.String("game_id", rec.GameID), zap.Error(err))
	}
}

func (s *PriceService) logLookupFailure(source, title string, err error) {
	if errors.Is(err, marketplace.ErrNotConfigured) || errors.Is(err, marketplace.ErrNoMatch) {
		s.logger.Debug("price source skipped", zap.String("source", source), zap.String("title", title), zap.Error(err))
		return
	}
	s.logger.Warn("price source failed", zap.String("source", source), zap.String("title", title), zap.Error(err))
}

func resolved(rec *models.PriceRecord, title, source string) models.ResolvedPrice {
	return models.ResolvedPrice{
		GameID:    rec.GameID,
		Title:     title,
		Store:     rec.Store,
		Amount:    rec.Amount,
		Currency:  rec.Currency,
		URL:       rec.URL,
		ImageURL:  rec.ImageURL,
		Source:    source,
		UpdatedAt: rec.UpdatedAt,
	}
}

// ResolvePrices resolves each lookup independently. Results keep input
// order. Network calls still serialize on the product client's throttle.
func (s *PriceService) ResolvePrices(ctx context.Context, lookups []PriceLookup) []models.ResolvedPrice {
	out := make([]models.ResolvedPrice, len(lookups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for i, l := range lookups {
		g.Go(func() error {
			out[i] = s.ResolvePrice(gctx, l.GameID, l.Title)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RefreshPrices re-resolves up to limit of the stalest cached prices,
// bypassing the cache tier.
func (s *PriceService) RefreshPrices(ctx context.Context, limit int) (RefreshResult, error) {
	var res RefreshResult
	stale, err := s.Store.Stalest(ctx, s.Clock.Now().Add(-s.Freshness), limit)
	if err != nil {
		return res, err
	}

	for _, rec := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		title := rec.GameID
		if s.Catalog != nil {
			g, err := s.Catalog.Get(ctx, rec.GameID)
			if err != nil {
				s.logger.Warn("refresh: game lookup failed", zap.String("game_id", rec.GameID), zap.Error(err))
				continue
			}
			title = g.Title
		}

		rp := s.resolveRemote(ctx, rec.GameID, title)
		if rp.Source == models.PriceSourceFallback {
			res.Fallback++
			continue
		}
		res.Refreshed++
		metrics.PriceRefreshed.Inc()
	}

	s.logger.Info("price refresh finished",
		zap.Int("checked", res.Checked), zap.Int("refreshed", res.Refreshed), zap.Int("fallback", res.Fallback))
	return res, nil
}

// CleanupStalePrices deletes cached prices older than maxAgeDays.
func (s *PriceService) CleanupStalePrices(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	cutoff := s.Clock.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	n, err := s.Store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("stale prices removed", zap.Int64("deleted", n), zap.Int("max_age_days", maxAgeDays))
	return n, nil
}
