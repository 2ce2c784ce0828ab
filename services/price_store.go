package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boardgame-recommender/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceStore persists cached marketplace prices.
type PriceStore interface {
	// Latest returns the most recently updated record for the game among
	// the given stores, or nil when there is none.
	Latest(ctx context.Context, gameID string, stores ...string) (*models.PriceRecord, error)
	// Upsert inserts or replaces the (game, store) row atomically.
	Upsert(ctx context.Context, rec *models.PriceRecord) error
	// Stalest returns up to limit records last updated before cutoff,
	// oldest first.
	Stalest(ctx context.Context, cutoff time.Time, limit int) ([]models.PriceRecord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type GormPriceStore struct {
	DB *gorm.DB
}

func NewGormPriceStore(db *gorm.DB) *GormPriceStore {
	return &GormPriceStore{DB: db}
}

func (s *GormPriceStore) Latest(ctx context.Context, gameID string, stores ...string) (*models.PriceRecord, error) {
	q := s.DB.WithContext(ctx).Where("game_id = ?", gameID)
	if len(stores) > 0 {
		q = q.Where("store IN ?", stores)
	}
	var rec models.PriceRecord
	if err := q.Order("updated_at DESC").First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load price for %s: %w", gameID, err)
	}
	return &rec, nil
}

func (s *GormPriceStore) Upsert(ctx context.Context, rec *models.PriceRecord) error {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "game_id"}, {Name: "store"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "currency", "url", "image_url", "external_id", "updated_at"}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", rec.GameID, rec.Store, err)
	}
	return nil
}

func (s *GormPriceStore) Stalest(ctx context.Context, cutoff time.Time, limit int) ([]models.PriceRecord, error) {
	var recs []models.PriceRecord
	q := s.DB.WithContext(ctx).Where("updated_at < ?", cutoff).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("load stale prices: %w", err)
	}
	return recs, nil
}

func (s *GormPriceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&models.PriceRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete stale prices: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormPriceStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.PriceRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}
