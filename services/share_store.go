package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"boardgame-recommender/models"

	"gorm.io/gorm"
)

// ShareStore persists shared recommendation sets.
type ShareStore interface {
	Create(ctx context.Context, s *models.SharedRecommendationSet) error
	// Get returns ErrShareNotFound when no row exists.
	Get(ctx context.Context, id string) (*models.SharedRecommendationSet, error)
	IncrementViews(ctx context.Context, id string) error
	Delete(ctx context.Context, ids ...string) (int64, error)
	// CreatedBefore returns shares created before cutoff, oldest first.
	CreatedBefore(ctx context.Context, cutoff time.Time) ([]models.SharedRecommendationSet, error)
	// Oldest returns the n oldest shares.
	Oldest(ctx context.Context, n int) ([]models.SharedRecommendationSet, error)
	Count(ctx context.Context) (int64, error)
}

type GormShareStore struct {
	DB *gorm.DB
}

func NewGormShareStore(db *gorm.DB) *GormShareStore {
	return &GormShareStore{DB: db}
}

func (s *GormShareStore) Create(ctx context.Context, share *models.SharedRecommendationSet) error {
	if err := s.DB.WithContext(ctx).Create(share).Error; err != nil {
		return fmt.Errorf("create share: %w", err)
	}
	return nil
}

func (s *GormShareStore) Get(ctx context.Context, id string) (*models.SharedRecommendationSet, error) {
	var share models.SharedRecommendationSet
	if err := s.DB.WithContext(ctx).First(&share, "share_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("get share %s: %w", id, err)
	}
	return &share, nil
}

func (s *GormShareStore) IncrementViews(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Model(&models.SharedRecommendationSet{}).
		Where("share_id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment views for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}

func (s *GormShareStore) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Where("share_id IN ?", ids).Delete(&models.SharedRecommendationSet{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete shares: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormShareStore) CreatedBefore(ctx context.Context, cutoff time.Time) ([]models.SharedRecommendationSet, error) {
	var shares []models.SharedRecommendationSet
	if err := s.DB.WithContext(ctx).Where("created_at < ?", cutoff).Order("created_at ASC").Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("load expired shares: %w", err)
	}
	return shares, nil
}

func (s *GormShareStore) Oldest(ctx context.Context, n int) ([]models.SharedRecommendationSet, error) {
	if n <= 0 {
		return nil, nil
	}
	var shares []models.SharedRecommendationSet
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Limit(n).Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("load oldest shares: %w", err)
	}
	return shares, nil
}

func (s *GormShareStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.SharedRecommendationSet{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count shares: %w", err)
	}
	return n, nil
}
