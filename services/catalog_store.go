package services

import (
	"context"
	"errors"
	"fmt"

	"boardgame-recommender/models"

	"gorm.io/gorm"
)

// CatalogFilter narrows a catalog query. Zero fields are ignored.
type CatalogFilter struct {
	Theme         string
	Tag           string
	Mechanic      string
	MinComplexity *float64
	MaxComplexity *float64
	ExcludeIDs    []string
	Limit         int
}

// CatalogStore is the read side of the game catalog.
type CatalogStore interface {
	Count(ctx context.Context) (int64, error)
	// All pages through the whole catalog in id order.
	All(ctx context.Context) ([]models.Game, error)
	Filter(ctx context.Context, f CatalogFilter) ([]models.Game, error)
	Get(ctx context.Context, id string) (*models.Game, error)
	List(ctx context.Context, offset, limit int) ([]models.Game, int64, error)
}

const defaultPageSize = 200

// GormCatalogStore reads games from the relational catalog table.
type GormCatalogStore struct {
	DB       *gorm.DB
	PageSize int
}

func NewGormCatalogStore(db *gorm.DB) *GormCatalogStore {
	return &GormCatalogStore{DB: db, PageSize: defaultPageSize}
}

func (s *GormCatalogStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Game{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

func (s *GormCatalogStore) All(ctx context.Context) ([]models.Game, error) {
	size := s.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	var all []models.Game
	for offset := 0; ; offset += size {
		var page []models.Game
		err := s.DB.WithContext(ctx).Order("id").Offset(offset).Limit(size).Find(&page).Error
		if err != nil {
			return nil, fmt.Errorf("load catalog page at %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < size {
			return all, nil
		}
	}
}

func (s *GormCatalogStore) Filter(ctx context.Context, f CatalogFilter) ([]models.Game, error) {
	q := s.DB.WithContext(ctx).Model(&models.Game{})
	if f.Theme != "" {
		q = q.Where("LOWER(theme) = LOWER(?)", f.Theme)
	}
	if f.Tag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) t WHERE LOWER(t) = LOWER(?))", f.Tag)
	}
	if f.Mechanic != "" {
		q = q.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(mechanics) m WHERE LOWER(m) = LOWER(?))", f.Mechanic)
	}
	if f.MinComplexity != nil {
		q = q.Where("complexity >= ?", *f.MinComplexity)
	}
	if f.MaxComplexity != nil {
		q = q.Where("complexity <= ?", *f.MaxComplexity)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", f.ExcludeIDs)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var games []models.Game
	if err := q.Order("title").Find(&games).Error; err != nil {
		return nil, fmt.Errorf("filter games: %w", err)
	}
	return games, nil
}

func (s *GormCatalogStore) Get(ctx context.Context, id string) (*models.Game, error) {
	var g models.Game
	if err := s.DB.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return &g, nil
}

func (s *GormCatalogStore) List(ctx context.Context, offset, limit int) ([]models.Game, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Game{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count games: %w", err)
	}
	var games []models.Game
	if err := s.DB.WithContext(ctx).Order("title").Offset(offset).Limit(limit).Find(&games).Error; err != nil {
		return nil, 0, fmt.Errorf("list games: %w", err)
	}
	return games, total, nil
}

// FilterForBand returns the complexity bounds matching a band.
func FilterForBand(band string) (lo, hi *float64) {
	switch band {
	case models.ComplexityLight:
		return nil, models.FloatPtr(2.5)
	case models.ComplexityMedium:
		return models.FloatPtr(2.5), models.FloatPtr(3.5)
	case models.ComplexityHeavy:
		return models.FloatPtr(3.5), nil
	}
	return nil, nil
}
