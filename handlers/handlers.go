// Package handlers exposes the recommender over HTTP.
package handlers

import (
	"context"
	"errors"
	"strconv"

	"boardgame-recommender/models"
	"boardgame-recommender/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Recommender interface {
	Recommend(ctx context.Context, prompt string, count int) (*models.RecommendationResponse, error)
}

type Sharer interface {
	Create(ctx context.Context, in services.CreateShareInput) (*models.SharedRecommendationSet, error)
	Get(ctx context.Context, id string) (*models.SharedRecommendationSet, error)
	CleanupExpiredShares(ctx context.Context) (services.CleanupResult, error)
}

type Pricer interface {
	ResolvePrice(ctx context.Context, gameID, title string) models.ResolvedPrice
	ResolvePrices(ctx context.Context, lookups []services.PriceLookup) []models.ResolvedPrice
	RefreshPrices(ctx context.Context, limit int) (services.RefreshResult, error)
	CleanupStalePrices(ctx context.Context, maxAgeDays int) (int64, error)
}

// Counter is anything that can report a row count for /admin/stats.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// serviceError maps service sentinels to status codes. Anything unknown is
// a 503 with no internal detail.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidPrompt):
		return errorJSON(c, fiber.StatusBadRequest, "prompt must be between 3 and 1000 characters")
	case errors.Is(err, services.ErrGameNotFound):
		return errorJSON(c, fiber.StatusNotFound, "game not found")
	case errors.Is(err, services.ErrShareNotFound):
		return errorJSON(c, fiber.StatusNotFound, "share not found")
	case errors.Is(err, services.ErrShareExpired):
		return errorJSON(c, fiber.StatusGone, "share has expired")
	case errors.Is(err, services.ErrEmptyCatalog):
		return errorJSON(c, fiber.StatusServiceUnavailable, "catalog is empty")
	default:
		return errorJSON(c, fiber.StatusServiceUnavailable, "service temporarily unavailable")
	}
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
