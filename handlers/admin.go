package handlers

import (
	"boardgame-recommender/metrics"
	"boardgame-recommender/workers"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultRefreshLimit = 50
	defaultStaleDays    = 30
)

// AdminHandler exposes the maintenance operations for manual runs.
type AdminHandler struct {
	prices  Pricer
	shares  Sharer
	catalog Counter
	priceDB Counter
	shareDB Counter
	logger  *zap.Logger
}

func NewAdminHandler(prices Pricer, shares Sharer, catalog, priceDB, shareDB Counter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		prices:  prices,
		shares:  shares,
		catalog: catalog,
		priceDB: priceDB,
		shareDB: shareDB,
		logger:  logger.Named("api.admin"),
	}
}

// RefreshPrices handles POST /admin/prices/refresh?limit=.
func (h *AdminHandler) RefreshPrices(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", defaultRefreshLimit)
	if limit <= 0 {
		limit = defaultRefreshLimit
	}
	res, err := h.prices.RefreshPrices(c.UserContext(), limit)
	metrics.RecordMaintenance(workers.JobRefreshPrices, err)
	if err != nil {
		h.logger.Error("manual price refresh failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "price refresh failed")
	}
	return c.JSON(res)
}

// CleanupShares handles POST /admin/shares/cleanup.
func (h *AdminHandler) CleanupShares(c *fiber.Ctx) error {
	res, err := h.shares.CleanupExpiredShares(c.UserContext())
	metrics.RecordMaintenance(workers.JobCleanupShares, err)
	if err != nil {
		h.logger.Error("manual share cleanup failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "share cleanup failed")
	}
	return c.JSON(res)
}

// CleanupPrices handles POST /admin/prices/cleanup?maxAgeDays=.
func (h *AdminHandler) CleanupPrices(c *fiber.Ctx) error {
	days := queryInt(c, "maxAgeDays", defaultStaleDays)
	if days <= 0 {
		days = defaultStaleDays
	}
	n, err := h.prices.CleanupStalePrices(c.UserContext(), days)
	metrics.RecordMaintenance(workers.JobCleanupPrices, err)
	if err != nil {
		h.logger.Error("manual price cleanup failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "price cleanup failed")
	}
	return c.JSON(fiber.Map{"deleted": n, "maxAgeDays": days})
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	out := fiber.Map{}
	for name, counter := range map[string]Counter{"games": h.catalog, "prices": h.priceDB, "shares": h.shareDB} {
		if counter == nil {
			continue
		}
		n, err := counter.Count(ctx)
		if err != nil {
			h.logger.Error("stats query failed", zap.String("table", name), zap.Error(err))
			return errorJSON(c, fiber.StatusInternalServerError, "failed to collect stats")
		}
		out[name] = n
	}
	return c.JSON(out)
}
