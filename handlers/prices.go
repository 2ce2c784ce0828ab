package handlers

import (
	"errors"

	"boardgame-recommender/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type bulkPriceRequest struct {
	Items []services.PriceLookup `json:"items" validate:"required,min=1,max=20,dive"`
}

type PriceHandler struct {
	prices  Pricer
	catalog services.CatalogStore
	logger  *zap.Logger
}

func NewPriceHandler(prices Pricer, catalog services.CatalogStore, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, catalog: catalog, logger: logger.Named("api.prices")}
}

// Get handles GET /api/prices/:gameId. Unknown ids are 404 unless a title
// is passed, in which case the lookup runs uncached.
func (h *PriceHandler) Get(c *fiber.Ctx) error {
	gameID := c.Params("gameId")
	title := c.Query("title")

	g, err := h.catalog.Get(c.UserContext(), gameID)
	switch {
	case err == nil:
		title = g.Title
	case errors.Is(err, services.ErrGameNotFound) && title != "":
		gameID = ""
	case errors.Is(err, services.ErrGameNotFound):
		return errorJSON(c, fiber.StatusNotFound, "game not found")
	default:
		h.logger.Error("catalog lookup failed", zap.String("game_id", gameID), zap.Error(err))
		return serviceError(c, err)
	}

	return c.JSON(h.prices.ResolvePrice(c.UserContext(), gameID, title))
}

// Bulk handles POST /api/prices/bulk.
func (h *PriceHandler) Bulk(c *fiber.Ctx) error {
	var req bulkPriceRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "items must hold 1 to 20 entries with a title")
	}
	return c.JSON(fiber.Map{"prices": h.prices.ResolvePrices(c.UserContext(), req.Items)})
}
