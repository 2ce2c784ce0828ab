package handlers

import (
	"boardgame-recommender/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 24
	maxPageSize     = 100
	maxPage         = 10000
)

type GameHandler struct {
	catalog services.CatalogStore
	logger  *zap.Logger
}

func NewGameHandler(catalog services.CatalogStore, logger *zap.Logger) *GameHandler {
	return &GameHandler{catalog: catalog, logger: logger.Named("api.games")}
}

// List handles GET /api/games?page=&pageSize=.
func (h *GameHandler) List(c *fiber.Ctx) error {
	page := min(max(queryInt(c, "page", 1), 1), maxPage)
	size := queryInt(c, "pageSize", defaultPageSize)
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}

	games, total, err := h.catalog.List(c.UserContext(), (page-1)*size, size)
	if err != nil {
		h.logger.Error("failed to list games", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "failed to fetch games")
	}
	return c.JSON(fiber.Map{
		"games":    games,
		"page":     page,
		"pageSize": size,
		"total":    total,
	})
}

// Get handles GET /api/games/:id.
func (h *GameHandler) Get(c *fiber.Ctx) error {
	g, err := h.catalog.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(g)
}
