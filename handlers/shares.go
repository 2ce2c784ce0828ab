package handlers

import (
	"errors"
	"time"

	"boardgame-recommender/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

type createShareResponse struct {
	ShareID   string     `json:"shareId"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type ShareHandler struct {
	svc     Sharer
	baseURL string
	logger  *zap.Logger
}

func NewShareHandler(svc Sharer, baseURL string, logger *zap.Logger) *ShareHandler {
	return &ShareHandler{svc: svc, baseURL: baseURL, logger: logger.Named("api.shares")}
}

// Create handles POST /api/shares.
func (h *ShareHandler) Create(c *fiber.Ctx) error {
	var in services.CreateShareInput
	if err := c.BodyParser(&in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(in); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "prompt and 1 to 10 recommendations are required")
	}

	share, err := h.svc.Create(c.UserContext(), in)
	if err != nil {
		h.logger.Error("failed to create share", zap.Error(err))
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(createShareResponse{
		ShareID:   share.ShareID,
		URL:       services.ShareURL(h.baseURL, share.ShareID),
		ExpiresAt: share.ExpiresAt,
	})
}

// Get handles GET /api/shares/:id.
func (h *ShareHandler) Get(c *fiber.Ctx) error {
	id := utils.CopyString(c.Params("id"))
	if id == "" || len(id) > 16 {
		return errorJSON(c, fiber.StatusNotFound, "share not found")
	}

	share, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		if !errors.Is(err, services.ErrShareNotFound) && !errors.Is(err, services.ErrShareExpired) {
			h.logger.Error("failed to load share", zap.String("share_id", id), zap.Error(err))
		}
		return serviceError(c, err)
	}
	return c.JSON(share)
}
