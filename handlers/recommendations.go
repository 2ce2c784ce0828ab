package handlers

import (
	"boardgame-recommender/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type recommendRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Count  int    `json:"count" validate:"omitempty,min=1,max=10"`
}

type RecommendationHandler struct {
	svc    Recommender
	logger *zap.Logger
}

func NewRecommendationHandler(svc Recommender, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, logger: logger.Named("api.recommend")}
}

// Recommend handles POST /api/recommendations.
func (h *RecommendationHandler) Recommend(c *fiber.Ctx) error {
	var req recommendRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "prompt is required and count must be between 1 and 10")
	}

	resp, err := h.svc.Recommend(c.UserContext(), req.Prompt, req.Count)
	if err != nil {
		h.logger.Error("recommendation failed", zap.String("request_id", middleware.RequestID(c)), zap.Error(err))
		return serviceError(c, err)
	}
	return c.JSON(resp)
}
