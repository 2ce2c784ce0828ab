package handlers

import (
	"context"
	"net/http"

	"boardgame-recommender/middleware"
	"boardgame-recommender/ratelimit"
	"boardgame-recommender/web"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps bundles everything the routes need.
type Deps struct {
	Recommendations *RecommendationHandler
	Shares          *ShareHandler
	Prices          *PriceHandler
	Games           *GameHandler
	Admin           *AdminHandler
	Limiter         *ratelimit.Limiter
	AdminToken      string
	LLMModel        string // empty when running without a model
	Ping            func(ctx context.Context) error
	Logger          *zap.Logger
}

func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/health", d.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 🔓 Public API, rate limited per client
	api := app.Group("/api", middleware.RateLimit(d.Limiter, d.Logger))
	api.Post("/recommendations", d.Recommendations.Recommend)
	api.Post("/shares", d.Shares.Create)
	api.Get("/shares/:id", d.Shares.Get)
	api.Get("/prices/:gameId", d.Prices.Get)
	api.Post("/prices/bulk", d.Prices.Bulk)
	api.Get("/games", d.Games.List)
	api.Get("/games/:id", d.Games.Get)

	// 🔐 Maintenance
	admin := app.Group("/admin", middleware.AdminAuth(d.AdminToken, d.Logger))
	admin.Post("/prices/refresh", d.Admin.RefreshPrices)
	admin.Post("/shares/cleanup", d.Admin.CleanupShares)
	admin.Post("/prices/cleanup", d.Admin.CleanupPrices)
	admin.Get("/stats", d.Admin.Stats)

	ui := http.FS(web.Files)
	app.Get("/share/:id", func(c *fiber.Ctx) error {
		return filesystem.SendFile(c, ui, "index.html")
	})
	app.Use("/", filesystem.New(filesystem.Config{
		Root:   ui,
		Index:  "index.html",
		MaxAge: 3600,
	}))
}

func (d Deps) health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok", "llm": "disabled"}
	if d.LLMModel != "" {
		status["llm"] = d.LLMModel
	}
	if d.Ping != nil {
		if err := d.Ping(c.UserContext()); err != nil {
			d.Logger.Warn("health check failed", zap.Error(err))
			status["status"] = "degraded"
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
	}
	return c.JSON(status)
}
