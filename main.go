package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"boardgame-recommender/config"
	"boardgame-recommender/handlers"
	"boardgame-recommender/llm"
	"boardgame-recommender/marketplace"
	"boardgame-recommender/middleware"
	"boardgame-recommender/models"
	"boardgame-recommender/ratelimit"
	"boardgame-recommender/services"
	"boardgame-recommender/utils"
	"boardgame-recommender/workers"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	logger, err := utils.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		log.Fatal("failed to build logger:", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("failed to get database handle", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := db.AutoMigrate(
		&models.Game{},
		&models.PriceRecord{},
		&models.SharedRecommendationSet{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	clock := clockwork.NewRealClock()

	var model llm.Client
	model, err = llm.New(cfg.LLMClientConfig(), logger)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("⚠️  no LLM configured, recommendations use the local ranking only")
	case err != nil:
		logger.Fatal("failed to build LLM client", zap.Error(err))
	}
	llmModel := ""
	if model != nil {
		llmModel = model.Model()
	}

	catalog := services.NewGormCatalogStore(db)
	priceStore := services.NewGormPriceStore(db)
	shareStore := services.NewGormShareStore(db)

	throttle := ratelimit.NewThrottle(cfg.Prices.MinInterval, clock)
	products := marketplace.NewProductClient(cfg.ProductConfig(), throttle, clock, logger)
	reference := marketplace.NewReferenceClient(cfg.ReferenceConfig(), logger)
	prices := services.NewPriceService(priceStore, catalog, reference, products, clock, cfg.PriceFreshness(), logger)

	tasks := workers.NewTaskQueue(cfg.Tasks.Workers, cfg.Tasks.Buffer, cfg.Tasks.Timeout, logger)
	tasks.Start(ctx)
	defer tasks.Stop()

	archive, err := utils.NewShareArchive(ctx, cfg.ArchiveSettings())
	if err != nil {
		logger.Fatal("failed to initialize share archive", zap.Error(err))
	}
	shares := services.NewShareService(shareStore, tasks, archive, clock, cfg.ShareExpiry(), cfg.Shares.MaxStored, logger)

	recommender := services.NewRecommendationService(catalog, model, prices, cfg.RecommendationConfig(), logger)

	limiter := ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, clock, nil)

	if cfg.Scheduler.Enabled {
		maint, err := workers.NewMaintenance(prices, shares, limiter, cfg.MaintenanceConfig(), clock, logger)
		if err != nil {
			logger.Fatal("failed to build maintenance scheduler", zap.Error(err))
		}
		maint.Start()
		defer func() {
			if err := maint.Shutdown(); err != nil {
				logger.Warn("maintenance shutdown failed", zap.Error(err))
			}
		}()
		logger.Info("✅ maintenance jobs scheduled", zap.Strings("jobs", maint.JobNames()))
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.Server.BodyLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: errorHandler(logger),
	})

	app.Use(middleware.RequestContext(cfg.Server.Env == "production"))
	app.Use(middleware.Metrics())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency} ${locals:request_id}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.Origins(),
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		ExposeHeaders: "Content-Type, X-Request-ID, X-RateLimit-Remaining, Retry-After",
		MaxAge:        86400,
	}))

	handlers.SetupRoutes(app, handlers.Deps{
		Recommendations: handlers.NewRecommendationHandler(recommender, logger),
		Shares:          handlers.NewShareHandler(shares, cfg.Server.BaseURL, logger),
		Prices:          handlers.NewPriceHandler(prices, catalog, logger),
		Games:           handlers.NewGameHandler(catalog, logger),
		Admin:           handlers.NewAdminHandler(prices, shares, catalog, priceStore, shareStore, logger),
		Limiter:         limiter,
		AdminToken:      cfg.Server.AdminToken,
		LLMModel:        llmModel,
		Ping:            sqlDB.PingContext,
		Logger:          logger,
	})

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("✅ server running",
		zap.String("port", cfg.Server.Port),
		zap.String("llm", llmModel),
		zap.String("cors", cfg.Server.Origins()),
		zap.Bool("admin", cfg.Server.AdminToken != ""),
	)

	<-ctx.Done()
	logger.Info("shutting down server...")
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

// errorHandler keeps fiber's own errors (404s, body limit) in the same
// {"error": ...} shape the handlers use.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code, msg = fe.Code, fe.Message
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
