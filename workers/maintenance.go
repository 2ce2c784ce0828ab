package workers

import (
	"context"
	"fmt"
	"time"

	"boardgame-recommender/metrics"
	"boardgame-recommender/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Job names, also used as metric labels.
const (
	JobRefreshPrices = "refresh_prices"
	JobCleanupShares = "cleanup_shares"
	JobCleanupPrices = "cleanup_stale_prices"
	JobSweepLimiter  = "sweep_rate_limiter"
)

type PriceMaintainer interface {
	RefreshPrices(ctx context.Context, limit int) (services.RefreshResult, error)
	CleanupStalePrices(ctx context.Context, maxAgeDays int) (int64, error)
}

type ShareMaintainer interface {
	CleanupExpiredShares(ctx context.Context) (services.CleanupResult, error)
}

// Sweeper drops rate-limit state that no longer matters.
type Sweeper interface {
	Sweep() int
}

type MaintenanceConfig struct {
	RefreshInterval      time.Duration
	RefreshLimit         int
	ShareCleanupInterval time.Duration
	PriceCleanupInterval time.Duration
	StalePriceDays       int
	SweepInterval        time.Duration
}

func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		RefreshInterval:      6 * time.Hour,
		RefreshLimit:         50,
		ShareCleanupInterval: 24 * time.Hour,
		PriceCleanupInterval: 24 * time.Hour,
		StalePriceDays:       30,
		SweepInterval:        10 * time.Minute,
	}
}

// Maintenance owns the periodic jobs: price refresh, share cleanup,
// stale price cleanup and rate-limiter sweeping.
type Maintenance struct {
	prices  PriceMaintainer
	shares  ShareMaintainer
	sweeper Sweeper
	cfg     MaintenanceConfig
	sched   gocron.Scheduler
	logger  *zap.Logger
}

// NewMaintenance registers a job for every non-nil dependency. Nothing
// runs until Start.
func NewMaintenance(prices PriceMaintainer, shares ShareMaintainer, sweeper Sweeper, cfg MaintenanceConfig, clock clockwork.Clock, logger *zap.Logger) (*Maintenance, error) {
	d := DefaultMaintenanceConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = d.RefreshInterval
	}
	if cfg.RefreshLimit <= 0 {
		cfg.RefreshLimit = d.RefreshLimit
	}
	if cfg.ShareCleanupInterval <= 0 {
		cfg.ShareCleanupInterval = d.ShareCleanupInterval
	}
	if cfg.PriceCleanupInterval <= 0 {
		cfg.PriceCleanupInterval = d.PriceCleanupInterval
	}
	if cfg.StalePriceDays <= 0 {
		cfg.StalePriceDays = d.StalePriceDays
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = d.SweepInterval
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	m := &Maintenance{
		prices:  prices,
		shares:  shares,
		sweeper: sweeper,
		cfg:     cfg,
		sched:   sched,
		logger:  logger.Named("maintenance"),
	}

	type job struct {
		name  string
		every time.Duration
		run   func(context.Context) error
	}
	var jobs []job
	if prices != nil {
		jobs = append(jobs,
			job{JobRefreshPrices, cfg.RefreshInterval, m.refreshPrices},
			job{JobCleanupPrices, cfg.PriceCleanupInterval, m.cleanupPrices},
		)
	}
	if shares != nil {
		jobs = append(jobs, job{JobCleanupShares, cfg.ShareCleanupInterval, m.cleanupShares})
	}
	if sweeper != nil {
		jobs = append(jobs, job{JobSweepLimiter, cfg.SweepInterval, m.sweep})
	}

	for _, j := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(func(ctx context.Context) { m.Run(ctx, j.name, j.run) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return m, nil
}

func (m *Maintenance) Start() {
	m.logger.Info("starting maintenance scheduler", zap.Strings("jobs", m.JobNames()))
	m.sched.Start()
}

func (m *Maintenance) Shutdown() error {
	return m.sched.Shutdown()
}

// JobNames lists the registered jobs.
func (m *Maintenance) JobNames() []string {
	var names []string
	for _, j := range m.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

// Run executes one job with logging and metrics. Failures are reported and
// retried on the next tick.
func (m *Maintenance) Run(ctx context.Context, name string, fn func(context.Context) error) {
	start := time.Now()
	err := fn(ctx)
	metrics.RecordMaintenance(name, err)
	if err != nil {
		m.logger.Error("maintenance job failed", zap.String("job", name), zap.Error(err))
		return
	}
	m.logger.Debug("maintenance job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

func (m *Maintenance) refreshPrices(ctx context.Context) error {
	res, err := m.prices.RefreshPrices(ctx, m.cfg.RefreshLimit)
	if err != nil {
		return err
	}
	m.logger.Info("prices refreshed",
		zap.Int("checked", res.Checked), zap.Int("refreshed", res.Refreshed), zap.Int("fallback", res.Fallback))
	return nil
}

func (m *Maintenance) cleanupPrices(ctx context.Context) error {
	n, err := m.prices.CleanupStalePrices(ctx, m.cfg.StalePriceDays)
	if err != nil {
		return err
	}
	m.logger.Info("stale prices removed", zap.Int64("deleted", n), zap.Int("max_age_days", m.cfg.StalePriceDays))
	return nil
}

func (m *Maintenance) cleanupShares(ctx context.Context) error {
	res, err := m.shares.CleanupExpiredShares(ctx)
	if err != nil {
		return err
	}
	m.logger.Info("shares cleaned up",
		zap.Int64("expired", res.Expired), zap.Int64("evicted", res.Evicted), zap.Int("archived", res.Archived))
	return nil
}

func (m *Maintenance) sweep(context.Context) error {
	if n := m.sweeper.Sweep(); n > 0 {
		m.logger.Debug("rate limiter swept", zap.Int("keys", n))
	}
	return nil
}
