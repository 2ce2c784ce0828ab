// Package config loads service configuration from an optional .env file,
// an optional config.yaml and the environment. Environment variables always
// win. Secrets are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"boardgame-recommender/llm"
	"boardgame-recommender/marketplace"
	"boardgame-recommender/services"
	"boardgame-recommender/utils"
	"boardgame-recommender/workers"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Matching  MatchingConfig  `yaml:"matching"`
	Prices    PricesConfig    `yaml:"prices"`
	Shares    SharesConfig    `yaml:"shares"`
	Archive   ArchiveConfig   `yaml:"archive"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Tasks     TasksConfig     `yaml:"tasks"`
}

type ServerConfig struct {
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"development"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Port            string        `yaml:"port" env:"PORT" env-default:"5200"`
	BaseURL         string        `yaml:"base_url" env:"PUBLIC_BASE_URL" env-default:"http://localhost:5200"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	BodyLimit       int           `yaml:"body_limit" env:"BODY_LIMIT" env-default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	AdminToken      string        `yaml:"-" env:"ADMIN_TOKEN"` // empty disables the admin routes
}

type DatabaseConfig struct {
	URL          string `yaml:"-" env:"DATABASE_URL" env-required:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	APIKey      string        `yaml:"-" env:"LLM_API_KEY"`
	Model       string        `yaml:"model" env:"LLM_MODEL"`
	BaseURL     string        `yaml:"base_url" env:"LLM_BASE_URL"`
	Temperature float64       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.7"`
	MaxTokens   int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
	Timeout     time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"45s"`
}

type MatchingConfig struct {
	AcceptThreshold  float64 `yaml:"accept_threshold" env:"MATCH_ACCEPT_THRESHOLD" env-default:"0.7"`
	SampleSize       int     `yaml:"sample_size" env:"CATALOG_SAMPLE_SIZE" env-default:"120"`
	FullCatalogLimit int     `yaml:"full_catalog_limit" env:"FULL_CATALOG_LIMIT" env-default:"500"`
	SampleRequest    int     `yaml:"sample_request" env:"SAMPLE_REQUEST_COUNT" env-default:"10"`
	Seed             uint64  `yaml:"seed" env:"RECOMMENDER_SEED" env-default:"42"`
}

type PricesConfig struct {
	FreshnessHours int           `yaml:"freshness_hours" env:"PRICE_FRESHNESS_HOURS" env-default:"72"`
	StaleDays      int           `yaml:"stale_days" env:"PRICE_STALE_DAYS" env-default:"30"`
	MinInterval    time.Duration `yaml:"min_interval" env:"MARKETPLACE_MIN_INTERVAL" env-default:"1200ms"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"MARKETPLACE_TIMEOUT" env-default:"10s"`

	AccessKey   string `yaml:"-" env:"AMAZON_ACCESS_KEY"`
	SecretKey   string `yaml:"-" env:"AMAZON_SECRET_KEY"`
	PartnerTag  string `yaml:"partner_tag" env:"AMAZON_PARTNER_TAG"`
	Host        string `yaml:"host" env:"AMAZON_HOST" env-default:"webservices.amazon.com"`
	Region      string `yaml:"region" env:"AMAZON_REGION" env-default:"us-east-1"`
	Marketplace string `yaml:"marketplace" env:"AMAZON_MARKETPLACE" env-default:"www.amazon.com"`

	ReferenceSearchURL string `yaml:"reference_search_url" env:"REFERENCE_SEARCH_URL"`
	ReferenceSiteURL   string `yaml:"reference_site_url" env:"REFERENCE_SITE_URL" env-default:"https://boardgamegeek.com"`
}

type SharesConfig struct {
	ExpiryDays int `yaml:"expiry_days" env:"SHARE_EXPIRY_DAYS" env-default:"30"`
	MaxStored  int `yaml:"max_stored" env:"SHARE_MAX_STORED" env-default:"10000"`
}

// ArchiveConfig points at R2 or any S3-compatible bucket. An empty bucket
// disables archiving.
type ArchiveConfig struct {
	AccountID string `yaml:"account_id" env:"R2_ACCOUNT_ID"`
	Endpoint  string `yaml:"endpoint" env:"R2_ENDPOINT"`
	AccessKey string `yaml:"-" env:"R2_ACCESS_KEY_ID"`
	SecretKey string `yaml:"-" env:"R2_SECRET_ACCESS_KEY"`
	Bucket    string `yaml:"bucket" env:"R2_BUCKET"`
	Prefix    string `yaml:"prefix" env:"ARCHIVE_PREFIX" env-default:"shares"`
	Region    string `yaml:"region" env:"R2_REGION" env-default:"auto"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"30"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1m"`
}

type SchedulerConfig struct {
	Enabled              bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	RefreshInterval      time.Duration `yaml:"refresh_interval" env:"PRICE_REFRESH_INTERVAL" env-default:"6h"`
	RefreshLimit         int           `yaml:"refresh_limit" env:"PRICE_REFRESH_LIMIT" env-default:"50"`
	ShareCleanupInterval time.Duration `yaml:"share_cleanup_interval" env:"SHARE_CLEANUP_INTERVAL" env-default:"24h"`
	PriceCleanupInterval time.Duration `yaml:"price_cleanup_interval" env:"PRICE_CLEANUP_INTERVAL" env-default:"24h"`
	SweepInterval        time.Duration `yaml:"sweep_interval" env:"RATE_LIMIT_SWEEP_INTERVAL" env-default:"10m"`
}

type TasksConfig struct {
	Workers int           `yaml:"workers" env:"TASK_WORKERS" env-default:"2"`
	Buffer  int           `yaml:"buffer" env:"TASK_BUFFER" env-default:"256"`
	Timeout time.Duration `yaml:"timeout" env:"TASK_TIMEOUT" env-default:"5s"`
}

// Load reads .env (if present), then path (if it exists), then the
// environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}
	var err error
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case llm.ProviderOpenAI, llm.ProviderAnthropic, llm.ProviderNone:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.Matching.AcceptThreshold <= 0 || c.Matching.AcceptThreshold > 1 {
		return fmt.Errorf("MATCH_ACCEPT_THRESHOLD must be in (0, 1], got %v", c.Matching.AcceptThreshold)
	}
	if c.Matching.SampleRequest < 8 || c.Matching.SampleRequest > 12 {
		return fmt.Errorf("SAMPLE_REQUEST_COUNT must be between 8 and 12, got %d", c.Matching.SampleRequest)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit requests and window must be positive")
	}
	return nil
}

// Origins returns the CORS origins in the comma-joined form fiber expects.
func (c *ServerConfig) Origins() string {
	out := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return strings.Join(out, ",")
}

func (c *Config) LLMClientConfig() llm.Config {
	return llm.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.LLM.Timeout,
	}
}

func (c *Config) RecommendationConfig() services.RecommendationConfig {
	rc := services.DefaultRecommendationConfig()
	rc.FullCatalogLimit = c.Matching.FullCatalogLimit
	rc.SampleSize = c.Matching.SampleSize
	rc.SampleRequest = c.Matching.SampleRequest
	rc.AcceptThreshold = c.Matching.AcceptThreshold
	rc.Temperature = c.LLM.Temperature
	rc.MaxTokens = c.LLM.MaxTokens
	rc.Seed = c.Matching.Seed
	return rc
}

func (c *Config) ProductConfig() marketplace.ProductConfig {
	return marketplace.ProductConfig{
		AccessKey:   c.Prices.AccessKey,
		SecretKey:   c.Prices.SecretKey,
		PartnerTag:  c.Prices.PartnerTag,
		Host:        c.Prices.Host,
		Region:      c.Prices.Region,
		Marketplace: c.Prices.Marketplace,
		Timeout:     c.Prices.RequestTimeout,
	}
}

func (c *Config) ReferenceConfig() marketplace.ReferenceConfig {
	return marketplace.ReferenceConfig{
		SearchURL: c.Prices.ReferenceSearchURL,
		SiteURL:   c.Prices.ReferenceSiteURL,
		Timeout:   c.Prices.RequestTimeout,
	}
}

func (c *Config) PriceFreshness() time.Duration {
	return time.Duration(c.Prices.FreshnessHours) * time.Hour
}

func (c *Config) ShareExpiry() time.Duration {
	return time.Duration(c.Shares.ExpiryDays) * 24 * time.Hour
}

func (c *Config) ArchiveSettings() utils.ArchiveConfig {
	return utils.ArchiveConfig{
		AccountID: c.Archive.AccountID,
		Endpoint:  c.Archive.Endpoint,
		AccessKey: c.Archive.AccessKey,
		SecretKey: c.Archive.SecretKey,
		Bucket:    c.Archive.Bucket,
		Prefix:    c.Archive.Prefix,
		Region:    c.Archive.Region,
	}
}

func (c *Config) MaintenanceConfig() workers.MaintenanceConfig {
	return workers.MaintenanceConfig{
		RefreshInterval:      c.Scheduler.RefreshInterval,
		RefreshLimit:         c.Scheduler.RefreshLimit,
		ShareCleanupInterval: c.Scheduler.ShareCleanupInterval,
		PriceCleanupInterval: c.Scheduler.PriceCleanupInterval,
		StalePriceDays:       c.Prices.StaleDays,
		SweepInterval:        c.Scheduler.SweepInterval,
	}
}
