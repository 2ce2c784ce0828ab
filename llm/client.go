// Package llm talks to chat-completion providers and turns their replies
// into validated recommendation candidates.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Providers supported by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// ErrNotConfigured is returned by New when no credential is available.
var ErrNotConfigured = errors.New("llm: no provider configured")

// Request is a single chat-completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object reply
}

// Client is the chat-completion collaborator used by the recommender.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Model() string
}

// Config holds provider settings.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the configured client, or ErrNotConfigured when the provider
// is "none" or the key is missing. Callers treat ErrNotConfigured as "use
// the deterministic fallback".
func New(cfg Config, logger *zap.Logger) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == ProviderNone || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}

	switch provider {
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = "gpt-4o-mini"
		}
		return NewOpenAIClient(cfg, logger), nil
	case ProviderAnthropic:
		if cfg.Model == "" {
			cfg.Model = "claude-3-5-haiku-latest"
		}
		return NewAnthropicClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
