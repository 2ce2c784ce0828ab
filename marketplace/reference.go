// Package marketplace wraps the external price/listing sources: a reference
// site used only for deep links, and the signed product-search API.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardgame-recommender/matching"
	"boardgame-recommender/utils"

	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

var (
	// ErrNotConfigured means the source has no endpoint or credentials.
	ErrNotConfigured = errors.New("marketplace: source not configured")
	// ErrNoMatch means the source answered but nothing acceptable came back.
	ErrNoMatch = errors.New("marketplace: no acceptable match")
)

// Reference is a canonical listing page on the reference site.
type Reference struct {
	ID   string
	Name string
	URL  string
}

// ReferenceLookup resolves a title to a canonical listing page.
type ReferenceLookup interface {
	Lookup(ctx context.Context, title string) (*Reference, error)
}

// ReferenceConfig configures the reference-site client.
type ReferenceConfig struct {
	SearchURL string // JSON search endpoint, queried with ?q=<title>
	SiteURL   string // base for listing links, e.g. https://boardgamegeek.com
	Timeout   time.Duration
}

// ReferenceClient queries the reference site's search endpoint by title.
// No prices are read from it; it only yields a stable deep link.
type ReferenceClient struct {
	cfg        ReferenceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewReferenceClient(cfg ReferenceConfig, logger *zap.Logger) *ReferenceClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &ReferenceClient{
		cfg:        cfg,
		httpClient: utils.NewHTTPClient(cfg.Timeout),
		logger:     logger.Named("marketplace.reference"),
	}
}

type referenceSearchResponse struct {
	Results []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"results"`
}

func (c *ReferenceClient) Lookup(ctx context.Context, title string) (*Reference, error) {
	if c.cfg.SearchURL == "" || c.cfg.SiteURL == "" {
		return nil, ErrNotConfigured
	}

	u, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid reference search URL: %w", err)
	}
	q := u.Query()
	q.Set("q", title)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reference lookup failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reference site returned status %d: %s", resp.StatusCode, string(body))
	}

	var out referenceSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode reference response: %w", err)
	}

	// only accept a result whose name is the same game
	want := matching.Normalize(title)
	for _, r := range out.Results {
		if r.ID.String() == "" || matching.StripArticles(matching.Normalize(r.Name)) != matching.StripArticles(want) {
			continue
		}
		ref := &Reference{
			ID:   r.ID.String(),
			Name: r.Name,
			URL:  fmt.Sprintf("%s/boardgame/%s/%s", strings.TrimSuffix(c.cfg.SiteURL, "/"), r.ID.String(), slug.Make(r.Name)),
		}
		c.logger.Debug("reference resolved", zap.String("title", title), zap.String("id", ref.ID))
		return ref, nil
	}
	return nil, ErrNoMatch
}
