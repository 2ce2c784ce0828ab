package marketplace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardgame-recommender/metrics"
	"boardgame-recommender/ratelimit"
	"boardgame-recommender/utils"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	productService = "ProductAdvertisingAPI"
	searchTarget   = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems"
	breakerName    = "product-api"
)

// ProductSearch finds the retail listing for a game title.
type ProductSearch interface {
	Search(ctx context.Context, title string) (*Product, error)
	// FallbackURL is a plain search link used when no listing resolves.
	FallbackURL(title string) string
}

// ProductConfig configures the signed product-search API.
type ProductConfig struct {
	AccessKey   string
	SecretKey   string
	PartnerTag  string
	Host        string // e.g. webservices.amazon.com
	Region      string // e.g. us-east-1
	Marketplace string // e.g. www.amazon.com
	Endpoint    string // overrides https://<Host>/paapi5/searchitems
	ItemCount   int
	Timeout     time.Duration
}

func (c ProductConfig) configured() bool {
	return c.AccessKey != "" && c.SecretKey != "" && c.PartnerTag != ""
}

// ProductClient calls the product-search API. Every request passes through
// the shared throttle, then a circuit breaker, then is SigV4-signed.
type ProductClient struct {
	cfg        ProductConfig
	httpClient *http.Client
	throttle   *ratelimit.Throttle
	breaker    *gobreaker.CircuitBreaker[[]Product]
	signer     *v4.Signer
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewProductClient(cfg ProductConfig, throttle *ratelimit.Throttle, clock clockwork.Clock, logger *zap.Logger) *ProductClient {
	if cfg.Host == "" {
		cfg.Host = "webservices.amazon.com"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Marketplace == "" {
		cfg.Marketplace = "www.amazon.com"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://" + cfg.Host + "/paapi5/searchitems"
	}
	if cfg.ItemCount <= 0 {
		cfg.ItemCount = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if throttle == nil {
		throttle = ratelimit.NewThrottle(1200*time.Millisecond, clock)
	}
	logger = logger.Named("marketplace.product")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	breaker := gobreaker.NewCircuitBreaker[[]Product](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &ProductClient{
		cfg:        cfg,
		httpClient: utils.NewHTTPClient(cfg.Timeout),
		throttle:   throttle,
		breaker:    breaker,
		signer:     v4.NewSigner(),
		clock:      clock,
		logger:     logger,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Search queries the API and returns the best-scoring listing.
func (c *ProductClient) Search(ctx context.Context, title string) (*Product, error) {
	if !c.cfg.configured() {
		return nil, ErrNotConfigured
	}

	products, err := c.breaker.Execute(func() ([]Product, error) {
		return c.searchItems(ctx, title)
	})
	if err != nil {
		result := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "rejected"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(breakerName, result).Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(breakerName, "success").Inc()

	best, score, ok := SelectBest(title, products)
	if !ok {
		c.logger.Debug("no listing cleared threshold",
			zap.String("title", title), zap.Int("candidates", len(products)), zap.Float64("best_score", score))
		return nil, ErrNoMatch
	}
	return best, nil
}

// FallbackURL builds a tagged search link for title.
func (c *ProductClient) FallbackURL(title string) string {
	return SearchLink(c.cfg.Marketplace, title, c.cfg.PartnerTag)
}

// SearchLink builds a marketplace search URL for a board game title.
func SearchLink(marketplace, title, partnerTag string) string {
	if marketplace == "" {
		marketplace = "www.amazon.com"
	}
	q := url.Values{}
	q.Set("k", title+" board game")
	if partnerTag != "" {
		q.Set("tag", partnerTag)
	}
	return "https://" + marketplace + "/s?" + q.Encode()
}

type searchItemsRequest struct {
	Keywords    string   `json:"Keywords"`
	SearchIndex string   `json:"SearchIndex"`
	ItemCount   int      `json:"ItemCount"`
	PartnerTag  string   `json:"PartnerTag"`
	PartnerType string   `json:"PartnerType"`
	Marketplace string   `json:"Marketplace"`
	Resources   []string `json:"Resources"`
}

type displayValue struct {
	DisplayValue string `json:"DisplayValue"`
}

type searchItemsResponse struct {
	SearchResult struct {
		Items []struct {
			ASIN          string `json:"ASIN"`
			DetailPageURL string `json:"DetailPageURL"`
			ItemInfo      struct {
				Title      displayValue `json:"Title"`
				ByLineInfo struct {
					Brand        displayValue `json:"Brand"`
					Manufacturer displayValue `json:"Manufacturer"`
				} `json:"ByLineInfo"`
			} `json:"ItemInfo"`
			Images struct {
				Primary struct {
					Large struct {
						URL string `json:"URL"`
					} `json:"Large"`
				} `json:"Primary"`
			} `json:"Images"`
			Offers struct {
				Listings []struct {
					Price struct {
						Amount   float64 `json:"Amount"`
						Currency string  `json:"Currency"`
					} `json:"Price"`
				} `json:"Listings"`
			} `json:"Offers"`
		} `json:"Items"`
	} `json:"SearchResult"`
	Errors []struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

func (c *ProductClient) searchItems(ctx context.Context, title string) ([]Product, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(searchItemsRequest{
		Keywords:    title + " board game",
		SearchIndex: "ToysAndGames",
		ItemCount:   c.cfg.ItemCount,
		PartnerTag:  c.cfg.PartnerTag,
		PartnerType: "Associates",
		Marketplace: c.cfg.Marketplace,
		Resources: []string{
			"ItemInfo.Title",
			"ItemInfo.ByLineInfo",
			"Images.Primary.Large",
			"Offers.Listings.Price",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "amz-1.0")
	req.Header.Set("X-Amz-Target", searchTarget)
	req.Host = c.cfg.Host

	creds, err := credentials.NewStaticCredentialsProvider(c.cfg.AccessKey, c.cfg.SecretKey, "").Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	sum := sha256.Sum256(body)
	if err := c.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), productService, c.cfg.Region, c.clock.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product search failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("product API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out searchItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode product response: %w", err)
	}
	if len(out.Errors) > 0 && len(out.SearchResult.Items) == 0 {
		// NoResults is an answer, not a failure
		if out.Errors[0].Code == "NoResults" {
			return nil, nil
		}
		return nil, fmt.Errorf("product API error %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}

	products := make([]Product, 0, len(out.SearchResult.Items))
	for _, it := range out.SearchResult.Items {
		p := Product{
			ASIN:         it.ASIN,
			Title:        it.ItemInfo.Title.DisplayValue,
			Brand:        it.ItemInfo.ByLineInfo.Brand.DisplayValue,
			Manufacturer: it.ItemInfo.ByLineInfo.Manufacturer.DisplayValue,
			URL:          it.DetailPageURL,
			ImageURL:     it.Images.Primary.Large.URL,
		}
		if len(it.Offers.Listings) > 0 {
			amount := it.Offers.Listings[0].Price.Amount
			p.Amount = &amount
			p.Currency = it.Offers.Listings[0].Price.Currency
		}
		products = append(products, p)
	}
	c.logger.Debug("product search", zap.String("title", title), zap.Int("items", len(products)))
	return products, nil
}
