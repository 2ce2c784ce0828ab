package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardgame-recommender/metrics"
	"boardgame-recommender/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ok(c *fiber.Ctx) error { return c.SendString("ok") }

func TestAdminAuth(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/run", AdminAuth("s3cret", zap.NewNop()), ok)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer", "Bearer s3cret", fiber.StatusOK},
		{"raw token", "s3cret", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/admin/run", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAdminAuth_DisabledWithoutToken(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/run", AdminAuth("", zap.NewNop()), ok)

	req := httptest.NewRequest("POST", "/admin/run", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := ratelimit.NewLimiter(2, time.Minute, clock, nil)

	app := fiber.New()
	app.Use(RequestContext(true))
	app.Use(RateLimit(limiter, zap.NewNop()))
	app.Get("/", ok)

	send := func(ip string) *http.Response {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	before := testutil.ToFloat64(metrics.RateLimitRejections)

	assert.Equal(t, fiber.StatusOK, send("1.1.1.1").StatusCode)
	assert.Equal(t, fiber.StatusOK, send("1.1.1.1").StatusCode)

	third := send("1.1.1.1")
	assert.Equal(t, fiber.StatusTooManyRequests, third.StatusCode)
	assert.Equal(t, "60", third.Header.Get("Retry-After"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejections))

	// other clients have their own budget
	assert.Equal(t, fiber.StatusOK, send("2.2.2.2").StatusCode)

	clock.Advance(time.Minute + time.Second)
	assert.Equal(t, fiber.StatusOK, send("1.1.1.1").StatusCode)
}

// keyRecorder remembers every key the limiter stored.
type keyRecorder struct {
	*ratelimit.MemoryStore
	keys []string
}

func (r *keyRecorder) Record(key string, at time.Time) {
	r.keys = append(r.keys, key)
	r.MemoryStore.Record(key, at)
}

func TestRateLimit_ForwardedClientsKeepSeparateBudgets(t *testing.T) {
	store := &keyRecorder{MemoryStore: ratelimit.NewMemoryStore()}
	limiter := ratelimit.NewLimiter(1, time.Minute, clockwork.NewFakeClock(), store)

	app := fiber.New()
	app.Use(RequestContext(true))
	app.Use(RateLimit(limiter, zap.NewNop()))
	app.Get("/", ok)

	send := func(ip string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, send("10.0.0.1"))
	assert.Equal(t, fiber.StatusOK, send("99.9.9.9"))
	assert.Equal(t, []string{"10.0.0.1", "99.9.9.9"}, store.keys)

	// each client has spent its single request
	assert.Equal(t, fiber.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("99.9.9.9"))
	assert.Len(t, store.Hits("10.0.0.1", time.Time{}), 1)
	assert.Len(t, store.Hits("99.9.9.9", time.Time{}), 1)
}

func TestRequestContext_SetsRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestContext(false))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestID(c)) })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(HeaderRequestID), 36)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(HeaderRequestID))
}

func TestMetrics_ObservesRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/api/games/:id", ok)

	_, err := app.Test(httptest.NewRequest("GET", "/api/games/g1", nil))
	require.NoError(t, err)

	n := testutil.CollectAndCount(metrics.HTTPRequestDuration, "recommender_http_request_duration_seconds")
	assert.GreaterOrEqual(t, n, 1)
}
