package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/munon-registry/internal/config"
	"github.com/iliyamo/munon-registry/internal/model"
	"github.com/iliyamo/munon-registry/internal/repository"
	"github.com/iliyamo/munon-registry/internal/utils"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func do(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		return c.String(http.StatusOK, CallerAddress(c))
	}, JWTAuth("secret"))

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", "garbage").Code)

	tok, err := utils.NewAccessToken("secret", "0xabc", 5)
	require.NoError(t, err)
	rec := do(e, http.MethodGet, "/me", tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0xabc", rec.Body.String())
}

func TestRequireAccount(t *testing.T) {
	accounts := repository.NewMemoryAccountRepo()
	require.NoError(t, accounts.Create(context.Background(), model.Account{Address: "0xabc", PasswordHash: "h"}))

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		JWTAuth("secret"), RequireAccount(accounts))

	known, err := utils.NewAccessToken("secret", "0xabc", 5)
	require.NoError(t, err)
	unknown, err := utils.NewAccessToken("secret", "0xdef", 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, do(e, http.MethodGet, "/x", known.Token).Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/x", unknown.Token).Code)
}

func TestRedisCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "path_query", Prefix: "test:cache"}

	pot := 0
	e := echo.New()
	e.GET("/v1/hackathons/:id", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id"), "pot": pot})
	}, NewRedisCache(cfg, rdb))
	e.POST("/v1/hackathons/:id/sponsor", func(c echo.Context) error {
		pot++
		return c.NoContent(http.StatusNoContent)
	}, PurgeOnWrite(cfg, rdb))

	first := do(e, http.MethodGet, "/v1/hackathons/1", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := do(e, http.MethodGet, "/v1/hackathons/1", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, second.Header().Get(echo.HeaderContentType))

	other := do(e, http.MethodGet, "/v1/hackathons/2", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Contains(t, other.Body.String(), `"id":"2"`)

	require.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/v1/hackathons/1/sponsor", "").Code)

	after := do(e, http.MethodGet, "/v1/hackathons/1", "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Contains(t, after.Body.String(), `"pot":1`)
}

func TestRedisCacheDisabledWithoutClient(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, NewRedisCache(cfg, nil))
	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, "ok", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestRedisCacheReadOverlappingWrite(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "path_query", Prefix: "test:cache"}

	var (
		pot    atomic.Int64
		stall  atomic.Bool
		read   = make(chan struct{})
		resume = make(chan struct{})
	)
	e := echo.New()
	e.GET("/v1/hackathons/:id", func(c echo.Context) error {
		v := pot.Load()
		if stall.CompareAndSwap(true, false) {
			close(read)
			<-resume
		}
		return c.JSON(http.StatusOK, echo.Map{"pot": v})
	}, NewRedisCache(cfg, rdb))
	e.POST("/v1/hackathons/:id/sponsor", func(c echo.Context) error {
		pot.Add(1)
		return c.NoContent(http.StatusNoContent)
	}, PurgeOnWrite(cfg, rdb))

	stall.Store(true)
	slow := make(chan *httptest.ResponseRecorder, 1)
	go func() { slow <- do(e, http.MethodGet, "/v1/hackathons/1", "") }()

	<-read
	require.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/v1/hackathons/1/sponsor", "").Code)
	close(resume)
	assert.Contains(t, (<-slow).Body.String(), `"pot":0`)

	after := do(e, http.MethodGet, "/v1/hackathons/1", "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Contains(t, after.Body.String(), `"pot":1`)

	again := do(e, http.MethodGet, "/v1/hackathons/1", "")
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Contains(t, again.Body.String(), `"pot":1`)
}

func TestRedisCacheSeparatesFormats(t *testing.T) {
	for _, strategy := range []string{"path", "method_path", "path_query", "method_path_query"} {
		t.Run(strategy, func(t *testing.T) {
			_, rdb := newRedis(t)
			cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: strategy, Prefix: "test:cache"}

			e := echo.New()
			e.GET("/v1/hackathons/:id", func(c echo.Context) error {
				if c.QueryParam("format") == "tuple" {
					return c.JSON(http.StatusOK, []any{"name", 1})
				}
				return c.JSON(http.StatusOK, echo.Map{"name": "name", "status": 1})
			}, NewRedisCache(cfg, rdb))

			record := do(e, http.MethodGet, "/v1/hackathons/1", "")
			require.Equal(t, "MISS", record.Header().Get("X-Cache"))

			tuple := do(e, http.MethodGet, "/v1/hackathons/1?format=tuple", "")
			assert.Equal(t, "MISS", tuple.Header().Get("X-Cache"))
			assert.JSONEq(t, `["name",1]`, tuple.Body.String())

			cached := do(e, http.MethodGet, "/v1/hackathons/1", "")
			assert.Equal(t, "HIT", cached.Header().Get("X-Cache"))
			assert.JSONEq(t, `{"name":"name","status":1}`, cached.Body.String())
		})
	}
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "user_route",
		Prefix:         "test:rl",
	}
	e := echo.New()
	e.POST("/v1/hackathons", func(c echo.Context) error { return c.NoContent(http.StatusCreated) },
		JWTAuth("secret"), NewTokenBucket(cfg, rdb))

	alice, err := utils.NewAccessToken("secret", "0xa", 5)
	require.NoError(t, err)
	bob, err := utils.NewAccessToken("secret", "0xb", 5)
	require.NoError(t, err)

	first := do(e, http.MethodPost, "/v1/hackathons", alice.Token)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/hackathons", alice.Token).Code)

	blocked := do(e, http.MethodPost, "/v1/hackathons", alice.Token)
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/hackathons", bob.Token).Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour, Prefix: "rl"}

	e := echo.New()
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, rdb))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do(e, http.MethodPost, "/x", "").Code)
	}
}
