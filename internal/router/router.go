package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"  // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9" // optional Redis client behind the cache and rate limiter

	"github.com/iliyamo/munon-registry/internal/config"     // cache and rate limit settings
	"github.com/iliyamo/munon-registry/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/munon-registry/internal/middleware" // JWT authentication, account checks, cache and rate limiting
	"github.com/iliyamo/munon-registry/internal/repository" // account lookup for RequireAccount
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers account routes.  Register and login live under
// /v1/auth and need no token; /v1/me requires a valid access token for a
// registered account.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, accounts repository.AccountStore, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	v1 := e.Group("/v1")
	v1.GET("/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireAccount(accounts))
	// Development helper listing every identity that can call the registry.
	v1.GET("/accounts", a.ListAccounts)
}

// Deps carries what RegisterRegistry needs beyond the handler.  Redis may be
// nil, in which case caching and rate limiting are disabled.
type Deps struct {
	JWTSecret string
	Accounts  repository.AccountStore
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// RegisterRegistry mounts the hackathon registry.  Writes run behind JWT
// auth, the account check, the token bucket and the cache purge; reads are
// public and served through the Redis cache.
func RegisterRegistry(e *echo.Echo, h *handler.RegistryHandler, d Deps) {
	write := []echo.MiddlewareFunc{
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireAccount(d.Accounts),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
		middleware.PurgeOnWrite(d.Cache, d.Redis),
	}
	read := middleware.NewRedisCache(d.Cache, d.Redis)

	g := e.Group("/v1")
	g.POST("/hackathons", h.CreateHackathon, write...)
	g.POST("/hackathons/:id/join", h.Join, write...)
	g.POST("/hackathons/:id/sponsor", h.Sponsor, write...)
	g.POST("/hackathons/:id/finish", h.FinishHackathon, write...)

	// "/hackathons/count" is a static route and wins over ":id".
	g.GET("/hackathons/count", h.Count, read)
	g.GET("/hackathons/:id", h.Get, read)
	g.GET("/hackathons/:id/participants/:address", h.ParticipantHasJoined, read)
	g.GET("/registry/balance", h.Balance, read)
	g.GET("/registry/events", h.Events, read)
}
