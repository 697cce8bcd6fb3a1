package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/coach-scheduling/internal/config"
	"github.com/iliyamo/coach-scheduling/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/coach-scheduling/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/coach-scheduling/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: register, login,
	// refresh and logout-by-refresh-token.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token and returns a new pair.
	g.POST("/refresh", a.Refresh)
	// Logout accepts a refresh_token in the body; with a valid bearer and
	// no body it revokes every session of the caller.
	g.POST("/logout", a.Logout)

	// Protected group: every handler behind it sees validated claims.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterScheduling wires the availability, settings, booking and
// reminder endpoints.  Read endpoints sit behind the Redis response
// cache; booking creation sits behind the token-bucket rate limiter so
// one client cannot hammer the slot race.  The reminder route is
// registered outside the JWT group because cron authenticates with the
// shared secret header instead of a bearer token.
func RegisterScheduling(e *echo.Echo, cfg config.Config, av *handler.AvailabilityHandler, bk *handler.BookingHandler, rm *handler.ReminderHandler, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))
	auth.Use(middleware.RequireRole(model.RoleCustomer, model.RoleInstructor, model.RoleAdmin))

	// Availability: the slot listing is read-heavy and cacheable for a few
	// seconds; writes are instructor/admin only (ownership is enforced in
	// the handler via Actor.Manages, the role gate here is coarse).
	auth.GET("/availability", av.GetSlots, middleware.NewRedisCache(cacheCfg, rdb))
	auth.PUT("/availability", av.PutAvailability,
		middleware.RequireRole(model.RoleInstructor, model.RoleAdmin))
	auth.GET("/scheduling-settings", av.GetSettings)
	auth.PUT("/scheduling-settings", av.PutSettings,
		middleware.RequireRole(model.RoleInstructor, model.RoleAdmin))

	// Bookings.
	auth.POST("/bookings", bk.Create, middleware.NewTokenBucket(rateCfg, rdb))
	auth.GET("/bookings", bk.List)
	auth.GET("/bookings/:id", bk.Get)
	auth.PATCH("/bookings/:id", bk.Patch)

	// Cron entry point: secret header or admin bearer, checked inside the
	// handler so an unauthenticated cron job is not rejected by JWTAuth.
	e.POST("/v1/bookings/reminders", rm.Dispatch)
}
