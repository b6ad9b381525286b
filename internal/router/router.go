package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"                           // Echo web framework
    "github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus metrics handler
    "github.com/redis/go-redis/v9"                          // Redis client for limiter and cache

    "github.com/iliyamo/bus-ticket-booking/internal/config"
    "github.com/iliyamo/bus-ticket-booking/internal/handler"
    "github.com/iliyamo/bus-ticket-booking/internal/metrics"
    "github.com/iliyamo/bus-ticket-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check used by load balancers and the Prometheus scrape
// endpoint.  HTTP metrics are recorded for every route.
func RegisterRoutes(e *echo.Echo) {
    e.Use(metrics.HTTPMetrics())
    e.GET("/healthz", handler.Health)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterTickets registers the authenticated ticket endpoints under
// /v1.  The JWT middleware validates tokens issued by the external auth
// service; the role check admits passenger-facing roles only.  The
// rate limiter guards every ticket route, and the per-user response
// cache serves repeated listing and detail reads.
func RegisterTickets(e *echo.Echo, h *handler.TicketHandler, jwtSecret string, rdb *redis.Client) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("user", "operator", "superadmin"))
    g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    g.Use(middleware.NewUserCache(h.CacheCfg, rdb))

    // List the caller's tickets with optional status filter and pagination.
    g.GET("/tickets", h.ListTickets)
    // Book a new ticket; seats are reserved with the fleet service first.
    g.POST("/tickets", h.BookTicket)
    // Fetch one of the caller's tickets by ID.
    g.GET("/tickets/:id", h.GetTicket)
    // Cancel a ticket; seats are released with the fleet service first.
    g.DELETE("/tickets/:id", h.CancelTicket)
}
