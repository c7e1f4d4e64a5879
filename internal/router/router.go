// Package router wires the booking API's HTTP routes to their handlers
// and applies the middleware each route group needs.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/minhvu/cinema-booking/internal/config"
	"github.com/minhvu/cinema-booking/internal/handler"
	"github.com/minhvu/cinema-booking/internal/middleware"
)

// Deps bundles everything route registration needs.  Redis may be nil, in
// which case the rate limiter and response cache quietly disable
// themselves.
type Deps struct {
	Booking   *handler.BookingHandler
	Catalog   *handler.CatalogHandler
	Redis     *redis.Client
	JWTSecret string
}

// Register sets up every route of the booking API on the provided Echo
// instance.
func Register(e *echo.Echo, d Deps) {
	// Liveness probe for load balancers.
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.OptionalIdentity(d.JWTSecret))

	// Catalog reads.  Cached briefly; the write path revalidates under
	// row locks so a stale hit can at worst cause one extra 409.
	cache := middleware.ResponseCache(config.LoadCacheConfig(), d.Redis)
	v1.GET("/screenings/:id/seats", d.Catalog.SeatMap, cache)
	v1.GET("/combos", d.Catalog.ComboMenu, cache)
	v1.GET("/customers/:id/points", d.Catalog.PointsBalance)

	// Session lifecycle.  Creation is the only rate-limited route since
	// it is the one that ties up inventory.
	limit := middleware.RateLimit(config.LoadRateLimitConfig(), d.Redis)
	v1.POST("/screenings/:id/sessions", d.Booking.CreateSession, limit)
	v1.GET("/sessions/:code", d.Booking.GetSummary)
	v1.PUT("/sessions/:code/combos", d.Booking.ReplaceCombos)
	v1.POST("/sessions/:code/points", d.Booking.RedeemPoints)
	v1.POST("/sessions/:code/checkout", d.Booking.Checkout)
	v1.DELETE("/sessions/:code", d.Booking.CancelSession)

	// Provider redirect leg.  No identity middleware: the customer may
	// come back in a fresh browser context with no token at all.
	e.GET("/v1/payment/return", d.Booking.PaymentReturn)
}
