package router // package router defines how HTTP routes are registered for the gateway

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing

	"github.com/ticketchief/checkout-gateway/internal/handler"    // handlers implement the gateway endpoints
	"github.com/ticketchief/checkout-gateway/internal/middleware" // middleware provides JWT auth and rate limiting
)

// RegisterRoutes wires every gateway route onto the provided Echo instance.
// Login and the health check are open; everything else sits behind the JWT
// middleware, and the checkout actions additionally behind the rate limiter
// (a no-op middleware when Redis is absent).
func RegisterRoutes(e *echo.Echo, h *handler.CheckoutHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	// Health endpoint for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// Login does not require a session; it creates one.
	e.POST("/v1/login", h.Login)

	// Protected routes carry the shopper's session token.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	auth.GET("/events/:id/seats", h.Seats)
	auth.POST("/events/:id/selection", h.ValidateSelection)
	auth.GET("/checkouts", h.History)

	// Checkout takes holds on the backends, so it is rate limited.
	auth.POST("/events/:id/checkout", h.Checkout, rateLimit)
	auth.POST("/checkout/card", h.ResubmitCard, rateLimit)
}
