// Package router wires the HTTP surface: public purchase and browse
// endpoints, the payment webhook, and the staff-protected gate and
// admin groups.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avelora/ticket-office/internal/handler"
	"github.com/avelora/ticket-office/internal/middleware"
	"github.com/avelora/ticket-office/internal/model"
)

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Orders       *handler.OrderHandler
	Checkin      *handler.CheckinHandler
	Admin        *handler.AdminHandler
	Availability *handler.AvailabilityHandler
}

// Register mounts all routes on e.  rateLimit is applied to the
// traffic-sensitive endpoints (order creation and check-in); pass a
// pass-through middleware to disable limiting.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Staff login.
	e.POST("/v1/auth/login", h.Auth.Login)

	// Public purchase flow.
	e.GET("/v1/events/:id/availability", h.Availability.Availability)
	e.POST("/v1/orders", h.Orders.Create, rateLimit)
	e.GET("/v1/orders/:number", h.Orders.Get)
	e.POST("/v1/orders/:number/cancel", h.Orders.Cancel)

	// Payment provider callback.  Authenticity is checked upstream by
	// the gateway; the handler itself is safe to replay.
	e.POST("/v1/payments/webhook", h.Orders.ConfirmPayment)

	// Gate scanners.
	gate := e.Group("/v1/checkin")
	gate.Use(middleware.JWTAuth(jwtSecret))
	gate.Use(middleware.RequireRole(model.RoleGate, model.RoleAdmin))
	gate.POST("", h.Checkin.Checkin, rateLimit)

	// Back office.
	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/events", h.Admin.CreateEvent)
	admin.POST("/staff", h.Admin.CreateStaff)
	admin.POST("/orders/:id/refund", h.Admin.Refund)
	admin.POST("/orders/:id/resend", h.Admin.Resend)
}
