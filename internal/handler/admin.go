package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/repository"
	"github.com/avelora/ticket-office/internal/service"
	"github.com/avelora/ticket-office/internal/store"
)

// AdminHandler covers the back-office operations: refunds, forcing a
// ticket email resend and creating events with their tiers.  All
// routes require the ADMIN role.
type AdminHandler struct {
	Orders     *service.OrderService
	Deliveries *service.DeliveryService
	Events     *repository.EventAdminRepo
	Staff      *repository.StaffRepo
	BcryptCost int
}

func NewAdminHandler(orders *service.OrderService, deliveries *service.DeliveryService, events *repository.EventAdminRepo, staff *repository.StaffRepo, bcryptCost int) *AdminHandler {
	if orders == nil || deliveries == nil || events == nil || staff == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Orders: orders, Deliveries: deliveries, Events: events, Staff: staff, BcryptCost: bcryptCost}
}

// Refund handles POST /v1/admin/orders/:id/refund.  The admin asserts
// the money already went back through the payment provider; this only
// records the transition and releases capacity.
func (h *AdminHandler) Refund(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
	}
	order, err := h.Orders.Refund(c.Request().Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		case errors.Is(err, store.ErrCannotRefundNonPaid):
			return c.JSON(http.StatusConflict, echo.Map{"error": "only paid orders can be refunded"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, viewOrder(order))
}

// Resend handles POST /v1/admin/orders/:id/resend.  It re-attempts the
// ticket email immediately.  Once the original send wiped the
// credential plaintext there is nothing left to resend; 410 tells the
// admin to issue a fresh order instead.
func (h *AdminHandler) Resend(c echo.Context) error {
	orderID := c.Param("id")
	if orderID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order id is required"})
	}
	err := h.Deliveries.ForceResend(c.Request().Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmailNotQueued):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no ticket email queued for this order"})
		case errors.Is(err, store.ErrCredentialExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "credential already delivered and wiped"})
		case errors.Is(err, store.ErrDeliveryInFlight):
			return c.JSON(http.StatusConflict, echo.Map{"error": "delivery already in progress"})
		case errors.Is(err, store.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		case errors.Is(err, store.ErrNotPaid):
			return c.JSON(http.StatusConflict, echo.Map{"error": "order is not paid"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "delivery failed", "detail": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "sent"})
}

// CreateStaff handles POST /v1/admin/staff.  Gate and admin accounts
// are provisioned by an existing admin; the first admin is seeded
// directly in the database.
func (h *AdminHandler) CreateStaff(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" || len(body.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and a password of at least 8 characters are required"})
	}
	if body.Role != model.RoleGate && body.Role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be GATE or ADMIN"})
	}

	id, err := h.Staff.Create(c.Request().Context(), body.Email, body.Password, body.Role, h.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"staff_id": id,
		"email":    body.Email,
		"role":     body.Role,
	})
}

// CreateEvent handles POST /v1/admin/events.  The event and all its
// tiers are created in one transaction.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var body struct {
		Name     string    `json:"name"`
		Venue    string    `json:"venue"`
		StartsAt time.Time `json:"starts_at"`
		Active   bool      `json:"active"`
		Tiers    []struct {
			Name       string `json:"name"`
			PriceCents uint32 `json:"price_cents"`
			Capacity   uint32 `json:"capacity"`
			Active     bool   `json:"active"`
		} `json:"tiers"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" || body.Venue == "" || body.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, venue and starts_at are required"})
	}
	if len(body.Tiers) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one tier is required"})
	}
	for _, t := range body.Tiers {
		if t.Name == "" || t.Capacity == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "every tier needs a name and a positive capacity"})
		}
	}

	event := model.Event{
		Name:     body.Name,
		Venue:    body.Venue,
		StartsAt: body.StartsAt.UTC(),
		Active:   body.Active,
	}
	tiers := make([]model.Tier, 0, len(body.Tiers))
	for _, t := range body.Tiers {
		tiers = append(tiers, model.Tier{
			Name:       t.Name,
			PriceCents: t.PriceCents,
			Capacity:   t.Capacity,
			Active:     t.Active,
		})
	}

	if err := h.Events.CreateWithTiers(c.Request().Context(), &event, tiers); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	out := make([]echo.Map, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, echo.Map{
			"tier_id":     t.ID,
			"name":        t.Name,
			"price_cents": t.PriceCents,
			"capacity":    t.Capacity,
			"active":      t.Active,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"event_id":  event.ID,
		"name":      event.Name,
		"venue":     event.Venue,
		"starts_at": event.StartsAt,
		"active":    event.Active,
		"tiers":     out,
	})
}
