package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/service"
	"github.com/avelora/ticket-office/internal/store"
)

// OrderHandler exposes the purchase flow: creation, the payment
// provider webhook and buyer-initiated cancellation.
type OrderHandler struct {
	Orders *service.OrderService
	Store  store.Store
}

func NewOrderHandler(orders *service.OrderService, st store.Store) *OrderHandler {
	if orders == nil || st == nil {
		panic("nil dependency passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: orders, Store: st}
}

// orderView is the wire shape of an order.  The credential hash never
// leaves the service.
type orderView struct {
	OrderID        string     `json:"order_id"`
	OrderNumber    string     `json:"order_number"`
	TierID         uint64     `json:"tier_id"`
	BuyerName      string     `json:"buyer_name"`
	Quantity       uint32     `json:"quantity"`
	UnitPriceCents uint32     `json:"unit_price_cents"`
	TotalCents     uint32     `json:"total_cents"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
}

func viewOrder(o model.Order) orderView {
	return orderView{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		TierID:         o.TierID,
		BuyerName:      o.BuyerName,
		Quantity:       o.Quantity,
		UnitPriceCents: o.UnitPriceCents,
		TotalCents:     o.TotalCents,
		Status:         o.Status,
		CreatedAt:      o.CreatedAt,
		PaidAt:         o.PaymentConfirmedAt,
		CancelledAt:    o.CancelledAt,
		RefundedAt:     o.RefundedAt,
	}
}

// Create handles POST /v1/orders.  On success it returns 201 with the
// new order and the credential plaintext; this response is the only
// place the plaintext is ever shown to the buyer outside the ticket
// email.
func (h *OrderHandler) Create(c echo.Context) error {
	var body struct {
		TierID     uint64 `json:"tier_id"`
		Quantity   uint32 `json:"quantity"`
		BuyerName  string `json:"buyer_name"`
		BuyerEmail string `json:"buyer_email"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TierID == 0 || body.Quantity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tier_id and quantity are required"})
	}
	if body.BuyerName == "" || body.BuyerEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "buyer_name and buyer_email are required"})
	}

	created, err := h.Orders.Create(c.Request().Context(), body.TierID,
		service.Buyer{Name: body.BuyerName, Email: body.BuyerEmail}, body.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTierNotFound), errors.Is(err, store.ErrEventNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "tier not found"})
		case errors.Is(err, store.ErrEventNotActive), errors.Is(err, store.ErrTierNotActive):
			return c.JSON(http.StatusConflict, echo.Map{"error": "not on sale"})
		case errors.Is(err, store.ErrInsufficientInventory):
			return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient inventory"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"order":      viewOrder(created.Order),
		"credential": created.Credential,
	})
}

// Get handles GET /v1/orders/:number and returns the order by its
// public order number.
func (h *OrderHandler) Get(c echo.Context) error {
	number := c.Param("number")
	if number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order number is required"})
	}
	order, err := h.Store.OrderByNumber(c.Request().Context(), number)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, viewOrder(order))
}

// ConfirmPayment handles POST /v1/payments/webhook.  The payment
// provider retries this callback, so a replay on an already paid order
// answers 200 with already_paid=true and changes nothing.
func (h *OrderHandler) ConfirmPayment(c echo.Context) error {
	var body struct {
		OrderID    string `json:"order_id"`
		PaymentRef string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.OrderID == "" || body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order_id and payment_ref are required"})
	}

	order, alreadyPaid, err := h.Orders.ConfirmPayment(c.Request().Context(), body.OrderID, body.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		case errors.Is(err, store.ErrOrderNotPending):
			return c.JSON(http.StatusConflict, echo.Map{"error": "order is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order":        viewOrder(order),
		"already_paid": alreadyPaid,
	})
}

// Cancel handles POST /v1/orders/:number/cancel.  The public surface
// is keyed by order number; the internal ID never leaves the API.
func (h *OrderHandler) Cancel(c echo.Context) error {
	number := c.Param("number")
	if number == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order number is required"})
	}
	ctx := c.Request().Context()
	order, err := h.Store.OrderByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	cancelled, err := h.Orders.Cancel(ctx, order.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		case errors.Is(err, store.ErrCannotCancelNonPending):
			return c.JSON(http.StatusConflict, echo.Map{"error": "only pending orders can be cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, viewOrder(cancelled))
}
