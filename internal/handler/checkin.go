package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/avelora/ticket-office/internal/service"
	"github.com/avelora/ticket-office/internal/store"
)

// CheckinHandler serves the gate scanners.  Routes behind it require a
// staff JWT with the GATE or ADMIN role.
type CheckinHandler struct {
	Checkins *service.CheckinService
}

func NewCheckinHandler(checkins *service.CheckinService) *CheckinHandler {
	if checkins == nil {
		panic("nil service passed to NewCheckinHandler")
	}
	return &CheckinHandler{Checkins: checkins}
}

// Checkin handles POST /v1/checkin.  The identifier is whatever the
// scanner read: an order number or the QR credential.  A second scan
// of the same ticket answers 409 with the original check-in time so
// the gate can show who got in and when.
func (h *CheckinHandler) Checkin(c echo.Context) error {
	var body struct {
		Identifier string `json:"identifier"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Identifier == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "identifier is required"})
	}

	operator, _ := c.Get("email").(string)
	rec, err := h.Checkins.Checkin(c.Request().Context(), body.Identifier, operator)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
		case errors.Is(err, store.ErrNotPaid):
			return c.JSON(http.StatusConflict, echo.Map{"error": "order is not paid"})
		case errors.Is(err, store.ErrAlreadyCheckedIn):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":         "already checked in",
				"checked_in_at": rec.CheckedInAt,
				"checked_in_by": rec.CheckedInBy,
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order_id":      rec.OrderID,
		"checked_in_at": rec.CheckedInAt,
		"checked_in_by": rec.CheckedInBy,
	})
}
