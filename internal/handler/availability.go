package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avelora/ticket-office/internal/store"
)

// availabilityTTL bounds how stale the public counts may be.  The
// numbers are display-only; the purchase path recomputes availability
// under the tier row lock and never reads this cache.
const availabilityTTL = 5 * time.Second

// AvailabilityHandler serves the public per-event availability view,
// optionally short-cached in Redis to shield the database from
// on-sale traffic spikes.
type AvailabilityHandler struct {
	Store store.Store
	Redis *redis.Client // nil disables caching
	Log   *slog.Logger
}

func NewAvailabilityHandler(st store.Store, rdb *redis.Client, log *slog.Logger) *AvailabilityHandler {
	if st == nil {
		panic("nil store passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Store: st, Redis: rdb, Log: log}
}

type tierAvailability struct {
	TierID     uint64 `json:"tier_id"`
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
	Capacity   uint32 `json:"capacity"`
	Available  uint32 `json:"available"`
	Active     bool   `json:"active"`
}

type availabilityView struct {
	EventID  uint64             `json:"event_id"`
	Name     string             `json:"name"`
	Venue    string             `json:"venue"`
	StartsAt time.Time          `json:"starts_at"`
	Active   bool               `json:"active"`
	Tiers    []tierAvailability `json:"tiers"`
	AsOf     time.Time          `json:"as_of"`
}

// Availability handles GET /v1/events/:id/availability.
func (h *AvailabilityHandler) Availability(c echo.Context) error {
	eventID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || eventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx := c.Request().Context()
	key := "availability:event:" + strconv.FormatUint(eventID, 10)

	if h.Redis != nil {
		if cached, err := h.Redis.Get(ctx, key).Bytes(); err == nil {
			var view availabilityView
			if json.Unmarshal(cached, &view) == nil {
				return c.JSON(http.StatusOK, view)
			}
		}
	}

	view, err := h.load(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if h.Redis != nil {
		if buf, err := json.Marshal(view); err == nil {
			if err := h.Redis.Set(ctx, key, buf, availabilityTTL).Err(); err != nil && h.Log != nil {
				h.Log.Warn("availability cache write failed", "event_id", eventID, "error", err)
			}
		}
	}
	return c.JSON(http.StatusOK, view)
}

func (h *AvailabilityHandler) load(ctx context.Context, eventID uint64) (availabilityView, error) {
	event, err := h.Store.EventByID(ctx, eventID)
	if err != nil {
		return availabilityView{}, err
	}
	tiers, err := h.Store.TiersByEvent(ctx, eventID)
	if err != nil {
		return availabilityView{}, err
	}
	view := availabilityView{
		EventID:  event.ID,
		Name:     event.Name,
		Venue:    event.Venue,
		StartsAt: event.StartsAt,
		Active:   event.Active,
		Tiers:    make([]tierAvailability, 0, len(tiers)),
		AsOf:     time.Now().UTC(),
	}
	for _, t := range tiers {
		view.Tiers = append(view.Tiers, tierAvailability{
			TierID:     t.ID,
			Name:       t.Name,
			PriceCents: t.PriceCents,
			Capacity:   t.Capacity,
			Available:  t.Available(),
			Active:     t.Active,
		})
	}
	return view, nil
}
