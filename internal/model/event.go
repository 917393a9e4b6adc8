package model

import "time"

// Event is a sellable happening with one or more ticket tiers.
// Orders may only be created while the event is active.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – public event name.
//  Venue     – where the event takes place.
//  StartsAt  – scheduled start time in UTC.
//  Active    – whether tickets may currently be sold.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Event struct {
	ID        uint64    // events.id
	Name      string    // events.name
	Venue     string    // events.venue
	StartsAt  time.Time // events.starts_at
	Active    bool      // events.is_active
	CreatedAt time.Time // events.created_at
	UpdatedAt time.Time // events.updated_at
}

// Tier is a priced ticket category with finite capacity.  The pair of
// counters (Capacity, Sold) is the authoritative inventory ledger:
// sold <= capacity holds at all times and is enforced by the
// reservation path under a row lock, never by post-hoc correction.
//
// Fields:
//  ID         – primary key identifier.
//  EventID    – owning event.
//  Name       – tier name (e.g. "General", "VIP").
//  PriceCents – unit price in cents.
//  Capacity   – total units that exist.
//  Sold       – units currently reserved or sold.
//  Active     – whether the tier is open for sale.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Tier struct {
	ID         uint64    // tiers.id
	EventID    uint64    // tiers.event_id
	Name       string    // tiers.name
	PriceCents uint32    // tiers.price_cents
	Capacity   uint32    // tiers.capacity
	Sold       uint32    // tiers.sold
	Active     bool      // tiers.is_active
	CreatedAt  time.Time // tiers.created_at
	UpdatedAt  time.Time // tiers.updated_at
}

// Available returns the number of units still reservable.
func (t *Tier) Available() uint32 {
	if t.Sold >= t.Capacity {
		return 0
	}
	return t.Capacity - t.Sold
}
