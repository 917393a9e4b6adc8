package store

import (
	"context"
	"time"

	"github.com/avelora/ticket-office/internal/model"
)

// Store is the persistence boundary of the core. Every mutating
// operation runs inside a single atomic unit of work obtained via
// Transact; reads that feed display surfaces or the outbox worker go
// through the direct methods.
//
// The MySQL implementation lives in internal/repository. Tests use an
// in-memory implementation that serializes Transact with a mutex,
// which preserves the same lock-check-write ordering.
type Store interface {
	// Transact runs fn inside a transaction. A non-nil error from fn
	// (or a panic) rolls the whole unit back; nil commits it.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// Order lookups used to resolve check-ins and webhook retries.
	OrderByID(ctx context.Context, id string) (model.Order, error)
	OrderByNumber(ctx context.Context, number string) (model.Order, error)
	OrderByCredentialHash(ctx context.Context, hash string) (model.Order, error)

	// Delivery outbox. ClaimDue atomically claims up to max rows that
	// are due for sending (PENDING or FAILED, attempts below the cap,
	// order paid, plaintext still present), marking each PROCESSING
	// and bumping its attempt counter. Rows already claimed by a
	// concurrent worker are skipped, never blocked on.
	DeliveryByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error)
	ClaimDue(ctx context.Context, max int) ([]model.TicketDelivery, error)
	// ClaimByOrder claims a single delivery for a forced resend. The
	// order must be paid and the plaintext still present; a row already
	// claimed by another sender is refused with ErrDeliveryInFlight.
	ClaimByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error)
	// MarkSent sets SENT and nulls the credential plaintext in the
	// same update. MarkFailed records the error and keeps the
	// plaintext for a later retry.
	MarkSent(ctx context.Context, deliveryID string) error
	MarkFailed(ctx context.Context, deliveryID, note string) error

	// Display and composition reads. Never consulted by the
	// reservation path.
	EventByID(ctx context.Context, id uint64) (model.Event, error)
	TierByID(ctx context.Context, id uint64) (model.Tier, error)
	TiersByEvent(ctx context.Context, eventID uint64) ([]model.Tier, error)
}

// Tx is the set of operations available inside a unit of work. Row
// locks acquired through the ForUpdate methods are held until the
// enclosing transaction commits or rolls back.
type Tx interface {
	EventByID(ctx context.Context, id uint64) (model.Event, error)

	// TierForUpdate takes an exclusive row lock on the tier; the
	// availability decision and the sold-counter update must both
	// happen under this lock.
	TierForUpdate(ctx context.Context, id uint64) (model.Tier, error)
	// AddSold adjusts the sold counter by delta. Negative deltas
	// (releases) floor at zero.
	AddSold(ctx context.Context, tierID uint64, delta int64) error

	InsertOrder(ctx context.Context, o *model.Order) error
	OrderForUpdate(ctx context.Context, id string) (model.Order, error)
	MarkOrderPaid(ctx context.Context, id, paymentRef string, at time.Time) error
	MarkOrderCancelled(ctx context.Context, id string, at time.Time) error
	MarkOrderRefunded(ctx context.Context, id string, at time.Time) error

	InsertDelivery(ctx context.Context, d *model.TicketDelivery) error
	DeliveryByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error)

	InsertCheckin(ctx context.Context, rec *model.CheckinRecord) error
	CheckinByOrder(ctx context.Context, orderID string) (model.CheckinRecord, error)
}
