// Package store defines the persistence contract for the order,
// inventory, delivery and check-in core, together with the sentinel
// errors used as business signals. Handlers translate these into
// deterministic HTTP responses; services return them unwrapped so
// callers can rely on errors.Is.
package store

import "errors"

// Not-found signals: the referenced entity does not exist.
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrTierNotFound     = errors.New("tier not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrCheckinNotFound  = errors.New("checkin record not found")
)

// Precondition signals: the entity exists but is in the wrong state
// for the requested transition.
var (
	ErrEventNotActive         = errors.New("event not active")
	ErrTierNotActive          = errors.New("tier not active")
	ErrOrderNotPending        = errors.New("order not pending")
	ErrCannotCancelNonPending = errors.New("cannot cancel non-pending order")
	ErrCannotRefundNonPaid    = errors.New("cannot refund non-paid order")
	ErrNotPaid                = errors.New("order not paid")
)

// ErrInsufficientInventory aborts order creation when the tier cannot
// cover the requested quantity. The enclosing transaction rolls back
// so no partial order is ever left behind.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// ErrAlreadyCheckedIn is returned when a second check-in is attempted
// for an order. The winning record (with its original timestamp) is
// returned alongside it.
var ErrAlreadyCheckedIn = errors.New("already checked in")

// Delivery signals for forced resends.
var (
	ErrEmailNotQueued    = errors.New("email not queued")
	ErrCredentialExpired = errors.New("credential expired")
	// ErrDeliveryInFlight refuses a claim on a row another sender is
	// already processing. Claiming it anyway would email the one-time
	// credential twice.
	ErrDeliveryInFlight = errors.New("delivery already in flight")
)
