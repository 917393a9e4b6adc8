package model

import "time"

// CheckinRecord marks a ticket as consumed at the gate.  There is at
// most one row per order, ever, enforced by a unique key on order_id
// plus the order row lock taken during check-in.  Records are never
// updated or deleted in normal operation.
type CheckinRecord struct {
	ID          string    // checkin_records.id
	OrderID     string    // checkin_records.order_id (unique)
	CheckedInAt time.Time // checkin_records.checked_in_at
	CheckedInBy string    // checkin_records.checked_in_by (operator email, may be empty)
}
