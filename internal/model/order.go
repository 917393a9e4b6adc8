package model

import "time"

// Order statuses.  Transitions are monotonic along
// PENDING -> PAID -> REFUNDED and PENDING -> CANCELLED; every other
// transition is rejected with a named error.
const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderCancelled = "CANCELLED"
	OrderRefunded  = "REFUNDED"
)

// Order records a purchase of one or more tickets from a single tier.
// Apart from Status and its associated timestamp/reference fields the
// record is immutable after creation: what was purchased never changes.
//
// Fields:
//  ID                 – UUID primary key.
//  OrderNumber        – human-readable, globally unique reference.
//  TierID             – tier the tickets belong to.
//  BuyerName          – purchaser display name.
//  BuyerEmail         – recipient of the ticket email.
//  Quantity           – number of tickets, >= 1.
//  UnitPriceCents     – tier price captured at purchase time.
//  TotalCents         – quantity * unit price.
//  Status             – one of the Order* constants above.
//  CredentialHash     – SHA-256 of the one-time check-in credential;
//                       the plaintext itself is never stored here.
//  PaymentRef         – external payment reference, set on confirmation.
//  PaymentConfirmedAt – when the order transitioned to PAID.
//  CancelledAt        – when the order transitioned to CANCELLED.
//  RefundedAt         – when the order transitioned to REFUNDED.
type Order struct {
	ID                 string     // orders.id
	OrderNumber        string     // orders.order_number
	TierID             uint64     // orders.tier_id
	BuyerName          string     // orders.buyer_name
	BuyerEmail         string     // orders.buyer_email
	Quantity           uint32     // orders.quantity
	UnitPriceCents     uint32     // orders.unit_price_cents
	TotalCents         uint32     // orders.total_cents
	Status             string     // orders.status
	CredentialHash     string     // orders.credential_hash
	PaymentRef         *string    // orders.payment_ref (nullable)
	PaymentConfirmedAt *time.Time // orders.payment_confirmed_at (nullable)
	CancelledAt        *time.Time // orders.cancelled_at (nullable)
	RefundedAt         *time.Time // orders.refunded_at (nullable)
	CreatedAt          time.Time  // orders.created_at
	UpdatedAt          time.Time  // orders.updated_at
}
