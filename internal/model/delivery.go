package model

import "time"

// Delivery statuses.
const (
	DeliveryPending    = "PENDING"
	DeliveryProcessing = "PROCESSING"
	DeliverySent       = "SENT"
	DeliveryFailed     = "FAILED"
)

// MaxDeliveryAttempts bounds retries; a delivery that fails this many
// times stays FAILED for manual intervention and is never retried by
// the worker.
const MaxDeliveryAttempts = 5

// TicketDelivery is an outbox row: a durable obligation to email the
// ticket for an order.  It is created in the same transaction as the
// order, holding the one-time credential plaintext, and drained by a
// background worker once the order is paid.
//
// CredentialPlaintext is security sensitive: it is nulled in the same
// update that marks the row SENT and can never be re-derived from the
// stored hash.  A row whose plaintext is gone can only be resolved by
// issuing a brand new credential.
type TicketDelivery struct {
	ID                  string     // ticket_deliveries.id
	OrderID             string     // ticket_deliveries.order_id
	Recipient           string     // ticket_deliveries.recipient
	Status              string     // ticket_deliveries.status
	Attempts            uint32     // ticket_deliveries.attempts
	LastAttemptAt       *time.Time // ticket_deliveries.last_attempt_at (nullable)
	LastError           *string    // ticket_deliveries.last_error (nullable)
	CredentialPlaintext *string    // ticket_deliveries.credential_plaintext (nullable)
	CreatedAt           time.Time  // ticket_deliveries.created_at
	UpdatedAt           time.Time  // ticket_deliveries.updated_at
}
