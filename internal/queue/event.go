// Package queue defines the ticket email payload exchanged over the
// message broker plus the publisher and consumer that move it.
package queue

// TicketEmail is published when the outbox worker claims a delivery
// for a paid order.  It carries everything the consumer needs to
// render and send the ticket, including the one-time credential,
// which exists nowhere else once the outbox row is wiped.
type TicketEmail struct {
	DeliveryID  string `json:"delivery_id"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Recipient   string `json:"recipient"`
	BuyerName   string `json:"buyer_name"`
	EventName   string `json:"event_name"`
	Venue       string `json:"venue"`
	StartsAt    string `json:"starts_at"`
	TierName    string `json:"tier_name"`
	Quantity    uint32 `json:"quantity"`
	TotalCents  uint32 `json:"total_cents"`
	Credential  string `json:"credential"`
}
