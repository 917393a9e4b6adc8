package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/queue"
	"github.com/avelora/ticket-office/internal/store"
)

// Sender hands a claimed ticket email to the delivery transport.  The
// AMQP publisher in internal/queue is the production implementation.
type Sender interface {
	Send(ctx context.Context, msg queue.TicketEmail) error
}

// DeliveryService drains the ticket-delivery outbox.  Delivery
// failures are recorded and retried up to model.MaxDeliveryAttempts,
// then left FAILED for manual intervention; they never roll back the
// underlying paid order and never propagate past Drain.
type DeliveryService struct {
	log    *slog.Logger
	store  store.Store
	sender Sender
}

func NewDeliveryService(log *slog.Logger, st store.Store, sender Sender) *DeliveryService {
	return &DeliveryService{log: log, store: st, sender: sender}
}

// Drain claims up to maxBatch due deliveries and attempts each one.
// Claiming is the atomic PENDING/FAILED -> PROCESSING transition in
// the store, so concurrent workers partition the pending set instead
// of double-sending.  Returns the number of successful sends.
func (s *DeliveryService) Drain(ctx context.Context, maxBatch int) int {
	claimed, err := s.store.ClaimDue(ctx, maxBatch)
	if err != nil {
		s.log.Error("claim deliveries", "error", err)
		return 0
	}

	sent := 0
	for _, d := range claimed {
		if err := s.attempt(ctx, d); err != nil {
			s.log.Warn("ticket delivery failed",
				"delivery_id", d.ID,
				"order_id", d.OrderID,
				"attempts", d.Attempts,
				"error", err,
			)
			if markErr := s.store.MarkFailed(ctx, d.ID, err.Error()); markErr != nil {
				s.log.Error("mark delivery failed", "delivery_id", d.ID, "error", markErr)
			}
			continue
		}
		// SENT and the plaintext wipe land in the same update.
		if err := s.store.MarkSent(ctx, d.ID); err != nil {
			s.log.Error("mark delivery sent", "delivery_id", d.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// ForceResend re-attempts a single delivery immediately, outside the
// worker cadence.  Once a prior send has wiped the plaintext the
// resend is impossible by design; re-issuing a new credential is the
// only way to get another ticket email.
func (s *DeliveryService) ForceResend(ctx context.Context, orderID string) error {
	d, err := s.store.DeliveryByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrDeliveryNotFound) {
			return store.ErrEmailNotQueued
		}
		return err
	}
	if d.Status == model.DeliverySent || d.CredentialPlaintext == nil {
		return store.ErrCredentialExpired
	}

	claimed, err := s.store.ClaimByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.attempt(ctx, claimed); err != nil {
		if markErr := s.store.MarkFailed(ctx, claimed.ID, err.Error()); markErr != nil {
			s.log.Error("mark delivery failed", "delivery_id", claimed.ID, "error", markErr)
		}
		return err
	}
	return s.store.MarkSent(ctx, claimed.ID)
}

// Run periodically drains the outbox until ctx is cancelled.  A single
// loop per process is enough; extra processes cooperate through the
// non-blocking claim.
func (s *DeliveryService) Run(ctx context.Context, interval time.Duration, maxBatch int) {
	s.log.Info("delivery worker started", "interval", interval, "batch", maxBatch)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("delivery worker stopped")
			return
		case <-ticker.C:
			if n := s.Drain(ctx, maxBatch); n > 0 {
				s.log.Info("drained deliveries", "sent", n)
			}
		}
	}
}

// attempt composes the ticket email for a claimed delivery and hands
// it to the transport.
func (s *DeliveryService) attempt(ctx context.Context, d model.TicketDelivery) error {
	if d.CredentialPlaintext == nil {
		return fmt.Errorf("delivery %s has no credential plaintext", d.ID)
	}
	order, err := s.store.OrderByID(ctx, d.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	tier, err := s.store.TierByID(ctx, order.TierID)
	if err != nil {
		return fmt.Errorf("load tier: %w", err)
	}
	event, err := s.store.EventByID(ctx, tier.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}

	msg := queue.TicketEmail{
		DeliveryID:  d.ID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Recipient:   d.Recipient,
		BuyerName:   order.BuyerName,
		EventName:   event.Name,
		Venue:       event.Venue,
		StartsAt:    event.StartsAt.UTC().Format(time.RFC3339),
		TierName:    tier.Name,
		Quantity:    order.Quantity,
		TotalCents:  order.TotalCents,
		Credential:  *d.CredentialPlaintext,
	}
	return s.sender.Send(ctx, msg)
}
