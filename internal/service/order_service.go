// Package service implements the order, delivery and check-in core on
// top of the store contract.  Every mutating entry point locks the one
// row it is about to change, branches on current status, then writes,
// which makes each operation safe to retry verbatim after network
// failures, webhook redeliveries or double-clicks.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/ticket-office/internal/credential"
	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

// Buyer identifies the purchaser on a new order.
type Buyer struct {
	Name  string
	Email string
}

// CreatedOrder is returned from Create: the persisted order plus the
// one-time credential plaintext.  The plaintext is not retrievable
// again through this service; it lives only in the delivery outbox
// until the ticket email is sent.
type CreatedOrder struct {
	Order      model.Order
	Credential string
}

// OrderService drives the order state machine and the capacity ledger.
type OrderService struct {
	log   *slog.Logger
	store store.Store
}

func NewOrderService(log *slog.Logger, st store.Store) *OrderService {
	return &OrderService{log: log, store: st}
}

// Create reserves capacity and creates a PENDING order in one atomic
// unit.  The tier row is locked first; availability is recomputed
// under that lock and the sold counter is incremented before the lock
// is released.  If anything fails the transaction rolls back and no
// order, delivery row or counter change survives.
func (s *OrderService) Create(ctx context.Context, tierID uint64, buyer Buyer, quantity uint32) (CreatedOrder, error) {
	if quantity < 1 {
		return CreatedOrder{}, fmt.Errorf("quantity must be at least 1")
	}

	cred, err := credential.Issue()
	if err != nil {
		return CreatedOrder{}, fmt.Errorf("issue credential: %w", err)
	}

	var created model.Order
	err = s.store.Transact(ctx, func(tx store.Tx) error {
		tier, err := tx.TierForUpdate(ctx, tierID)
		if err != nil {
			return err
		}
		event, err := tx.EventByID(ctx, tier.EventID)
		if err != nil {
			return err
		}
		if !event.Active {
			return store.ErrEventNotActive
		}
		if !tier.Active {
			return store.ErrTierNotActive
		}
		if uint64(tier.Available()) < uint64(quantity) {
			return store.ErrInsufficientInventory
		}
		if err := tx.AddSold(ctx, tierID, int64(quantity)); err != nil {
			return err
		}

		now := time.Now().UTC()
		order := model.Order{
			ID:             uuid.NewString(),
			OrderNumber:    newOrderNumber(now),
			TierID:         tierID,
			BuyerName:      buyer.Name,
			BuyerEmail:     buyer.Email,
			Quantity:       quantity,
			UnitPriceCents: tier.PriceCents,
			TotalCents:     tier.PriceCents * quantity,
			Status:         model.OrderPending,
			CredentialHash: cred.Hash,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}

		// The outbox row carries the plaintext from day one; the
		// worker gates the actual send on the order being PAID.
		plaintext := cred.Plaintext
		delivery := model.TicketDelivery{
			ID:                  uuid.NewString(),
			OrderID:             order.ID,
			Recipient:           buyer.Email,
			Status:              model.DeliveryPending,
			CredentialPlaintext: &plaintext,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.InsertDelivery(ctx, &delivery); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return CreatedOrder{}, err
	}

	s.log.Info("order created",
		"order_id", created.ID,
		"order_number", created.OrderNumber,
		"tier_id", tierID,
		"quantity", quantity,
	)
	return CreatedOrder{Order: created, Credential: cred.Plaintext}, nil
}

// ConfirmPayment transitions PENDING -> PAID.  Re-invoking it on an
// already paid order returns alreadyPaid=true and changes nothing;
// this is the idempotency contract payment-webhook retries depend on.
// Capacity is not touched here; it was reserved at creation.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, paymentRef string) (model.Order, bool, error) {
	var (
		confirmed   model.Order
		alreadyPaid bool
	)
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderPaid {
			confirmed = order
			alreadyPaid = true
			return nil
		}
		if order.Status != model.OrderPending {
			return store.ErrOrderNotPending
		}

		now := time.Now().UTC()
		if err := tx.MarkOrderPaid(ctx, order.ID, paymentRef, now); err != nil {
			return err
		}
		order.Status = model.OrderPaid
		order.PaymentRef = &paymentRef
		order.PaymentConfirmedAt = &now
		order.UpdatedAt = now

		// Delivery is enqueued at most once per order.  The row is
		// normally created with the order; if it is somehow missing we
		// cannot reconstruct the plaintext, so record the fact instead
		// of failing the payment.
		if _, err := tx.DeliveryByOrder(ctx, order.ID); err != nil {
			if errors.Is(err, store.ErrDeliveryNotFound) {
				s.log.Warn("paid order has no delivery obligation", "order_id", order.ID)
			} else {
				return err
			}
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return model.Order{}, false, err
	}

	if alreadyPaid {
		s.log.Info("payment confirmation replayed", "order_id", orderID)
	} else {
		s.log.Info("payment confirmed", "order_id", orderID, "payment_ref", paymentRef)
	}
	return confirmed, alreadyPaid, nil
}

// Cancel transitions PENDING -> CANCELLED and releases the reserved
// capacity.  Cancelling an already cancelled order is a no-op that
// returns the order as-is.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (model.Order, error) {
	var cancelled model.Order
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderCancelled {
			cancelled = order
			return nil
		}
		if order.Status != model.OrderPending {
			return store.ErrCannotCancelNonPending
		}

		// The state check above guarantees release runs at most once
		// per order, so the counter returns to exactly where it was.
		if err := tx.AddSold(ctx, order.TierID, -int64(order.Quantity)); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.MarkOrderCancelled(ctx, order.ID, now); err != nil {
			return err
		}
		order.Status = model.OrderCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		cancelled = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("order cancelled", "order_id", orderID)
	return cancelled, nil
}

// Refund transitions PAID -> REFUNDED and releases capacity.  Whether
// the payment provider actually refunded the money is the caller's
// responsibility before invoking this.
func (s *OrderService) Refund(ctx context.Context, orderID string) (model.Order, error) {
	var refunded model.Order
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderRefunded {
			refunded = order
			return nil
		}
		if order.Status != model.OrderPaid {
			return store.ErrCannotRefundNonPaid
		}

		if err := tx.AddSold(ctx, order.TierID, -int64(order.Quantity)); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.MarkOrderRefunded(ctx, order.ID, now); err != nil {
			return err
		}
		order.Status = model.OrderRefunded
		order.RefundedAt = &now
		order.UpdatedAt = now
		refunded = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	s.log.Info("order refunded", "order_id", orderID)
	return refunded, nil
}

// orderNumberAlphabet avoids ambiguous characters (0/O, 1/I/L).
const orderNumberAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// newOrderNumber builds a human-readable reference like
// TKT-20260828-K7Q2M9XF.  Uniqueness is backed by the unique key on
// orders.order_number.
func newOrderNumber(now time.Time) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the timestamp which the unique key will police.
		return fmt.Sprintf("TKT-%s-%d", now.Format("20060102"), now.UnixNano())
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), string(buf))
}
