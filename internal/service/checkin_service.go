package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelora/ticket-office/internal/credential"
	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

// CheckinService enforces at-most-one successful check-in per paid
// order.
type CheckinService struct {
	log   *slog.Logger
	store store.Store
}

func NewCheckinService(log *slog.Logger, st store.Store) *CheckinService {
	return &CheckinService{log: log, store: st}
}

// Checkin consumes a ticket.  The identifier is either the order
// number or the presented credential plaintext (matched against the
// stored hash, so a wiped outbox plaintext does not affect this path).
//
// The existence check and the insert run under the order row lock, so
// of two simultaneous scans exactly one wins; the loser gets
// store.ErrAlreadyCheckedIn together with the winning record and its
// original timestamp.
func (s *CheckinService) Checkin(ctx context.Context, identifier, operator string) (model.CheckinRecord, error) {
	order, err := s.resolve(ctx, identifier)
	if err != nil {
		return model.CheckinRecord{}, err
	}

	var rec model.CheckinRecord
	err = s.store.Transact(ctx, func(tx store.Tx) error {
		locked, err := tx.OrderForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		if locked.Status != model.OrderPaid {
			return store.ErrNotPaid
		}

		existing, err := tx.CheckinByOrder(ctx, locked.ID)
		switch {
		case err == nil:
			rec = existing
			return store.ErrAlreadyCheckedIn
		case !errors.Is(err, store.ErrCheckinNotFound):
			return err
		}

		rec = model.CheckinRecord{
			ID:          uuid.NewString(),
			OrderID:     locked.ID,
			CheckedInAt: time.Now().UTC(),
			CheckedInBy: operator,
		}
		return tx.InsertCheckin(ctx, &rec)
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyCheckedIn) {
			// rec holds the winning record for the caller.
			return rec, err
		}
		return model.CheckinRecord{}, err
	}

	s.log.Info("ticket checked in", "order_id", order.ID, "operator", operator)
	return rec, nil
}

// resolve finds the order behind a scanned identifier.  Order numbers
// are tried first; anything else is treated as a presented credential.
func (s *CheckinService) resolve(ctx context.Context, identifier string) (model.Order, error) {
	order, err := s.store.OrderByNumber(ctx, identifier)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrOrderNotFound) {
		return model.Order{}, err
	}
	return s.store.OrderByCredentialHash(ctx, credential.HashPlaintext(identifier))
}
