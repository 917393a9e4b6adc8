package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

const orderColumns = `id, order_number, tier_id, buyer_name, buyer_email, quantity,
	unit_price_cents, total_cents, status, credential_hash, payment_ref,
	payment_confirmed_at, cancelled_at, refunded_at, created_at, updated_at`

func scanOrder(row *sql.Row) (model.Order, error) {
	var (
		o           model.Order
		paymentRef  sql.NullString
		confirmedAt sql.NullTime
		cancelledAt sql.NullTime
		refundedAt  sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.TierID, &o.BuyerName, &o.BuyerEmail, &o.Quantity,
		&o.UnitPriceCents, &o.TotalCents, &o.Status, &o.CredentialHash, &paymentRef,
		&confirmedAt, &cancelledAt, &refundedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, store.ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	if paymentRef.Valid {
		ref := paymentRef.String
		o.PaymentRef = &ref
	}
	if confirmedAt.Valid {
		at := confirmedAt.Time
		o.PaymentConfirmedAt = &at
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time
		o.CancelledAt = &at
	}
	if refundedAt.Valid {
		at := refundedAt.Time
		o.RefundedAt = &at
	}
	return o, nil
}

func (t *mysqlTx) InsertOrder(ctx context.Context, o *model.Order) error {
	const q = `INSERT INTO orders
		(id, order_number, tier_id, buyer_name, buyer_email, quantity,
		 unit_price_cents, total_cents, status, credential_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q,
		o.ID, o.OrderNumber, o.TierID, o.BuyerName, o.BuyerEmail, o.Quantity,
		o.UnitPriceCents, o.TotalCents, o.Status, o.CredentialHash, o.CreatedAt, o.UpdatedAt)
	return err
}

// OrderForUpdate locks the order row; every status transition and the
// check-in gate serialize on this lock.
func (t *mysqlTx) OrderForUpdate(ctx context.Context, id string) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ? FOR UPDATE`
	return scanOrder(t.tx.QueryRowContext(ctx, q, id))
}

func (t *mysqlTx) MarkOrderPaid(ctx context.Context, id, paymentRef string, at time.Time) error {
	const q = `UPDATE orders SET status = ?, payment_ref = ?, payment_confirmed_at = ?, updated_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, model.OrderPaid, paymentRef, at, at, id)
	return err
}

func (t *mysqlTx) MarkOrderCancelled(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE orders SET status = ?, cancelled_at = ?, updated_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, model.OrderCancelled, at, at, id)
	return err
}

func (t *mysqlTx) MarkOrderRefunded(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE orders SET status = ?, refunded_at = ?, updated_at = ? WHERE id = ?`
	_, err := t.tx.ExecContext(ctx, q, model.OrderRefunded, at, at, id)
	return err
}

func (s *MySQLStore) OrderByID(ctx context.Context, id string) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	return scanOrder(s.db.QueryRowContext(ctx, q, id))
}

func (s *MySQLStore) OrderByNumber(ctx context.Context, number string) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ?`
	return scanOrder(s.db.QueryRowContext(ctx, q, number))
}

func (s *MySQLStore) OrderByCredentialHash(ctx context.Context, hash string) (model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE credential_hash = ?`
	return scanOrder(s.db.QueryRowContext(ctx, q, hash))
}
