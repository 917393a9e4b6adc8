package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

const deliveryColumns = `id, order_id, recipient, status, attempts,
	last_attempt_at, last_error, credential_plaintext, created_at, updated_at`

type deliveryScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row deliveryScanner) (model.TicketDelivery, error) {
	var (
		d             model.TicketDelivery
		lastAttemptAt sql.NullTime
		lastError     sql.NullString
		plaintext     sql.NullString
	)
	err := row.Scan(
		&d.ID, &d.OrderID, &d.Recipient, &d.Status, &d.Attempts,
		&lastAttemptAt, &lastError, &plaintext, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return model.TicketDelivery{}, err
	}
	if lastAttemptAt.Valid {
		at := lastAttemptAt.Time
		d.LastAttemptAt = &at
	}
	if lastError.Valid {
		note := lastError.String
		d.LastError = &note
	}
	if plaintext.Valid {
		p := plaintext.String
		d.CredentialPlaintext = &p
	}
	return d, nil
}

func (t *mysqlTx) InsertDelivery(ctx context.Context, d *model.TicketDelivery) error {
	const q = `INSERT INTO ticket_deliveries
		(id, order_id, recipient, status, attempts, credential_plaintext, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q,
		d.ID, d.OrderID, d.Recipient, d.Status, d.CredentialPlaintext, d.CreatedAt, d.UpdatedAt)
	return err
}

func deliveryByOrder(ctx context.Context, q querier, orderID string) (model.TicketDelivery, error) {
	const sel = `SELECT ` + deliveryColumns + ` FROM ticket_deliveries WHERE order_id = ?`
	d, err := scanDelivery(q.QueryRowContext(ctx, sel, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketDelivery{}, store.ErrDeliveryNotFound
	}
	return d, err
}

func (t *mysqlTx) DeliveryByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error) {
	return deliveryByOrder(ctx, t.tx, orderID)
}

func (s *MySQLStore) DeliveryByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error) {
	return deliveryByOrder(ctx, s.db, orderID)
}

// ClaimDue atomically claims up to max deliveries that are ready to
// send: PENDING or FAILED under the attempt cap, plaintext still
// present, order paid.  Rows locked by a concurrent worker are
// skipped, so workers partition the backlog instead of double-sending.
func (s *MySQLStore) ClaimDue(ctx context.Context, max int) ([]model.TicketDelivery, error) {
	if max <= 0 {
		return []model.TicketDelivery{}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT td.id
		FROM ticket_deliveries td
		JOIN orders o ON o.id = td.order_id
		WHERE td.status IN (?, ?)
		  AND td.attempts < ?
		  AND td.credential_plaintext IS NOT NULL
		  AND o.status = ?
		ORDER BY td.created_at
		LIMIT ?
		FOR UPDATE OF td SKIP LOCKED`
	rows, err := tx.QueryContext(ctx, sel,
		model.DeliveryPending, model.DeliveryFailed, model.MaxDeliveryAttempts, model.OrderPaid, max)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, max)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	// A mid-iteration failure would silently truncate the claim set;
	// Close does not surface it.
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		return []model.TicketDelivery{}, nil
	}

	now := time.Now().UTC()
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+3)
	args = append(args, model.DeliveryProcessing, now, now)
	for _, id := range ids {
		args = append(args, id)
	}
	upd := `UPDATE ticket_deliveries SET status = ?, attempts = attempts + 1, last_attempt_at = ?, updated_at = ? WHERE id IN (` + placeholders + `)`
	if _, err := tx.ExecContext(ctx, upd, args...); err != nil {
		return nil, err
	}

	claimed := make([]model.TicketDelivery, 0, len(ids))
	selArgs := make([]any, 0, len(ids))
	for _, id := range ids {
		selArgs = append(selArgs, id)
	}
	crows, err := tx.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM ticket_deliveries WHERE id IN (`+placeholders+`) ORDER BY created_at`, selArgs...)
	if err != nil {
		return nil, err
	}
	for crows.Next() {
		d, scanErr := scanDelivery(crows)
		if scanErr != nil {
			crows.Close()
			return nil, scanErr
		}
		claimed = append(claimed, d)
	}
	if err := crows.Err(); err != nil {
		crows.Close()
		return nil, err
	}
	if err = crows.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return claimed, nil
}

// ClaimByOrder claims a single delivery for a forced resend,
// regardless of the worker cadence.  The order must be paid and the
// plaintext must still be present.
func (s *MySQLStore) ClaimByOrder(ctx context.Context, orderID string) (model.TicketDelivery, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TicketDelivery{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT ` + deliveryColumns + ` FROM ticket_deliveries WHERE order_id = ? FOR UPDATE`
	d, err := scanDelivery(tx.QueryRowContext(ctx, sel, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TicketDelivery{}, store.ErrEmailNotQueued
	}
	if err != nil {
		return model.TicketDelivery{}, err
	}
	if d.CredentialPlaintext == nil {
		return model.TicketDelivery{}, store.ErrCredentialExpired
	}
	// A PROCESSING row is already in a sender's hands; claiming it too
	// would deliver the same one-time credential twice.
	if d.Status == model.DeliveryProcessing {
		return model.TicketDelivery{}, store.ErrDeliveryInFlight
	}

	var orderStatus string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, orderID).Scan(&orderStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TicketDelivery{}, store.ErrOrderNotFound
		}
		return model.TicketDelivery{}, err
	}
	if orderStatus != model.OrderPaid {
		return model.TicketDelivery{}, store.ErrNotPaid
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE ticket_deliveries SET status = ?, attempts = attempts + 1, last_attempt_at = ?, updated_at = ? WHERE id = ?`,
		model.DeliveryProcessing, now, now, d.ID); err != nil {
		return model.TicketDelivery{}, err
	}
	d.Status = model.DeliveryProcessing
	d.Attempts++
	d.LastAttemptAt = &now
	d.UpdatedAt = now

	if err := tx.Commit(); err != nil {
		return model.TicketDelivery{}, err
	}
	committed = true
	return d, nil
}

// MarkSent records a confirmed delivery.  Setting SENT and nulling the
// plaintext happen in the same update; after this the credential is
// gone for good.
func (s *MySQLStore) MarkSent(ctx context.Context, deliveryID string) error {
	const q = `UPDATE ticket_deliveries
		SET status = ?, credential_plaintext = NULL, last_error = NULL, updated_at = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, model.DeliverySent, time.Now().UTC(), deliveryID)
	return err
}

// MarkFailed records the failure note and keeps the plaintext for a
// future retry.
func (s *MySQLStore) MarkFailed(ctx context.Context, deliveryID, note string) error {
	const q = `UPDATE ticket_deliveries SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, model.DeliveryFailed, note, time.Now().UTC(), deliveryID)
	return err
}
