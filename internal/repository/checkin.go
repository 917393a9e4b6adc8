package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

func (t *mysqlTx) InsertCheckin(ctx context.Context, rec *model.CheckinRecord) error {
	const q = `INSERT INTO checkin_records (id, order_id, checked_in_at, checked_in_by) VALUES (?, ?, ?, ?)`
	_, err := t.tx.ExecContext(ctx, q, rec.ID, rec.OrderID, rec.CheckedInAt, rec.CheckedInBy)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		// Unique key on order_id is the backstop behind the row lock.
		return store.ErrAlreadyCheckedIn
	}
	return err
}

func (t *mysqlTx) CheckinByOrder(ctx context.Context, orderID string) (model.CheckinRecord, error) {
	const q = `SELECT id, order_id, checked_in_at, checked_in_by FROM checkin_records WHERE order_id = ?`
	var rec model.CheckinRecord
	err := t.tx.QueryRowContext(ctx, q, orderID).Scan(&rec.ID, &rec.OrderID, &rec.CheckedInAt, &rec.CheckedInBy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CheckinRecord{}, store.ErrCheckinNotFound
	}
	return rec, err
}
