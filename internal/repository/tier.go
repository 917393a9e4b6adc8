package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

const tierColumns = `id, event_id, name, price_cents, capacity, sold, is_active, created_at, updated_at`

func scanTier(row *sql.Row) (model.Tier, error) {
	var t model.Tier
	err := row.Scan(&t.ID, &t.EventID, &t.Name, &t.PriceCents, &t.Capacity, &t.Sold, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tier{}, store.ErrTierNotFound
	}
	return t, err
}

// TierForUpdate locks the tier row for the rest of the transaction.
// The availability decision and the sold update both happen under
// this lock; that ordering is the sole oversell defense.
func (t *mysqlTx) TierForUpdate(ctx context.Context, id uint64) (model.Tier, error) {
	const q = `SELECT ` + tierColumns + ` FROM tiers WHERE id = ? FOR UPDATE`
	return scanTier(t.tx.QueryRowContext(ctx, q, id))
}

// AddSold adjusts the sold counter.  Negative deltas floor at zero so
// a release can never underflow the ledger.
func (t *mysqlTx) AddSold(ctx context.Context, tierID uint64, delta int64) error {
	if delta >= 0 {
		_, err := t.tx.ExecContext(ctx,
			`UPDATE tiers SET sold = sold + ? WHERE id = ?`, delta, tierID)
		return err
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE tiers SET sold = GREATEST(CAST(sold AS SIGNED) - ?, 0) WHERE id = ?`, -delta, tierID)
	return err
}

func scanEvent(row *sql.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Venue, &e.StartsAt, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, store.ErrEventNotFound
	}
	return e, err
}

const eventColumns = `id, name, venue, starts_at, is_active, created_at, updated_at`

func (t *mysqlTx) EventByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(t.tx.QueryRowContext(ctx, q, id))
}

func (s *MySQLStore) EventByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	return scanEvent(s.db.QueryRowContext(ctx, q, id))
}

func (s *MySQLStore) TierByID(ctx context.Context, id uint64) (model.Tier, error) {
	const q = `SELECT ` + tierColumns + ` FROM tiers WHERE id = ?`
	return scanTier(s.db.QueryRowContext(ctx, q, id))
}

// TiersByEvent lists the tiers of an event for display.  The counters
// read here may be stale the moment they are returned; reservation
// decisions never use this path.
func (s *MySQLStore) TiersByEvent(ctx context.Context, eventID uint64) ([]model.Tier, error) {
	const q = `SELECT ` + tierColumns + ` FROM tiers WHERE event_id = ? ORDER BY price_cents, id`
	rows, err := s.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]model.Tier, 0)
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.PriceCents, &t.Capacity, &t.Sold, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// EventAdminRepo creates events and their tiers for the admin surface.
type EventAdminRepo struct {
	db *sql.DB
}

func NewEventAdminRepo(db *sql.DB) *EventAdminRepo { return &EventAdminRepo{db: db} }

// CreateWithTiers inserts an event and its tiers in one transaction.
// Generated IDs are populated on the passed records.
func (r *EventAdminRepo) CreateWithTiers(ctx context.Context, event *model.Event, tiers []model.Tier) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (name, venue, starts_at, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		event.Name, event.Venue, event.StartsAt.UTC(), event.Active, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	event.CreatedAt = now
	event.UpdatedAt = now

	for i := range tiers {
		tiers[i].EventID = event.ID
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tiers (event_id, name, price_cents, capacity, sold, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
			tiers[i].EventID, tiers[i].Name, tiers[i].PriceCents, tiers[i].Capacity, tiers[i].Active, now, now)
		if err != nil {
			return err
		}
		tid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		tiers[i].ID = uint64(tid)
		tiers[i].CreatedAt = now
		tiers[i].UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
