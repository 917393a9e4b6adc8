package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

// memStore is an in-memory store.Store used by the service tests.  It
// serializes Transact with a mutex, which preserves the same
// lock-check-write ordering the row-locked MySQL implementation gives:
// inside a unit of work nobody else can observe or change state.
// Rollback is modeled by applying fn to a staged copy and swapping it
// in only on success.
type memStore struct {
	mu sync.Mutex

	events     map[uint64]model.Event
	tiers      map[uint64]model.Tier
	orders     map[string]model.Order
	deliveries map[string]model.TicketDelivery // keyed by delivery ID
	checkins   map[string]model.CheckinRecord  // keyed by order ID
}

func newMemStore() *memStore {
	return &memStore{
		events:     make(map[uint64]model.Event),
		tiers:      make(map[uint64]model.Tier),
		orders:     make(map[string]model.Order),
		deliveries: make(map[string]model.TicketDelivery),
		checkins:   make(map[string]model.CheckinRecord),
	}
}

func (m *memStore) seedEvent(e model.Event) { m.events[e.ID] = e }
func (m *memStore) seedTier(t model.Tier)   { m.tiers[t.ID] = t }

func (m *memStore) tierSold(id uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiers[id].Sold
}

func (m *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range m.events {
		c.events[k] = v
	}
	for k, v := range m.tiers {
		c.tiers[k] = v
	}
	for k, v := range m.orders {
		c.orders[k] = v
	}
	for k, v := range m.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range m.checkins {
		c.checkins[k] = v
	}
	return c
}

func (m *memStore) Transact(_ context.Context, fn func(tx store.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := m.clone()
	if err := fn(&memTx{s: staged}); err != nil {
		return err
	}
	m.events = staged.events
	m.tiers = staged.tiers
	m.orders = staged.orders
	m.deliveries = staged.deliveries
	m.checkins = staged.checkins
	return nil
}

func (m *memStore) OrderByID(_ context.Context, id string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return model.Order{}, store.ErrOrderNotFound
	}
	return o, nil
}

func (m *memStore) OrderByNumber(_ context.Context, number string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return model.Order{}, store.ErrOrderNotFound
}

func (m *memStore) OrderByCredentialHash(_ context.Context, hash string) (model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.CredentialHash == hash {
			return o, nil
		}
	}
	return model.Order{}, store.ErrOrderNotFound
}

func (m *memStore) DeliveryByOrder(_ context.Context, orderID string) (model.TicketDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return deliveryByOrderLocked(m.deliveries, orderID)
}

func deliveryByOrderLocked(deliveries map[string]model.TicketDelivery, orderID string) (model.TicketDelivery, error) {
	for _, d := range deliveries {
		if d.OrderID == orderID {
			return d, nil
		}
	}
	return model.TicketDelivery{}, store.ErrDeliveryNotFound
}

func (m *memStore) ClaimDue(_ context.Context, max int) ([]model.TicketDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := make([]model.TicketDelivery, 0, max)
	for _, d := range m.deliveries {
		if d.Status != model.DeliveryPending && d.Status != model.DeliveryFailed {
			continue
		}
		if d.Attempts >= model.MaxDeliveryAttempts || d.CredentialPlaintext == nil {
			continue
		}
		if o, ok := m.orders[d.OrderID]; !ok || o.Status != model.OrderPaid {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > max {
		due = due[:max]
	}
	now := time.Now().UTC()
	for i := range due {
		due[i].Status = model.DeliveryProcessing
		due[i].Attempts++
		at := now
		due[i].LastAttemptAt = &at
		due[i].UpdatedAt = now
		m.deliveries[due[i].ID] = due[i]
	}
	return due, nil
}

func (m *memStore) ClaimByOrder(_ context.Context, orderID string) (model.TicketDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := deliveryByOrderLocked(m.deliveries, orderID)
	if err != nil {
		return model.TicketDelivery{}, store.ErrEmailNotQueued
	}
	if d.CredentialPlaintext == nil {
		return model.TicketDelivery{}, store.ErrCredentialExpired
	}
	if d.Status == model.DeliveryProcessing {
		return model.TicketDelivery{}, store.ErrDeliveryInFlight
	}
	o, ok := m.orders[orderID]
	if !ok {
		return model.TicketDelivery{}, store.ErrOrderNotFound
	}
	if o.Status != model.OrderPaid {
		return model.TicketDelivery{}, store.ErrNotPaid
	}
	now := time.Now().UTC()
	d.Status = model.DeliveryProcessing
	d.Attempts++
	d.LastAttemptAt = &now
	d.UpdatedAt = now
	m.deliveries[d.ID] = d
	return d, nil
}

func (m *memStore) MarkSent(_ context.Context, deliveryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[deliveryID]
	if !ok {
		return store.ErrDeliveryNotFound
	}
	d.Status = model.DeliverySent
	d.CredentialPlaintext = nil
	d.LastError = nil
	d.UpdatedAt = time.Now().UTC()
	m.deliveries[deliveryID] = d
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, deliveryID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[deliveryID]
	if !ok {
		return store.ErrDeliveryNotFound
	}
	d.Status = model.DeliveryFailed
	d.LastError = &note
	d.UpdatedAt = time.Now().UTC()
	m.deliveries[deliveryID] = d
	return nil
}

func (m *memStore) EventByID(_ context.Context, id uint64) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return model.Event{}, store.ErrEventNotFound
	}
	return e, nil
}

func (m *memStore) TierByID(_ context.Context, id uint64) (model.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tiers[id]
	if !ok {
		return model.Tier{}, store.ErrTierNotFound
	}
	return t, nil
}

func (m *memStore) TiersByEvent(_ context.Context, eventID uint64) ([]model.Tier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tiers []model.Tier
	for _, t := range m.tiers {
		if t.EventID == eventID {
			tiers = append(tiers, t)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].ID < tiers[j].ID })
	return tiers, nil
}

// memTx operates on the staged copy held by Transact.
type memTx struct {
	s *memStore
}

func (t *memTx) EventByID(_ context.Context, id uint64) (model.Event, error) {
	e, ok := t.s.events[id]
	if !ok {
		return model.Event{}, store.ErrEventNotFound
	}
	return e, nil
}

func (t *memTx) TierForUpdate(_ context.Context, id uint64) (model.Tier, error) {
	tier, ok := t.s.tiers[id]
	if !ok {
		return model.Tier{}, store.ErrTierNotFound
	}
	return tier, nil
}

func (t *memTx) AddSold(_ context.Context, tierID uint64, delta int64) error {
	tier, ok := t.s.tiers[tierID]
	if !ok {
		return store.ErrTierNotFound
	}
	next := int64(tier.Sold) + delta
	if next < 0 {
		next = 0
	}
	tier.Sold = uint32(next)
	tier.UpdatedAt = time.Now().UTC()
	t.s.tiers[tierID] = tier
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *model.Order) error {
	t.s.orders[o.ID] = *o
	return nil
}

func (t *memTx) OrderForUpdate(_ context.Context, id string) (model.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return model.Order{}, store.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) MarkOrderPaid(_ context.Context, id, paymentRef string, at time.Time) error {
	o, ok := t.s.orders[id]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.Status = model.OrderPaid
	o.PaymentRef = &paymentRef
	o.PaymentConfirmedAt = &at
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (t *memTx) MarkOrderCancelled(_ context.Context, id string, at time.Time) error {
	o, ok := t.s.orders[id]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.Status = model.OrderCancelled
	o.CancelledAt = &at
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (t *memTx) MarkOrderRefunded(_ context.Context, id string, at time.Time) error {
	o, ok := t.s.orders[id]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.Status = model.OrderRefunded
	o.RefundedAt = &at
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (t *memTx) InsertDelivery(_ context.Context, d *model.TicketDelivery) error {
	t.s.deliveries[d.ID] = *d
	return nil
}

func (t *memTx) DeliveryByOrder(_ context.Context, orderID string) (model.TicketDelivery, error) {
	return deliveryByOrderLocked(t.s.deliveries, orderID)
}

func (t *memTx) InsertCheckin(_ context.Context, rec *model.CheckinRecord) error {
	if _, exists := t.s.checkins[rec.OrderID]; exists {
		return store.ErrAlreadyCheckedIn
	}
	t.s.checkins[rec.OrderID] = *rec
	return nil
}

func (t *memTx) CheckinByOrder(_ context.Context, orderID string) (model.CheckinRecord, error) {
	rec, ok := t.s.checkins[orderID]
	if !ok {
		return model.CheckinRecord{}, store.ErrCheckinNotFound
	}
	return rec, nil
}
