package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/store"
)

// paidOrder creates and pays an order, returning it with its
// credential plaintext.
func paidOrder(t *testing.T, st *memStore) CreatedOrder {
	t.Helper()
	orders := NewOrderService(testLogger(), st)
	created, err := orders.Create(context.Background(), 10, Buyer{Name: "Ada", Email: "ada@example.com"}, 1)
	require.NoError(t, err)
	_, _, err = orders.ConfirmPayment(context.Background(), created.Order.ID, "pay_123")
	require.NoError(t, err)
	return created
}

func TestCheckinByOrderNumber(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	svc := NewCheckinService(testLogger(), st)

	rec, err := svc.Checkin(context.Background(), created.Order.OrderNumber, "gate@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, rec.OrderID)
	assert.Equal(t, "gate@example.com", rec.CheckedInBy)
	assert.False(t, rec.CheckedInAt.IsZero())
}

func TestCheckinByCredential(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	svc := NewCheckinService(testLogger(), st)

	rec, err := svc.Checkin(context.Background(), created.Credential, "gate@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, rec.OrderID)
}

func TestCheckinByCredentialSurvivesPlaintextWipe(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	ctx := context.Background()

	// Simulate the ticket email going out: the outbox plaintext is
	// wiped, but the hash on the order keeps the credential scannable.
	d, err := st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	require.NoError(t, st.MarkSent(ctx, d.ID))

	svc := NewCheckinService(testLogger(), st)
	rec, err := svc.Checkin(ctx, created.Credential, "gate@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, rec.OrderID)
}

func TestCheckinRejectsUnpaidOrder(t *testing.T) {
	st := seededStore(10)
	orders := NewOrderService(testLogger(), st)
	created, err := orders.Create(context.Background(), 10, Buyer{Name: "Ada", Email: "ada@example.com"}, 1)
	require.NoError(t, err)

	svc := NewCheckinService(testLogger(), st)
	_, err = svc.Checkin(context.Background(), created.Order.OrderNumber, "gate@example.com")
	assert.ErrorIs(t, err, store.ErrNotPaid)
}

func TestCheckinUnknownIdentifier(t *testing.T) {
	st := seededStore(10)
	svc := NewCheckinService(testLogger(), st)

	_, err := svc.Checkin(context.Background(), "TKT-20260101-NOPE1234", "gate@example.com")
	assert.ErrorIs(t, err, store.ErrOrderNotFound)
}

func TestSecondScanReturnsOriginalRecord(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	svc := NewCheckinService(testLogger(), st)
	ctx := context.Background()

	first, err := svc.Checkin(ctx, created.Order.OrderNumber, "gate-a@example.com")
	require.NoError(t, err)

	second, err := svc.Checkin(ctx, created.Order.OrderNumber, "gate-b@example.com")
	assert.ErrorIs(t, err, store.ErrAlreadyCheckedIn)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CheckedInAt, second.CheckedInAt)
	assert.Equal(t, "gate-a@example.com", second.CheckedInBy)
}

func TestConcurrentCheckinHasSingleWinner(t *testing.T) {
	const scanners = 16

	st := seededStore(10)
	created := paidOrder(t, st)
	svc := NewCheckinService(testLogger(), st)

	var wg sync.WaitGroup
	recs := make([]model.CheckinRecord, scanners)
	errs := make([]error, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = svc.Checkin(context.Background(), created.Order.OrderNumber, "gate@example.com")
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner model.CheckinRecord
	for i := range errs {
		if errs[i] == nil {
			winners++
			winner = recs[i]
		}
	}
	require.Equal(t, 1, winners)

	// Every loser saw the winner's record, original timestamp included.
	for i := range errs {
		if errs[i] != nil {
			assert.ErrorIs(t, errs[i], store.ErrAlreadyCheckedIn)
			assert.Equal(t, winner.ID, recs[i].ID)
			assert.Equal(t, winner.CheckedInAt, recs[i].CheckedInAt)
		}
	}
}
