package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelora/ticket-office/internal/model"
	"github.com/avelora/ticket-office/internal/queue"
	"github.com/avelora/ticket-office/internal/store"
)

// fakeSender records every message it is handed and can be told to
// fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []queue.TicketEmail
	fail error
}

func (f *fakeSender) Send(_ context.Context, msg queue.TicketEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []queue.TicketEmail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.TicketEmail(nil), f.sent...)
}

func TestDrainSendsPaidOrders(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)
	ctx := context.Background()

	sent := svc.Drain(ctx, 10)
	assert.Equal(t, 1, sent)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, created.Order.ID, msgs[0].OrderID)
	assert.Equal(t, created.Order.OrderNumber, msgs[0].OrderNumber)
	assert.Equal(t, "ada@example.com", msgs[0].Recipient)
	assert.Equal(t, "Autumn Open Air", msgs[0].EventName)
	assert.Equal(t, created.Credential, msgs[0].Credential)

	// SENT and the plaintext wipe land together.
	d, err := st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, d.Status)
	assert.Nil(t, d.CredentialPlaintext)
	assert.Equal(t, uint32(1), d.Attempts)
}

func TestDrainSkipsUnpaidOrders(t *testing.T) {
	st := seededStore(10)
	orders := NewOrderService(testLogger(), st)
	created, err := orders.Create(context.Background(), 10, Buyer{Name: "Ada", Email: "ada@example.com"}, 1)
	require.NoError(t, err)

	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)

	assert.Equal(t, 0, svc.Drain(context.Background(), 10))
	assert.Empty(t, sender.messages())

	// The obligation is still intact for when the payment lands.
	d, err := st.DeliveryByOrder(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPending, d.Status)
	assert.Equal(t, uint32(0), d.Attempts)
}

func TestDrainRecordsFailureAndRetries(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{fail: errors.New("smtp unreachable")}
	svc := NewDeliveryService(testLogger(), st, sender)
	ctx := context.Background()

	assert.Equal(t, 0, svc.Drain(ctx, 10))

	d, err := st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, d.Status)
	assert.Equal(t, uint32(1), d.Attempts)
	require.NotNil(t, d.LastError)
	assert.Equal(t, "smtp unreachable", *d.LastError)
	// Plaintext survives a failure so the retry can still send.
	assert.NotNil(t, d.CredentialPlaintext)

	// Transport recovers; the next drain picks the FAILED row up again.
	sender.fail = nil
	assert.Equal(t, 1, svc.Drain(ctx, 10))
	d, err = st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, d.Status)
	assert.Nil(t, d.CredentialPlaintext)
	assert.Nil(t, d.LastError)
}

func TestDrainStopsAfterMaxAttempts(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{fail: errors.New("permanent bounce")}
	svc := NewDeliveryService(testLogger(), st, sender)
	ctx := context.Background()

	for i := 0; i < model.MaxDeliveryAttempts; i++ {
		assert.Equal(t, 0, svc.Drain(ctx, 10))
	}

	d, err := st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(model.MaxDeliveryAttempts), d.Attempts)
	assert.Equal(t, model.DeliveryFailed, d.Status)

	// Exhausted: left FAILED for manual intervention, never claimed
	// again.
	assert.Equal(t, 0, svc.Drain(ctx, 10))
	d, err = st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(model.MaxDeliveryAttempts), d.Attempts)
}

func TestForceResendBeforeSend(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)

	require.NoError(t, svc.ForceResend(context.Background(), created.Order.ID))
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, created.Credential, msgs[0].Credential)

	d, err := st.DeliveryByOrder(context.Background(), created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, d.Status)
	assert.Nil(t, d.CredentialPlaintext)
}

func TestForceResendAfterWipeIsImpossible(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)
	ctx := context.Background()

	require.Equal(t, 1, svc.Drain(ctx, 10))

	err := svc.ForceResend(ctx, created.Order.ID)
	assert.ErrorIs(t, err, store.ErrCredentialExpired)
	assert.Len(t, sender.messages(), 1, "no second email may go out")
}

func TestForceResendRefusesClaimedDelivery(t *testing.T) {
	st := seededStore(10)
	created := paidOrder(t, st)
	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)
	ctx := context.Background()

	// A drain worker has claimed the row and is mid-send.
	claimed, err := st.ClaimDue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, model.DeliveryProcessing, claimed[0].Status)

	// The forced resend must refuse the in-flight row instead of
	// emailing the one-time credential a second time.
	err = svc.ForceResend(ctx, created.Order.ID)
	assert.ErrorIs(t, err, store.ErrDeliveryInFlight)
	assert.Empty(t, sender.messages())

	// The worker finishes its send; exactly one email total.
	require.NoError(t, svc.attempt(ctx, claimed[0]))
	require.NoError(t, st.MarkSent(ctx, claimed[0].ID))
	assert.Len(t, sender.messages(), 1)

	d, err := st.DeliveryByOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, d.Status)
	assert.Nil(t, d.CredentialPlaintext)
}

func TestForceResendUnknownOrder(t *testing.T) {
	st := seededStore(10)
	svc := NewDeliveryService(testLogger(), st, &fakeSender{})

	err := svc.ForceResend(context.Background(), "no-such-order")
	assert.ErrorIs(t, err, store.ErrEmailNotQueued)
}

func TestForceResendRequiresPaidOrder(t *testing.T) {
	st := seededStore(10)
	orders := NewOrderService(testLogger(), st)
	created, err := orders.Create(context.Background(), 10, Buyer{Name: "Ada", Email: "ada@example.com"}, 1)
	require.NoError(t, err)

	svc := NewDeliveryService(testLogger(), st, &fakeSender{})
	err = svc.ForceResend(context.Background(), created.Order.ID)
	assert.ErrorIs(t, err, store.ErrNotPaid)
}

func TestConcurrentDrainsNeverDoubleSend(t *testing.T) {
	st := seededStore(50)
	orders := NewOrderService(testLogger(), st)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		created, err := orders.Create(ctx, 10, Buyer{Name: "Buyer", Email: "b@example.com"}, 1)
		require.NoError(t, err)
		_, _, err = orders.ConfirmPayment(ctx, created.Order.ID, "pay_x")
		require.NoError(t, err)
	}

	sender := &fakeSender{}
	svc := NewDeliveryService(testLogger(), st, sender)

	var wg sync.WaitGroup
	total := make([]int, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			total[i] = svc.Drain(ctx, 10)
		}(i)
	}
	wg.Wait()

	sum := 0
	for _, n := range total {
		sum += n
	}
	assert.Equal(t, 10, sum)
	assert.Len(t, sender.messages(), 10, "each obligation is delivered exactly once")
}
