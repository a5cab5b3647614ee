package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/payment"
)

type fakeStore struct {
	states map[string]payment.State // order id -> state
	byCode map[int64]string
	writes int
}

func (f *fakeStore) PaymentStatus(_ context.Context, orderID string) (payment.State, error) {
	s, ok := f.states[orderID]
	if !ok {
		return "", checkout.ErrOrderNotFound
	}
	return s, nil
}

func (f *fakeStore) ResolveByCode(_ context.Context, code int64) (string, payment.State, error) {
	id, ok := f.byCode[code]
	if !ok {
		return "", "", checkout.ErrOrderNotFound
	}
	return id, f.states[id], nil
}

func (f *fakeStore) SetPaymentStatus(_ context.Context, orderID string, from, to payment.State) (bool, error) {
	if f.states[orderID] != from {
		return false, nil
	}
	f.states[orderID] = to
	f.writes++
	return true, nil
}

type fakeDedup struct{ seen map[string]bool }

func (f *fakeDedup) Seen(_ context.Context, service, id string) (bool, error) {
	k := service + ":" + id
	if f.seen[k] {
		return true, nil
	}
	f.seen[k] = true
	return false, nil
}

func newService(store *fakeStore) *Service {
	return &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}, ServiceName: "settlement-test"}
}

func gatewayMessage(t *testing.T, p payment.GatewayEventPayload) kafkago.Message {
	t.Helper()
	env := checkout.Envelope{
		EventID:      uuid.NewString(),
		EventType:    checkout.EventPaymentGateway,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      kafkax.MustMarshal(p),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestPaidEventMarksOrderPaid(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{"ord-1": payment.StateUnpaid}}
	svc := newService(store)

	m := gatewayMessage(t, payment.GatewayEventPayload{
		Gateway: payment.GatewayCard, GatewayEventID: "evt_1",
		OrderID: "ord-1", Outcome: payment.StatePaid,
	})
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
	assert.Equal(t, payment.StatePaid, store.states["ord-1"])
	assert.Equal(t, 1, store.writes)
}

// Replaying the same gateway event must leave the order exactly as one
// application left it.
func TestReplayedEventIsNoOp(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{"ord-1": payment.StateUnpaid}}
	svc := newService(store)

	m := gatewayMessage(t, payment.GatewayEventPayload{
		Gateway: payment.GatewayCard, GatewayEventID: "evt_1",
		OrderID: "ord-1", Outcome: payment.StatePaid,
	})
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))

	assert.Equal(t, payment.StatePaid, store.states["ord-1"])
	assert.Equal(t, 1, store.writes)
}

// The same gateway event re-delivered through a fresh webhook call arrives in
// a fresh envelope; dedup keys on the gateway event id, not the envelope id.
func TestRedeliveredEventInFreshEnvelopeIsNoOp(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{"ord-1": payment.StateUnpaid}}
	svc := newService(store)

	p := payment.GatewayEventPayload{
		Gateway: payment.GatewayCard, GatewayEventID: "evt_1",
		OrderID: "ord-1", Outcome: payment.StatePaid,
	}
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), gatewayMessage(t, p)))
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), gatewayMessage(t, p)))
	assert.Equal(t, 1, store.writes)
}

func TestFailedEventNeverDowngradesPaidOrder(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{"ord-1": payment.StatePaid}}
	svc := newService(store)

	m := gatewayMessage(t, payment.GatewayEventPayload{
		Gateway: payment.GatewayTransfer, GatewayEventID: "transfer:9:unpaid",
		OrderID: "ord-1", Outcome: payment.StateUnpaid,
	})
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
	assert.Equal(t, payment.StatePaid, store.states["ord-1"])
	assert.Equal(t, 0, store.writes)
}

func TestTransferCorrelationByOrderCode(t *testing.T) {
	store := &fakeStore{
		states: map[string]payment.State{"ord-7": payment.StateUnpaid},
		byCode: map[int64]string{42: "ord-7"},
	}
	svc := newService(store)

	m := gatewayMessage(t, payment.GatewayEventPayload{
		Gateway: payment.GatewayTransfer, GatewayEventID: "transfer:42:paid",
		OrderCode: 42, Outcome: payment.StatePaid,
	})
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
	assert.Equal(t, payment.StatePaid, store.states["ord-7"])
}

func TestUnknownOrderIsLoggedNotFatal(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{}, byCode: map[int64]string{}}
	svc := newService(store)

	m := gatewayMessage(t, payment.GatewayEventPayload{
		Gateway: payment.GatewayTransfer, GatewayEventID: "transfer:99:paid",
		OrderCode: 99, Outcome: payment.StatePaid,
	})
	assert.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
}

func TestForeignEventTypeIgnored(t *testing.T) {
	store := &fakeStore{states: map[string]payment.State{"ord-1": payment.StateUnpaid}}
	svc := newService(store)

	env := checkout.Envelope{
		EventID:   uuid.NewString(),
		EventType: checkout.EventOrderCreated,
		Payload:   kafkax.MustMarshal(checkout.OrderCreatedPayload{OrderID: "ord-1"}),
	}
	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	require.NoError(t, svc.HandlePaymentEvent(context.Background(), m))
	assert.Equal(t, 0, store.writes)
}
