package compensation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
)

type fakeStore struct {
	calls map[string]int
	err   error
}

func (f *fakeStore) Compensate(_ context.Context, orderID string) error {
	if f.err != nil {
		return f.err
	}
	f.calls[orderID]++
	return nil
}

type fakeDedup struct{ seen map[string]bool }

func (f *fakeDedup) Marked(_ context.Context, service, id string) (bool, error) {
	return f.seen[service+":"+id], nil
}

func (f *fakeDedup) Mark(_ context.Context, service, id string) error {
	f.seen[service+":"+id] = true
	return nil
}

func cancelledMessage(t *testing.T, orderID string) kafkago.Message {
	t.Helper()
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(checkout.OrderCancelledPayload{
			OrderID: orderID,
			Items:   []catalog.SizeQty{{SizeID: "s1", Qty: 2}},
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestCancelledOrderIsCompensated(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}}
	svc := &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}}

	require.NoError(t, svc.HandleOrderCancelled(context.Background(), cancelledMessage(t, "ord-1")))
	assert.Equal(t, 1, store.calls["ord-1"])
}

func TestRedeliveredCancellationSkipped(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}}
	svc := &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}}

	m := cancelledMessage(t, "ord-1")
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), m))
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), m))
	assert.Equal(t, 1, store.calls["ord-1"])
}

func TestStoreFailureIsRetriable(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}, err: errors.New("db down")}
	dedup := &fakeDedup{seen: map[string]bool{}}
	svc := &Service{Store: store, Dedup: dedup}

	err := svc.HandleOrderCancelled(context.Background(), cancelledMessage(t, "ord-1"))
	assert.Error(t, err, "transient failures must not commit the offset")
	assert.Empty(t, dedup.seen, "a failed restoration must not be remembered as done")
}

func TestRedeliveryAfterTransientFailureCompensates(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}, err: errors.New("db down")}
	svc := &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}}
	m := cancelledMessage(t, "ord-1")

	require.Error(t, svc.HandleOrderCancelled(context.Background(), m))

	store.err = nil
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), m))
	assert.Equal(t, 1, store.calls["ord-1"], "redelivered cancellation must compensate")
}

func TestMissingOrderIsNotFatal(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}, err: checkout.ErrOrderNotFound}
	svc := &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}}

	assert.NoError(t, svc.HandleOrderCancelled(context.Background(), cancelledMessage(t, "ord-x")))
}

func TestForeignEventTypeIgnored(t *testing.T) {
	store := &fakeStore{calls: map[string]int{}}
	svc := &Service{Store: store, Dedup: &fakeDedup{seen: map[string]bool{}}}

	env := checkout.Envelope{
		EventID:   uuid.NewString(),
		EventType: checkout.EventOrderCreated,
		Payload:   kafkax.MustMarshal(checkout.OrderCreatedPayload{OrderID: "ord-1"}),
	}
	m := kafkago.Message{Value: kafkax.MustMarshal(env)}
	require.NoError(t, svc.HandleOrderCancelled(context.Background(), m))
	assert.Empty(t, store.calls)
}
