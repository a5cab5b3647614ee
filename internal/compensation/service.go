package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
)

// OrderStore is the slice of the order repo compensation needs.
// *checkout.Repo satisfies it.
type OrderStore interface {
	Compensate(ctx context.Context, orderID string) error
}

// Deduper is check-then-mark: the event id is only remembered once the
// restoration has committed, so a transient store failure leaves the
// redelivered message free to run again.
type Deduper interface {
	Marked(ctx context.Context, service, id string) (bool, error)
	Mark(ctx context.Context, service, id string) error
}

// Service reverses an order's reservation and redemption effects once it is
// cancelled. The store keeps the operation idempotent; redis dedup just skips
// obvious redeliveries cheaply.
type Service struct {
	Store       OrderStore
	Dedup       Deduper
	ServiceName string
}

func (s *Service) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventOrderCancelled {
		return nil
	}

	p, err := kafkax.UnwrapPayload[checkout.OrderCancelledPayload](env.Payload)
	if err != nil {
		return err
	}

	if seen, err := s.Dedup.Marked(ctx, "compensation", env.EventID); err != nil {
		log.Printf("compensation dedup %s: %v", env.EventID, err)
	} else if seen {
		return nil
	}

	if err := s.Store.Compensate(ctx, p.OrderID); err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			log.Printf("compensation: no order %s (event %s)", p.OrderID, env.EventID)
			return nil
		}
		// returning the error leaves the offset uncommitted so the release
		// is retried; unlike payment writes this one is safe to re-run
		return err
	}
	// remembered only now: marking before the store call would let a
	// redelivery after a transient failure skip the restoration for good
	if err := s.Dedup.Mark(ctx, "compensation", env.EventID); err != nil {
		log.Printf("compensation dedup mark %s: %v", env.EventID, err)
	}
	log.Printf("%s: order %s released (%d lines)", s.ServiceName, p.OrderID, len(p.Items))
	return nil
}
