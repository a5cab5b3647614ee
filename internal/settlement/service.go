package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/payment"
)

// OrderStore is the slice of the order repo the reconciler needs.
// *checkout.Repo satisfies it.
type OrderStore interface {
	PaymentStatus(ctx context.Context, orderID string) (payment.State, error)
	ResolveByCode(ctx context.Context, orderCode int64) (string, payment.State, error)
	SetPaymentStatus(ctx context.Context, orderID string, from, to payment.State) (bool, error)
}

type Deduper interface {
	Seen(ctx context.Context, service, id string) (bool, error)
}

// Service applies verified gateway events to order payment state. Delivery is
// at-least-once and unordered, so every step is a guarded no-op on replay:
// dedup by gateway event id, then a compare-and-set on the payment status.
type Service struct {
	Store       OrderStore
	Dedup       Deduper
	ServiceName string
}

// HandlePaymentEvent is the consumer handler for the payment gateway topic.
// Store failures during processing are logged and the offset still commits:
// a broken write here is a reconciliation gap for manual follow-up, not
// something a blind redelivery loop can fix.
func (s *Service) HandlePaymentEvent(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventPaymentGateway {
		return nil
	}

	p, err := kafkax.UnwrapPayload[payment.GatewayEventPayload](env.Payload)
	if err != nil {
		return err
	}

	// dedup on the gateway's own id: webhook replays arrive wrapped in fresh
	// envelopes, so the envelope event_id would not catch them
	if seen, err := s.Dedup.Seen(ctx, "settlement", p.GatewayEventID); err != nil {
		log.Printf("settlement dedup %s: %v", p.GatewayEventID, err)
	} else if seen {
		return nil
	}

	orderID := p.OrderID
	var current payment.State
	if orderID != "" {
		current, err = s.Store.PaymentStatus(ctx, orderID)
	} else {
		orderID, current, err = s.Store.ResolveByCode(ctx, p.OrderCode)
	}
	if errors.Is(err, checkout.ErrOrderNotFound) {
		log.Printf("settlement: no order for gateway event %s (gateway=%s code=%d id=%q)",
			p.GatewayEventID, p.Gateway, p.OrderCode, p.OrderID)
		return nil
	}
	if err != nil {
		log.Printf("settlement: load order for event %s: %v", p.GatewayEventID, err)
		return nil
	}

	if current == p.Outcome {
		return nil // replay of an already-applied outcome
	}
	if !payment.CanTransition(current, p.Outcome) {
		log.Printf("settlement: ignoring %s -> %s for order %s (event %s)",
			current, p.Outcome, orderID, p.GatewayEventID)
		return nil
	}

	applied, err := s.Store.SetPaymentStatus(ctx, orderID, current, p.Outcome)
	if err != nil {
		log.Printf("settlement: apply %s -> %s for order %s: %v", current, p.Outcome, orderID, err)
		return nil
	}
	if !applied {
		// lost a race with another delivery; the winning write was equivalent
		return nil
	}
	log.Printf("%s: order %s payment %s -> %s (gateway=%s event=%s)",
		s.ServiceName, orderID, current, p.Outcome, p.Gateway, p.GatewayEventID)
	return nil
}
