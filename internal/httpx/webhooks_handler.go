package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/payment"
)

const maxWebhookBody = 64 * 1024

// WebhooksHandler acknowledges gateway callbacks and hands the business work
// to the settlement worker over kafka. Gateways retry on non-200, so the
// transfer endpoint answers 200 even for bad signatures (logged, not
// processed); the card gateway's contract allows a 400 on signature failure.
type WebhooksHandler struct {
	Transfer *payment.TransferAdapter
	Card     *payment.CardAdapter
	Producer *kafkax.Producer // payment.gateway topic
	Service  string
}

func (h *WebhooksHandler) Register(r *chi.Mux) {
	r.Post("/webhooks/transfer", h.transfer)
	r.Post("/webhooks/card", h.card)
}

func received(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *WebhooksHandler) transfer(w http.ResponseWriter, r *http.Request) {
	var hook payment.TransferWebhook
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&hook); err != nil {
		log.Printf("transfer webhook: bad body: %v", err)
		received(w)
		return
	}

	if !h.Transfer.Verify(hook.Data, hook.Signature) {
		// never trust the payload, but never hand the gateway a retry either
		log.Printf("transfer webhook: signature mismatch (code=%s)", hook.Code)
		received(w)
		return
	}

	orderCode, ok := hook.OrderCode()
	if !ok {
		log.Printf("transfer webhook: missing orderCode (code=%s desc=%q)", hook.Code, hook.Desc)
		received(w)
		return
	}

	outcome, known := payment.ClassifyTransfer(hook.Code, hook.Desc, hook.Success)
	if !known {
		log.Printf("transfer webhook: unclassified outcome, defaulting to unpaid (code=%s desc=%q)",
			hook.Code, hook.Desc)
	}

	// no gateway event id on this scheme; orderCode+outcome is the
	// idempotency key the settlement worker dedups on
	h.publishGateway(r, payment.GatewayEventPayload{
		Gateway:        payment.GatewayTransfer,
		GatewayEventID: fmt.Sprintf("transfer:%d:%s", orderCode, outcome),
		OrderCode:      orderCode,
		Outcome:        outcome,
		Amount:         hook.Amount(),
	})
	received(w)
}

func (h *WebhooksHandler) card(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.Card.VerifySignature(body, r.Header.Get(payment.SignatureHeader)); err != nil {
		// 400 only for signature failure, before any processing
		log.Printf("card webhook: %v", err)
		writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	ev, err := payment.ParseCardEvent(body)
	if err != nil {
		log.Printf("card webhook: %v", err)
		received(w)
		return
	}

	outcome, known := payment.ClassifyCard(ev.Type)
	if !known {
		received(w) // unrelated event type, acknowledged and dropped
		return
	}
	if ev.OrderID() == "" {
		log.Printf("card webhook: event %s has no orderId metadata", ev.ID)
		received(w)
		return
	}

	h.publishGateway(r, payment.GatewayEventPayload{
		Gateway:        payment.GatewayCard,
		GatewayEventID: ev.ID,
		OrderID:        ev.OrderID(),
		Outcome:        outcome,
		Amount:         ev.Data.Object.Amount,
	})
	received(w)
}

func (h *WebhooksHandler) publishGateway(r *http.Request, p payment.GatewayEventPayload) {
	correlation := p.OrderID
	if correlation == "" {
		correlation = fmt.Sprintf("%d", p.OrderCode)
	}
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventPaymentGateway,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: correlation,
		Payload:       kafkax.MustMarshal(p),
	}
	h.Producer.Publish(checkout.PartitionKey(correlation), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventPaymentGateway)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
