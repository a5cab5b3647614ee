package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
	"github.com/fizennn/serverTest-sub000/internal/checkout"
	kafkax "github.com/fizennn/serverTest-sub000/internal/kafka"
	"github.com/fizennn/serverTest-sub000/internal/redisx"
	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

type OrdersHandler struct {
	Repo      *checkout.Repo
	Created   *kafkax.Producer // order.created
	Cancelled *kafkax.Producer // order.cancelled
	Redis     *redis.Client
	Service   string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/store-pickup", h.storePickup)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in checkout.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, existed, err := h.Repo.Create(ctx, in)
	if err != nil {
		code, msg := mapCheckoutError(err)
		writeError(w, code, msg)
		return
	}

	if in.ExternalID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, in.ExternalID)
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheStatus(ctx, o)

	if !existed {
		h.publish(h.Created, checkout.EventOrderCreated, o.ID, r.Header.Get("X-Request-Id"),
			checkout.OrderCreatedPayload{OrderID: o.ID, OrderCode: o.OrderCode, UserID: o.UserID, Total: o.Total})
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// status cache first, full order from DB on miss
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, items, err := h.Repo.Cancel(ctx, orderID)
	if err != nil {
		code, msg := mapCheckoutError(err)
		writeError(w, code, msg)
		return
	}
	h.cacheStatus(ctx, o)

	h.publish(h.Cancelled, checkout.EventOrderCancelled, o.ID, r.Header.Get("X-Request-Id"),
		checkout.OrderCancelledPayload{OrderID: o.ID, Items: items, Reason: "user cancellation"})

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var body struct {
		Status checkout.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Status == checkout.StatusCancelled {
		writeError(w, http.StatusBadRequest, "use the cancel endpoint")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.UpdateStatus(ctx, orderID, body.Status); err != nil {
		code, msg := mapCheckoutError(err)
		writeError(w, code, msg)
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	writeJSON(w, http.StatusOK, map[string]any{"id": orderID, "status": body.Status})
}

func (h *OrdersHandler) storePickup(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Repo.SetStorePickup(ctx, orderID)
	if err != nil {
		code, msg := mapCheckoutError(err)
		writeError(w, code, msg)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *checkout.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(map[string]any{
		"id":             o.ID,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"total":          o.Total,
	})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, orderID, traceID string, payload any) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(checkout.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// mapCheckoutError turns domain rejections into user-facing 4xx messages that
// name the offending line or voucher; anything unrecognized stays a 500.
func mapCheckoutError(err error) (int, string) {
	var stockErr *catalog.InsufficientStockError
	switch {
	case errors.Is(err, checkout.ErrInvalidInput),
		errors.Is(err, checkout.ErrAddressNotFound),
		errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, catalog.ErrSizeNotFound):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.Is(err, voucher.ErrNotFound),
		errors.Is(err, voucher.ErrDisabled),
		errors.Is(err, voucher.ErrOutsideWindow),
		errors.Is(err, voucher.ErrExhausted),
		errors.Is(err, voucher.ErrConditionUnmet),
		errors.Is(err, voucher.ErrNotEligible):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, checkout.ErrOrderNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
