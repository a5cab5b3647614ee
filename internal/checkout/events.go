package checkout

import (
	"encoding/json"
	"time"

	"github.com/fizennn/serverTest-sub000/internal/catalog"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
	EventPaymentGateway = "PaymentGateway"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid, fresh per delivery
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "fulfillment-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID   string `json:"order_id"`
	OrderCode int64  `json:"order_code"`
	UserID    string `json:"user_id"`
	Total     int64  `json:"total"`
}

type OrderCancelledPayload struct {
	OrderID string            `json:"order_id"`
	Items   []catalog.SizeQty `json:"items"`
	Reason  string            `json:"reason,omitempty"`
}
