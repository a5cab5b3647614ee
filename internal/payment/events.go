package payment

const (
	GatewayTransfer = "transfer"
	GatewayCard     = "card"
)

// GatewayEventPayload is what webhook handlers publish once a signature
// verifies. GatewayEventID is the idempotency key: the card gateway supplies
// its own event id, the transfer gateway has none so orderCode+outcome stands
// in for it. Exactly one of OrderID / OrderCode is set depending on how the
// gateway correlates.
type GatewayEventPayload struct {
	Gateway        string `json:"gateway"`
	GatewayEventID string `json:"gateway_event_id"`
	OrderID        string `json:"order_id,omitempty"`
	OrderCode      int64  `json:"order_code,omitempty"`
	Outcome        State  `json:"outcome"`
	Amount         int64  `json:"amount"`
}
