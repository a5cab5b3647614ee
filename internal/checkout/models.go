package checkout

import (
	"errors"
	"time"

	"github.com/fizennn/serverTest-sub000/internal/payment"
	"github.com/fizennn/serverTest-sub000/internal/voucher"
)

const (
	MethodCOD      = "COD"
	MethodTransfer = "transfer"
	MethodCard     = "card"
)

// Order is an immutable snapshot of purchase intent: item prices and variant
// text are frozen at creation, later catalog edits never rewrite history.
type Order struct {
	ID            string               `json:"id"`
	UserID        string               `json:"user_id"`
	OrderCode     int64                `json:"order_code"`
	Receiver      string               `json:"receiver"`
	Phone         string               `json:"phone"`
	Address       string               `json:"address"`
	AtStore       bool                 `json:"at_store"`
	PaymentMethod string               `json:"payment_method"`
	Subtotal      int64                `json:"subtotal"`
	ItemDiscount  int64                `json:"item_discount"`
	ShipDiscount  int64                `json:"ship_discount"`
	ShipCost      int64                `json:"ship_cost"`
	Total         int64                `json:"total"`
	Status        Status               `json:"status"`
	PaymentStatus payment.State        `json:"payment_status"`
	Note          string               `json:"note,omitempty"`
	Items         []OrderItem          `json:"items"`
	Vouchers      []voucher.Redemption `json:"vouchers"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

type OrderItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	VariantID    string `json:"variant_id"`
	SizeID       string `json:"size_id"`
	ProductName  string `json:"product_name"`
	VariantColor string `json:"variant_color"`
	SizeLabel    string `json:"size_label"`
	Qty          int    `json:"qty"`
	UnitPrice    int64  `json:"unit_price"`
}

type LineInput struct {
	SizeID   string `json:"size_id"`
	Quantity int    `json:"quantity"`
}

type CreateInput struct {
	ExternalID    string      `json:"external_id,omitempty"`
	UserID        string      `json:"user_id"`
	AddressID     string      `json:"address_id"`
	Items         []LineInput `json:"items"`
	Vouchers      []string    `json:"vouchers,omitempty"`
	AtStore       bool        `json:"at_store"`
	PaymentMethod string      `json:"payment"`
	ShipCost      int64       `json:"ship_cost"`
	StoreAddress  string      `json:"store_address,omitempty"`
	Note          string      `json:"note,omitempty"`
}

var (
	ErrAddressNotFound   = errors.New("address not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid order input")
)
