package voucher

import (
	"errors"
	"time"
)

type Kind string

const (
	KindItem Kind = "item"
	KindShip Kind = "ship"
)

// Voucher separates redemption capacity from allowlist membership.
// MaxRedemptions is the total capacity; RedemptionStock is what remains and
// moves only when a voucher is applied to an order (or restored on cancel).
// Allowlist size is derived from voucher_users and capped by MaxRedemptions.
type Voucher struct {
	ID              string
	Kind            Kind
	DiscountPct     int   // 1..100
	MinSubtotal     int64 // minimum base amount to qualify
	Cap             int64 // absolute discount cap
	MaxRedemptions  int
	RedemptionStock int
	StartsAt        time.Time
	EndsAt          time.Time
	Disabled        bool
}

type Discount struct {
	Item int64 `json:"item_discount"`
	Ship int64 `json:"ship_discount"`
}

// Redemption records one voucher applied to an order.
type Redemption struct {
	VoucherID string `json:"voucher_id"`
	Kind      Kind   `json:"kind"`
	Amount    int64  `json:"amount"`
}

var (
	ErrNotFound       = errors.New("voucher not found")
	ErrDisabled       = errors.New("voucher is disabled")
	ErrOutsideWindow  = errors.New("voucher is expired or not yet active")
	ErrExhausted      = errors.New("voucher has no redemptions left")
	ErrConditionUnmet = errors.New("order subtotal is below the voucher minimum")
	ErrNotEligible    = errors.New("user is not entitled to this voucher")
	ErrAlreadyGranted = errors.New("user already holds this voucher")
	ErrAllowlistFull  = errors.New("voucher allowlist is full")
	ErrNotGranted     = errors.New("user does not hold this voucher")
)

// Evaluate applies the redemption rules in a fixed order: disabled, validity
// window, remaining stock, minimum subtotal, membership. The discount lands on
// the axis matching the voucher kind; the other axis stays zero.
func Evaluate(v Voucher, member bool, subtotal, shipCost int64, now time.Time) (Discount, error) {
	if v.Disabled {
		return Discount{}, ErrDisabled
	}
	if now.Before(v.StartsAt) || now.After(v.EndsAt) {
		return Discount{}, ErrOutsideWindow
	}
	if v.RedemptionStock <= 0 {
		return Discount{}, ErrExhausted
	}
	if subtotal < v.MinSubtotal {
		return Discount{}, ErrConditionUnmet
	}
	if !member {
		return Discount{}, ErrNotEligible
	}

	var d Discount
	switch v.Kind {
	case KindShip:
		d.Ship = capAmount(shipCost*int64(v.DiscountPct)/100, v.Cap)
	default:
		d.Item = capAmount(subtotal*int64(v.DiscountPct)/100, v.Cap)
	}
	return d, nil
}

func (d Discount) Amount() int64 { return d.Item + d.Ship }

func capAmount(amount, cap int64) int64 {
	if amount > cap {
		return cap
	}
	return amount
}
