package voucher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeVoucher(kind Kind) Voucher {
	now := time.Now()
	return Voucher{
		ID:              "v-test",
		Kind:            kind,
		DiscountPct:     10,
		MinSubtotal:     100000,
		Cap:             15000,
		MaxRedemptions:  100,
		RedemptionStock: 100,
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(time.Hour),
	}
}

func TestEvaluateItemDiscountCapped(t *testing.T) {
	v := activeVoucher(KindItem)
	d, err := Evaluate(v, true, 200000, 30000, time.Now())
	require.NoError(t, err)
	// 10% of 200000 is 20000, capped at 15000
	assert.Equal(t, int64(15000), d.Item)
	assert.Equal(t, int64(0), d.Ship)
}

func TestEvaluateItemDiscountUnderCap(t *testing.T) {
	v := activeVoucher(KindItem)
	d, err := Evaluate(v, true, 120000, 0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(12000), d.Item)
}

func TestEvaluateShipDiscountOnlyTouchesShipAxis(t *testing.T) {
	v := activeVoucher(KindShip)
	v.Cap = 20000
	d, err := Evaluate(v, true, 200000, 30000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Item)
	assert.Equal(t, int64(3000), d.Ship)
}

func TestEvaluateShipDiscountCapped(t *testing.T) {
	v := activeVoucher(KindShip)
	v.DiscountPct = 100
	v.Cap = 10000
	d, err := Evaluate(v, true, 200000, 30000, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(10000), d.Ship)
}

func TestEvaluateConditionUnmet(t *testing.T) {
	v := activeVoucher(KindItem)
	_, err := Evaluate(v, true, 50000, 0, time.Now())
	assert.ErrorIs(t, err, ErrConditionUnmet)
}

func TestEvaluateDisabled(t *testing.T) {
	v := activeVoucher(KindItem)
	v.Disabled = true
	_, err := Evaluate(v, true, 200000, 0, time.Now())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestEvaluateOutsideWindow(t *testing.T) {
	v := activeVoucher(KindItem)
	_, err := Evaluate(v, true, 200000, 0, v.EndsAt.Add(time.Minute))
	assert.ErrorIs(t, err, ErrOutsideWindow)

	_, err = Evaluate(v, true, 200000, 0, v.StartsAt.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrOutsideWindow)
}

func TestEvaluateExhausted(t *testing.T) {
	v := activeVoucher(KindItem)
	v.RedemptionStock = 0
	_, err := Evaluate(v, true, 200000, 0, time.Now())
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestEvaluateNotEligible(t *testing.T) {
	v := activeVoucher(KindItem)
	_, err := Evaluate(v, false, 200000, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotEligible)
}

// Disabled outranks every later rule, window outranks stock, and so on: the
// reported reason must be the first rule that fails.
func TestEvaluateRuleOrder(t *testing.T) {
	v := activeVoucher(KindItem)
	v.Disabled = true
	v.RedemptionStock = 0
	_, err := Evaluate(v, false, 0, 0, v.EndsAt.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDisabled)

	v.Disabled = false
	_, err = Evaluate(v, false, 0, 0, v.EndsAt.Add(time.Hour))
	assert.ErrorIs(t, err, ErrOutsideWindow)

	_, err = Evaluate(v, false, 0, 0, time.Now())
	assert.ErrorIs(t, err, ErrExhausted)

	v.RedemptionStock = 5
	_, err = Evaluate(v, false, 0, 0, time.Now())
	assert.ErrorIs(t, err, ErrConditionUnmet)

	_, err = Evaluate(v, false, 150000, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotEligible)
}
