package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedAdapter() *CardAdapter {
	at := time.Unix(1_700_000_000, 0)
	return &CardAdapter{Secret: "whsec_test", Now: func() time.Time { return at }}
}

func TestCardVerifySignature(t *testing.T) {
	a := fixedAdapter()
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	header := a.SignPayload(body, a.now().Unix())
	assert.NoError(t, a.VerifySignature(body, header))
}

func TestCardVerifyRejectsTamperedBody(t *testing.T) {
	a := fixedAdapter()
	header := a.SignPayload([]byte(`{"amount":100}`), a.now().Unix())
	err := a.VerifySignature([]byte(`{"amount":999}`), header)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestCardVerifyRejectsWrongSecret(t *testing.T) {
	a := fixedAdapter()
	other := &CardAdapter{Secret: "whsec_other"}
	body := []byte(`{}`)
	header := other.SignPayload(body, a.now().Unix())
	assert.ErrorIs(t, a.VerifySignature(body, header), ErrSignatureMismatch)
}

func TestCardVerifyRejectsStaleTimestamp(t *testing.T) {
	a := fixedAdapter()
	body := []byte(`{}`)
	header := a.SignPayload(body, a.now().Add(-10*time.Minute).Unix())
	assert.ErrorIs(t, a.VerifySignature(body, header), ErrSignatureExpired)
}

func TestCardVerifyRejectsEmptySecret(t *testing.T) {
	a := &CardAdapter{Now: fixedAdapter().Now}
	body := []byte(`{}`)
	header := a.SignPayload(body, a.now().Unix())
	assert.ErrorIs(t, a.VerifySignature(body, header), ErrSecretUnset,
		"an unset secret must reject even its own signature")
}

func TestCardVerifyRejectsMalformedHeader(t *testing.T) {
	a := fixedAdapter()
	for _, h := range []string{"", "v1=abc", "t=notanumber,v1=abc", "t=123"} {
		assert.ErrorIsf(t, a.VerifySignature([]byte(`{}`), h), ErrSignatureHeader, "header=%q", h)
	}
}

func TestParseCardEventMetadataCorrelation(t *testing.T) {
	body := []byte(`{
		"id": "evt_42",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 215000, "metadata": {"orderId": "ord-9"}}}
	}`)
	ev, err := ParseCardEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_42", ev.ID)
	assert.Equal(t, "ord-9", ev.OrderID())
	assert.Equal(t, int64(215000), ev.Data.Object.Amount)
}

func TestClassifyCard(t *testing.T) {
	got, ok := ClassifyCard(EventPaymentSucceeded)
	assert.True(t, ok)
	assert.Equal(t, StatePaid, got)

	got, ok = ClassifyCard(EventPaymentFailed)
	assert.True(t, ok)
	assert.Equal(t, StateUnpaid, got)

	got, ok = ClassifyCard(EventPaymentCanceled)
	assert.True(t, ok)
	assert.Equal(t, StateUnpaid, got)

	got, ok = ClassifyCard(EventChargeRefunded)
	assert.True(t, ok)
	assert.Equal(t, StateRefunded, got)

	_, ok = ClassifyCard("charge.dispute.created")
	assert.False(t, ok)
}
