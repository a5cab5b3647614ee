package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// TransferWebhook is the bank-transfer gateway's callback body. The gateway
// correlates to an order through the numeric orderCode inside data.
type TransferWebhook struct {
	Code      string         `json:"code"`
	Desc      string         `json:"desc"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data"`
	Signature string         `json:"signature"`
}

type TransferAdapter struct {
	ChecksumKey string
}

// Sign computes the hex HMAC-SHA256 of the canonical query-string form of data.
func (a *TransferAdapter) Sign(data map[string]any) string {
	mac := hmac.New(sha256.New, []byte(a.ChecksumKey))
	mac.Write([]byte(CanonicalQuery(data)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify rejects everything when no checksum key is configured; an empty key
// would make the HMAC computable by anyone who can reach the endpoint.
func (a *TransferAdapter) Verify(data map[string]any, signature string) bool {
	if a.ChecksumKey == "" {
		return false
	}
	return hmac.Equal([]byte(a.Sign(data)), []byte(signature))
}

// CanonicalQuery serializes data as key=value pairs joined by '&' with keys
// sorted alphabetically. Nested objects and arrays are JSON-serialized, which
// sorts their own keys as well (encoding/json marshals map keys in order).
func CanonicalQuery(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(canonicalValue(data[k]))
	}
	return b.String()
}

func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		// json numbers decode as float64; keep integral values undecorated
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// OrderCode extracts the gateway's numeric order reference from data.
func (w TransferWebhook) OrderCode() (int64, bool) {
	raw, ok := w.Data["orderCode"]
	if !ok {
		return 0, false
	}
	switch t := raw.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Amount extracts the paid amount, zero when absent.
func (w TransferWebhook) Amount() int64 {
	raw, ok := w.Data["amount"]
	if !ok {
		return 0
	}
	if f, ok := raw.(float64); ok {
		return int64(f)
	}
	return 0
}

// ClassifyTransfer maps the gateway status code and free-text description to a
// payment outcome. The second return is false when neither the success nor the
// failure vocabulary matched; callers default to unpaid and log those.
func ClassifyTransfer(code, desc string, success bool) (State, bool) {
	d := strings.ToLower(desc)
	if code == "00" && success && strings.Contains(d, "success") {
		return StatePaid, true
	}
	for _, word := range []string{"failed", "cancelled", "error"} {
		if strings.Contains(d, word) {
			return StateUnpaid, true
		}
	}
	return StateUnpaid, false
}
