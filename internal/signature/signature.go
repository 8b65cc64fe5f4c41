// Package signature computes and checks the keyed digests guarding both
// directions of payment events: outbound merchant notifications and
// inbound gateway confirmations. The two directions use distinct
// canonicalization strings and are not interchangeable.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// SignOutbound returns the hex HMAC-SHA256 of "{timestamp}.{body}" under
// secret. Deterministic: the same inputs always yield the same signature.
func SignOutbound(timestampMillis int64, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyInbound recomputes the HMAC-SHA256 of "{orderId}|{paymentId}"
// under secret and compares it against sig in constant time. Any
// mismatch, including a length mismatch, yields false; malformed input
// never panics.
func VerifyInbound(orderID, paymentID, sig, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}
