// Package hmacsig implements the keyed-hash signature scheme shared by the
// payment provider's webhooks and the server-initiated order flow:
// hex(HMAC-SHA256(secret, body)).
package hmacsig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret, in constant
// time with respect to the signature contents.
func Verify(secret, body []byte, signature string) bool {
	if len(signature) == 0 {
		return false
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
