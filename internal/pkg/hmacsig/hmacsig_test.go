package hmacsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"event":"order.paid"}`)

	sig := Sign(secret, body)
	assert.True(t, Verify(secret, body, sig))
}

func TestVerifyRejects(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"event":"order.paid"}`)
	sig := Sign(secret, body)

	assert.False(t, Verify([]byte("other"), body, sig), "wrong secret")
	assert.False(t, Verify(secret, []byte(`{"event":"tampered"}`), sig), "tampered body")
	assert.False(t, Verify(secret, body, ""), "empty signature")
	assert.False(t, Verify(secret, body, "not-hex!"), "malformed signature")
}
