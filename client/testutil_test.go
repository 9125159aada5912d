package client

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func generateAuthenticatorTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	return key
}
