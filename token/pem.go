package token

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	anpcrypto "github.com/anp-wba/core/crypto"
)

// LoadPrivateKeyFromPEM parses a PEM-encoded private key for JWT
// signing. It supports RSA, ECDSA (including secp256k1 via the core
// crypto helpers), and Ed25519 keys.
func LoadPrivateKeyFromPEM(pemBytes []byte) (any, error) {
	if key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseEdPrivateKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := anpcrypto.PrivateKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("parse private key: unrecognized PEM content")
}

// LoadPublicKeyFromPEM parses a PEM-encoded public key for JWT
// verification. It supports RSA, ECDSA, and Ed25519 keys.
func LoadPublicKeyFromPEM(pemBytes []byte) (any, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseEdPublicKeyFromPEM(pemBytes); err == nil {
		return key, nil
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("decode PEM block: no block found")
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	switch pk := parsed.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
		return pk, nil
	default:
		return nil, fmt.Errorf("unsupported public key type: %T", pk)
	}
}
