package crypto

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// Ed25519PrivateKeyToPEM encodes an Ed25519 private key as a standard
// PKCS#8 PEM block. Unlike secp256k1, Go's x509 package already
// understands Ed25519 PKCS#8, so no custom ASN.1 is needed here.
func Ed25519PrivateKeyToPEM(key ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal ed25519 private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// Ed25519PrivateKeyFromPEM decodes a PKCS#8-encoded Ed25519 private key.
func Ed25519PrivateKeyFromPEM(pemBytes []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#8 private key: %w", err)
	}

	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PEM block does not contain an ed25519 private key: %T", key)
	}
	return edKey, nil
}
