package crypto

import (
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// GenerateEd25519KeyPair generates a new Ed25519 key pair.
func GenerateEd25519KeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Ed25519Sign signs the raw message (not a digest, Ed25519 hashes
// internally) and returns base64url(signature), unpadded.
func Ed25519Sign(privateKey ed25519.PrivateKey, message []byte) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("invalid ed25519 private key size: %d", len(privateKey))
	}
	sig := ed25519.Sign(privateKey, message)
	return B64URLEncode(sig), nil
}

// Ed25519Verify verifies a base64url-encoded signature over message.
func Ed25519Verify(publicKey ed25519.PublicKey, message []byte, signature string) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := B64URLDecode(signature)
	if err != nil {
		return false
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(publicKey, message, sigBytes)
}
