// Package wba implements the DIDWba Authorization header: payload
// canonicalization and signing, header build/parse, and the one-way/
// two-way response shapes.
package wba

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/anp-wba/core/crypto"
	"github.com/anp-wba/core/did"
)

// AuthenticationContext describes one authentication attempt: who is
// calling, who (if anyone) they expect to authenticate in return, and
// which request it is signing for.
type AuthenticationContext struct {
	CallerDID     string
	TargetDID     string // empty => one-way
	RequestURL    string
	Method        string
	CustomHeaders map[string]string
	JSONData      any
	UseTwoWayAuth bool
	Domain        string // host portion of RequestURL, no port; derived if empty
}

// ServiceDomain returns the host-only (no port) service value used in the
// signed payload, deriving it from RequestURL when Domain is unset.
func (c *AuthenticationContext) ServiceDomain() (string, error) {
	if c.Domain != "" {
		return c.Domain, nil
	}
	u, err := url.Parse(c.RequestURL)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	return u.Hostname(), nil
}

// VirtualBackServiceDomain is the fixed service value a target signs
// against when proving control of resp_did in a two-way exchange,
// independent of the real transport URL.
const VirtualBackServiceDomain = "virtual.WBAback"

// authPayload is the JCS-canonicalized, then double-hashed, object that
// gets signed.
type authPayload struct {
	Nonce     string `json:"nonce"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	DID       string `json:"did"`
	RespDID   string `json:"resp_did,omitempty"`
}

func (p *authPayload) canonicalize() ([]byte, error) {
	return crypto.CanonicalizeJCS(p)
}

// newNonce generates 16 random bytes, hex-encoded. NOT a UUID: uuids
// are reserved here for log correlation, see server.Middleware.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func newTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// sign signs the canonicalized payload with the given key pair, choosing
// the hashing convention appropriate to the key type: secp256k1 signs a
// double-SHA256 digest of the canonical bytes (content_hash hashed again
// by ECDSA(SHA-256)); Ed25519 signs the canonical bytes directly, since
// Ed25519 performs its own internal hashing.
func sign(kp *did.KeyPair, payload *authPayload) (string, error) {
	canonical, err := payload.canonicalize()
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	switch kp.KeyType() {
	case "secp256k1":
		digest := crypto.DoubleSHA256(canonical)
		return crypto.Secp256k1Sign(kp.ECDSAPrivateKey, digest)
	case "ed25519":
		return crypto.Ed25519Sign(kp.Ed25519PrivateKey, canonical)
	default:
		return "", fmt.Errorf("unsupported key type: %s", kp.KeyType())
	}
}

// verify checks a signature against the reconstructed payload using the
// verification method's public key, applying the same hashing convention
// as sign so the two sides are symmetric.
func verify(method *did.VerificationMethod, payload *authPayload, signature string) (bool, error) {
	canonical, err := payload.canonicalize()
	if err != nil {
		return false, fmt.Errorf("canonicalize payload: %w", err)
	}

	keyType, ecdsaKey, edKey, err := method.PublicKey()
	if err != nil {
		return false, err
	}

	switch keyType {
	case "secp256k1":
		digest := crypto.DoubleSHA256(canonical)
		return crypto.Secp256k1Verify(ecdsaKey, digest, signature), nil
	case "ed25519":
		return crypto.Ed25519Verify(ed25519.PublicKey(edKey), canonical, signature), nil
	default:
		return false, fmt.Errorf("unsupported key type: %s", keyType)
	}
}
