package did

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"

	"golang.org/x/crypto/ed25519"

	"github.com/anp-wba/core/crypto"
)

// Prefix is the DID method prefix for this package.
const Prefix = "did:wba:"

// KeyPair binds a verification-method key id to its private/public key
// material. Exactly one of ECDSAPrivateKey or Ed25519PrivateKey is set.
type KeyPair struct {
	KeyID             string
	ECDSAPrivateKey   *ecdsa.PrivateKey
	Ed25519PrivateKey ed25519.PrivateKey
}

// KeyType reports which curve this pair uses.
func (k *KeyPair) KeyType() string {
	if k.ECDSAPrivateKey != nil {
		return "secp256k1"
	}
	return "ed25519"
}

// Credentials bundles a DID document with the private keys that back its
// verification methods.
type Credentials struct {
	DID      string
	Document *Document
	KeyPairs map[string]*KeyPair // keyed by verification method fragment
}

// GetKeyPair returns the key pair for a verification method fragment,
// validating that the fragment both exists in KeyPairs and is declared in
// the DID document.
func (c *Credentials) GetKeyPair(fragment string) (*KeyPair, error) {
	fragment = strings.TrimPrefix(fragment, "#")
	kp, ok := c.KeyPairs[fragment]
	if !ok {
		return nil, fmt.Errorf("no private key loaded for fragment %q", fragment)
	}
	if _, err := c.Document.VerificationMethodByFragment(fragment); err != nil {
		return nil, fmt.Errorf("fragment %q has a key pair but is absent from the DID document: %w", fragment, err)
	}
	return kp, nil
}

// CreateDocument generates a new did:wba document and secp256k1 key pair
// for the given hostname/port/path.
func CreateDocument(hostname string, port *int, pathSegments []string, agentDescriptionURL *string) (*Document, *Credentials, error) {
	if err := validateHostname(hostname); err != nil {
		return nil, nil, err
	}

	id, err := BuildDID(hostname, port, pathSegments)
	if err != nil {
		return nil, nil, err
	}

	privateKey, err := crypto.GenerateECKeyPair(crypto.Secp256k1())
	if err != nil {
		return nil, nil, fmt.Errorf("generate key pair: %w", err)
	}

	fragment := "key-1"
	verificationMethodID := fmt.Sprintf("%s#%s", id, fragment)

	doc := &Document{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/jws-2020/v1",
			"https://w3id.org/security/suites/secp256k1-2019/v1",
		},
		ID: id,
		VerificationMethod: []VerificationMethod{
			{
				ID:           verificationMethodID,
				Type:         TypeEcdsaSecp256k1,
				Controller:   id,
				PublicKeyJWK: buildPublicKeyJWK(&privateKey.PublicKey),
			},
		},
		Authentication: []string{verificationMethodID},
	}

	if agentDescriptionURL != nil {
		doc.Service = []Service{{
			ID:              fmt.Sprintf("%s#ad", id),
			Type:            "AgentDescription",
			ServiceEndpoint: *agentDescriptionURL,
		}}
	}

	creds := &Credentials{
		DID:      id,
		Document: doc,
		KeyPairs: map[string]*KeyPair{
			fragment: {KeyID: fragment, ECDSAPrivateKey: privateKey},
		},
	}

	return doc, creds, nil
}

// BuildDID assembles a did:wba identifier from a hostname, optional port,
// and path segments, percent-escaping the port colon and each segment.
func BuildDID(hostname string, port *int, pathSegments []string) (string, error) {
	if hostname == "" {
		return "", errors.New("hostname cannot be empty")
	}

	didBase := Prefix + hostname
	if port != nil {
		didBase += fmt.Sprintf("%%3A%d", *port)
	}

	id := didBase
	cleaned := make([]string, 0, len(pathSegments))
	for _, seg := range pathSegments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, url.PathEscape(trimmed))
	}
	if len(cleaned) > 0 {
		id = fmt.Sprintf("%s:%s", didBase, strings.Join(cleaned, ":"))
	}

	return id, nil
}

func validateHostname(hostname string) error {
	if hostname == "" {
		return errors.New("hostname cannot be empty")
	}
	if ip := net.ParseIP(hostname); ip != nil {
		return errors.New("hostname cannot be an IP address")
	}
	return nil
}

func buildPublicKeyJWK(publicKey *ecdsa.PublicKey) *JWK {
	params := publicKey.Curve.Params()
	coordSize := (params.BitSize + 7) / 8
	x := padAndEncode(publicKey.X, coordSize)
	y := padAndEncode(publicKey.Y, coordSize)
	return &JWK{Kty: "EC", Crv: "secp256k1", X: x, Y: y}
}

func padAndEncode(value *big.Int, size int) string {
	buf := value.Bytes()
	padded := make([]byte, size)
	copy(padded[size-len(buf):], buf)
	return crypto.B64URLEncode(padded)
}
