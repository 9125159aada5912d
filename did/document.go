// Package did implements the did:wba document model: verification
// methods, credentials, and the local-first-then-network resolver.
package did

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/anp-wba/core/crypto"
)

// Verification method types recognized by this package.
const (
	TypeEcdsaSecp256k1 = "EcdsaSecp256k1VerificationKey2019"
	TypeEd25519        = "Ed25519VerificationKey2018"
)

// ErrKeyEncodingMismatch is returned when a verification method carries
// both publicKeyMultibase and publicKeyJwk but they decode to different
// key material.
var ErrKeyEncodingMismatch = errors.New("did: multibase and jwk encodings disagree on the public key")

// JWK is the subset of JSON Web Key fields used for secp256k1 public keys.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	Kid string `json:"kid,omitempty"`
}

// VerificationMethod is a single key entry in a DID document.
type VerificationMethod struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase,omitempty"`
	PublicKeyJWK       *JWK   `json:"publicKeyJwk,omitempty"`
}

// Fragment returns the `#fragment` portion of the method's ID.
func (m *VerificationMethod) Fragment() string {
	if idx := strings.Index(m.ID, "#"); idx >= 0 {
		return m.ID[idx+1:]
	}
	return m.ID
}

// PublicKey decodes the verification method's key material. When both
// multibase and JWK encodings are present, it requires they resolve to
// the same point rather than picking one arbitrarily.
func (m *VerificationMethod) PublicKey() (keyType string, ecdsaKey *ecdsa.PublicKey, ed25519Key []byte, err error) {
	haveMultibase := m.PublicKeyMultibase != ""
	haveJWK := m.PublicKeyJWK != nil

	if !haveMultibase && !haveJWK {
		return "", nil, nil, fmt.Errorf("verification method %q has no public key encoding", m.ID)
	}

	var mbType string
	var mbECDSA *ecdsa.PublicKey
	var mbEd []byte
	if haveMultibase {
		mbType, mbECDSA, mbEd, err = decodeMultibase(m.PublicKeyMultibase)
		if err != nil {
			return "", nil, nil, fmt.Errorf("decode publicKeyMultibase: %w", err)
		}
	}

	var jwkType string
	var jwkECDSA *ecdsa.PublicKey
	if haveJWK {
		jwkType, jwkECDSA, err = decodeJWK(m.PublicKeyJWK)
		if err != nil {
			return "", nil, nil, fmt.Errorf("decode publicKeyJwk: %w", err)
		}
	}

	switch {
	case haveMultibase && haveJWK:
		if mbType != jwkType {
			return "", nil, nil, ErrKeyEncodingMismatch
		}
		if mbType == "secp256k1" {
			if mbECDSA.X.Cmp(jwkECDSA.X) != 0 || mbECDSA.Y.Cmp(jwkECDSA.Y) != 0 {
				return "", nil, nil, ErrKeyEncodingMismatch
			}
		}
		return mbType, mbECDSA, mbEd, nil
	case haveMultibase:
		return mbType, mbECDSA, mbEd, nil
	default:
		return jwkType, jwkECDSA, nil, nil
	}
}

func decodeMultibase(multibase string) (string, *ecdsa.PublicKey, []byte, error) {
	keyType, raw, err := crypto.DecodeMultibaseKey(multibase)
	if err != nil {
		return "", nil, nil, err
	}
	if keyType == "ed25519" {
		return "ed25519", nil, raw, nil
	}
	pub, err := crypto.PublicKeyFromUncompressed(raw)
	if err != nil {
		return "", nil, nil, err
	}
	return "secp256k1", pub, nil, nil
}

func decodeJWK(jwk *JWK) (string, *ecdsa.PublicKey, error) {
	if jwk.Kty != "EC" || jwk.Crv != "secp256k1" {
		return "", nil, fmt.Errorf("unsupported jwk parameters: kty=%s crv=%s", jwk.Kty, jwk.Crv)
	}
	xBytes, err := crypto.B64URLDecode(jwk.X)
	if err != nil {
		return "", nil, fmt.Errorf("invalid jwk x: %w", err)
	}
	yBytes, err := crypto.B64URLDecode(jwk.Y)
	if err != nil {
		return "", nil, fmt.Errorf("invalid jwk y: %w", err)
	}
	coordSize := 32
	point := make([]byte, 1+coordSize*2)
	point[0] = 0x04
	copy(point[1+coordSize-len(xBytes):1+coordSize], xBytes)
	copy(point[1+2*coordSize-len(yBytes):], yBytes)
	pub, err := crypto.PublicKeyFromUncompressed(point)
	if err != nil {
		return "", nil, err
	}
	return "secp256k1", pub, nil
}

// Service is a service endpoint entry in a DID document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is a did:wba DID document.
type Document struct {
	Context             []string             `json:"@context"`
	ID                  string               `json:"id"`
	VerificationMethod  []VerificationMethod `json:"verificationMethod"`
	Authentication      []string             `json:"authentication"`
	Service             []Service            `json:"service,omitempty"`
	RawDocument         map[string]any       `json:"-"`
}

// UnmarshalJSON decodes the document while also preserving the original
// JSON object in RawDocument, so later canonical re-verification can use
// the exact bytes the peer published rather than our re-serialization.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := sonic.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)

	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.RawDocument = raw
	return nil
}

// MarshalJSON emits the document via its typed fields; RawDocument is not
// round-tripped since it exists only to preserve the resolver's view of
// peer-published bytes.
func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	return sonic.Marshal(alias(d))
}

// VerificationMethodByFragment returns the verification method whose ID
// is "<document id>#<fragment>" or whose own fragment matches. Only
// VerificationMethod is searched; Authentication is not consulted.
func (d *Document) VerificationMethodByFragment(fragment string) (*VerificationMethod, error) {
	fragment = strings.TrimPrefix(fragment, "#")
	wantID := fmt.Sprintf("%s#%s", d.ID, fragment)
	for i := range d.VerificationMethod {
		if d.VerificationMethod[i].ID == wantID || d.VerificationMethod[i].Fragment() == fragment {
			return &d.VerificationMethod[i], nil
		}
	}
	return nil, fmt.Errorf("verification method not found: %s", fragment)
}

// FirstAuthenticationFragment resolves the first authentication entry to
// a verification method and returns its fragment.
func (d *Document) FirstAuthenticationFragment() (string, error) {
	if len(d.Authentication) == 0 {
		return "", errors.New("did document has no authentication methods")
	}
	ref := d.Authentication[0]
	fragment := ref
	if idx := strings.Index(ref, "#"); idx >= 0 {
		fragment = ref[idx+1:]
	}
	if _, err := d.VerificationMethodByFragment(fragment); err != nil {
		return "", err
	}
	return fragment, nil
}
