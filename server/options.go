package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/token"
)

// Option configures a Verifier at construction time.
type Option func(*Verifier) error

// WithJWTKeys sets the key pair used to sign and verify access tokens.
func WithJWTKeys(privateKey, publicKey any, algorithm string) Option {
	return func(v *Verifier) error {
		if privateKey == nil || publicKey == nil {
			return fmt.Errorf("JWT private and public keys are both required")
		}
		v.cfg.JWTPrivateKey = privateKey
		v.cfg.JWTPublicKey = publicKey
		if algorithm != "" {
			v.cfg.JWTAlgorithm = algorithm
		}
		return nil
	}
}

// WithJWTKeysFromPEM loads the JWT signing key pair from PEM-encoded
// bytes, detecting RSA, ECDSA, or Ed25519 content.
func WithJWTKeysFromPEM(privateKeyPEM, publicKeyPEM []byte, algorithm string) Option {
	return func(v *Verifier) error {
		priv, err := token.LoadPrivateKeyFromPEM(privateKeyPEM)
		if err != nil {
			return fmt.Errorf("load JWT private key: %w", err)
		}
		pub, err := token.LoadPublicKeyFromPEM(publicKeyPEM)
		if err != nil {
			return fmt.Errorf("load JWT public key: %w", err)
		}
		v.cfg.JWTPrivateKey = priv
		v.cfg.JWTPublicKey = pub
		if algorithm != "" {
			v.cfg.JWTAlgorithm = algorithm
		}
		return nil
	}
}

// WithAccessTokenExpiry overrides the default access token lifetime.
func WithAccessTokenExpiry(d time.Duration) Option {
	return func(v *Verifier) error {
		v.cfg.AccessTokenExpire = d
		return nil
	}
}

// WithNonceExpiry overrides how long a nonce is remembered for replay
// detection.
func WithNonceExpiry(d time.Duration) Option {
	return func(v *Verifier) error {
		v.cfg.NonceExpire = d
		return nil
	}
}

// WithTimestampTolerance overrides the allowed clock skew window; a
// request timestamp more than d away from now, in either direction, is
// rejected.
func WithTimestampTolerance(d time.Duration) Option {
	return func(v *Verifier) error {
		v.cfg.TimestampTolerance = d
		return nil
	}
}

// WithAllowedDomains restricts which service domains the Verifier will
// accept requests for. An empty list (the default) allows any domain.
func WithAllowedDomains(domains ...string) Option {
	return func(v *Verifier) error {
		v.cfg.AllowedDomains = domains
		return nil
	}
}

// WithInsecureAllowlist permits resolving the given DID glob patterns
// without requiring local storage to have spoken for them first.
func WithInsecureAllowlist(patterns ...string) Option {
	return func(v *Verifier) error {
		v.cfg.InsecureAllowlist = did.InsecureAllowlist(patterns)
		return nil
	}
}

// WithHTTPClient overrides the HTTP client used for DID document
// resolution.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Verifier) error {
		v.cfg.HTTPClient = client
		return nil
	}
}

// WithResolver overrides the DID resolver entirely, e.g. to inject a
// local-storage-backed lookup.
func WithResolver(resolver *did.Resolver) Option {
	return func(v *Verifier) error {
		v.resolver = resolver
		return nil
	}
}

// WithNonceStore overrides the default in-memory nonce store.
func WithNonceStore(store NonceStore) Option {
	return func(v *Verifier) error {
		v.nonces = store
		return nil
	}
}

// WithServerIdentity configures the DID and credentials the Verifier
// uses to prove control of resp_did during a two-way exchange.
func WithServerIdentity(serverDID string, creds *did.Credentials) Option {
	return func(v *Verifier) error {
		if serverDID == "" || creds == nil {
			return fmt.Errorf("server DID and credentials are both required")
		}
		v.cfg.ServerDID = serverDID
		v.cfg.ServerCredentials = creds
		return nil
	}
}

// WithNowFunc overrides the clock used for timestamp/nonce/token checks,
// for deterministic testing.
func WithNowFunc(now func() time.Time) Option {
	return func(v *Verifier) error {
		v.cfg.NowFunc = now
		return nil
	}
}
