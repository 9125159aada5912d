// Package client builds and caches outgoing DIDWba Authorization
// headers, drives the two-way authentication handshake, and wraps
// http.Client with automatic (re-)authentication.
package client

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/token"
	"github.com/anp-wba/core/wba"
)

// Authenticator holds one caller's DID material, the per-domain DIDWba
// header cache, and the store of tokens adopted from targets (kept for
// diagnostics only; see RemoteTokenFor).
type Authenticator struct {
	credentials *did.Credentials

	tokens      *token.Store
	authHeaders map[string]string
	cacheMutex  sync.Mutex

	// group collapses concurrent authentication attempts against the
	// same domain into a single in-flight call, so a burst of requests
	// to a cold target doesn't each independently run the handshake.
	group singleflight.Group

	logger Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator) error

// WithCredentials supplies the DID document and key material directly.
func WithCredentials(creds *did.Credentials) Option {
	return func(a *Authenticator) error {
		if creds == nil {
			return fmt.Errorf("credentials cannot be nil")
		}
		a.credentials = creds
		return nil
	}
}

// WithTokenStore overrides the default token store, e.g. to share one
// across several Authenticators.
func WithTokenStore(store *token.Store) Option {
	return func(a *Authenticator) error {
		if store == nil {
			return fmt.Errorf("token store cannot be nil")
		}
		a.tokens = store
		return nil
	}
}

// WithLogger installs a custom Logger. The default is a no-op.
func WithLogger(logger Logger) Option {
	return func(a *Authenticator) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		a.logger = logger
		return nil
	}
}

// New constructs an Authenticator using the functional options pattern.
func New(opts ...Option) (*Authenticator, error) {
	a := &Authenticator{
		tokens:      token.NewStore(),
		authHeaders: make(map[string]string),
		logger:      NoOpLogger{},
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if a.credentials == nil {
		return nil, fmt.Errorf("client: WithCredentials is required")
	}

	return a, nil
}

// HeaderFor returns the Authorization header value to use for a request
// to target, authenticating (via the singleflight-deduplicated flow) if
// no cached DIDWba header exists yet. A target's remote token, once
// adopted, is never used as the default outbound credential here - see
// RemoteTokenFor.
func (a *Authenticator) HeaderFor(target, targetDID string, twoWay bool) (string, error) {
	domain, err := domainOf(target)
	if err != nil {
		return "", err
	}

	a.cacheMutex.Lock()
	if header, ok := a.authHeaders[domain]; ok {
		a.cacheMutex.Unlock()
		a.logger.Debug("using cached DIDWba header", "domain", domain)
		return header, nil
	}
	a.cacheMutex.Unlock()

	headerAny, err, _ := a.group.Do(domain, func() (any, error) {
		return a.buildHeader(target, targetDID, twoWay)
	})
	if err != nil {
		return "", err
	}
	return headerAny.(string), nil
}

func (a *Authenticator) buildHeader(target, targetDID string, twoWay bool) (string, error) {
	domain, err := domainOf(target)
	if err != nil {
		return "", err
	}

	authHeader, err := wba.BuildAuthHeader(&wba.AuthenticationContext{
		CallerDID:     a.credentials.DID,
		TargetDID:     targetDID,
		RequestURL:    target,
		UseTwoWayAuth: twoWay,
	}, a.credentials)
	if err != nil {
		return "", fmt.Errorf("generate header: %w", err)
	}
	header := authHeader.String()

	a.cacheMutex.Lock()
	a.authHeaders[domain] = header
	a.cacheMutex.Unlock()

	return header, nil
}

// defaultRemoteTokenTTL bounds how long a remote token is cached when its
// own exp claim can't be read, e.g. a non-JWT bearer value.
const defaultRemoteTokenTTL = 30 * time.Minute

// AdoptRemoteToken records a token a target returned for targetDID,
// readable through RemoteTokenFor until it expires; HeaderFor does not
// use it, so subsequent calls still send a DIDWba header. The expiry is
// read from the token's own (unverified) exp claim when possible, since
// the client does not hold the issuer's public key to verify it.
func (a *Authenticator) AdoptRemoteToken(targetDID, accessToken string) {
	expiresAt, ok := token.PeekExpiry(accessToken)
	if !ok {
		expiresAt = time.Now().Add(defaultRemoteTokenTTL)
	}
	a.tokens.RecordRemote(token.RemoteToken{
		AccessToken: accessToken,
		TargetDID:   targetDID,
		ExpiresAt:   expiresAt,
	})
}

// RemoteTokenFor returns the last token adopted for targetDID, if any and
// still unexpired. This is a diagnostics/introspection surface only - it
// is never consulted by HeaderFor, which always authenticates with this
// caller's own DID material rather than replaying a target-issued token
// back at that same target.
func (a *Authenticator) RemoteTokenFor(targetDID string) (token.RemoteToken, bool) {
	return a.tokens.LookupRemote(targetDID)
}

// ClearCache drops the cached DIDWba header for target's domain, forcing
// the next HeaderFor call to build a fresh one. Adopted remote tokens are
// left in place.
func (a *Authenticator) ClearCache(target string) {
	domain, err := domainOf(target)
	if err != nil {
		a.logger.Warn("clear cache: invalid target", "target", target, "error", err)
		return
	}
	a.cacheMutex.Lock()
	delete(a.authHeaders, domain)
	a.cacheMutex.Unlock()
}

func domainOf(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target url: %w", err)
	}
	return u.Hostname(), nil
}
