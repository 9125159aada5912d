package token

import (
	"sync"
	"time"
)

// IssuedToken is a token this process minted for a caller, recorded so a
// later Bearer-only request can be validated by lookup before falling
// back to re-verifying the JWT signature.
type IssuedToken struct {
	AccessToken string
	ReqDID      string
	RespDID     string
	ExpiresAt   time.Time
	Revoked     bool
}

// RemoteToken is a token this process received from a remote target,
// kept for diagnostics; the client does not send it back as a credential.
type RemoteToken struct {
	AccessToken string
	TargetDID   string
	ExpiresAt   time.Time
}

type tokenKey struct {
	reqDID  string
	respDID string
}

// Store tracks both directions of token state: tokens this process has
// issued to callers (consulted first on Bearer verification) and tokens
// this process has obtained from remote targets (recorded for
// diagnostics, not consulted when authenticating).
type Store struct {
	mu     sync.RWMutex
	issued map[tokenKey]IssuedToken
	remote map[string]RemoteToken // keyed by target DID
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		issued: make(map[tokenKey]IssuedToken),
		remote: make(map[string]RemoteToken),
	}
}

// RecordIssued records a token minted for (reqDID, respDID).
func (s *Store) RecordIssued(t IssuedToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[tokenKey{t.ReqDID, t.RespDID}] = t
}

// LookupIssued returns a previously issued, non-expired, non-revoked
// token for (reqDID, respDID) and whether the access token string
// matches. Callers use this to short-circuit JWT signature verification
// for tokens this process itself minted.
func (s *Store) LookupIssued(reqDID, respDID, accessToken string) (IssuedToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.issued[tokenKey{reqDID, respDID}]
	if !ok || t.Revoked || t.AccessToken != accessToken {
		return IssuedToken{}, false
	}
	if time.Now().After(t.ExpiresAt) {
		return IssuedToken{}, false
	}
	return t, true
}

// Revoke marks a previously issued token as no longer valid.
func (s *Store) Revoke(reqDID, respDID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.issued[tokenKey{reqDID, respDID}]; ok {
		t.Revoked = true
		s.issued[tokenKey{reqDID, respDID}] = t
	}
}

// RecordRemote caches a token obtained from targetDID.
func (s *Store) RecordRemote(t RemoteToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote[t.TargetDID] = t
}

// LookupRemote returns a cached, non-expired token for targetDID.
func (s *Store) LookupRemote(targetDID string) (RemoteToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.remote[targetDID]
	if !ok || time.Now().After(t.ExpiresAt) {
		return RemoteToken{}, false
	}
	return t, true
}
