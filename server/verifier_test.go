package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/wba"
)

type serverRoundTripFunc func(*http.Request) (*http.Response, error)

func (f serverRoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func generateVerifierTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	return key
}

func newTestVerifier(t *testing.T, callerDoc *did.Document, opts ...Option) *Verifier {
	t.Helper()
	key := generateVerifierTestKey(t)
	resolver := did.NewResolver(func(ctx context.Context, requestedDID string) (*did.Document, error) {
		if requestedDID == callerDoc.ID {
			return callerDoc, nil
		}
		return nil, nil
	}, nil)

	allOpts := append([]Option{
		WithJWTKeys(key, &key.PublicKey, "RS256"),
		WithResolver(resolver),
	}, opts...)

	v, err := New(allOpts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func TestVerifyAuthorization_OneWaySuccess(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	v := newTestVerifier(t, creds.Document)

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	result, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", "")
	if err != nil {
		t.Fatalf("VerifyAuthorization() error = %v", err)
	}
	if result.DID != creds.DID {
		t.Errorf("DID = %q, want %q", result.DID, creds.DID)
	}
	if result.ResponseAuthorization == "" {
		t.Error("expected a one-way bearer ResponseAuthorization")
	}

	parsed, err := wba.ParseResponseAuthorization(result.ResponseAuthorization)
	if err != nil {
		t.Fatalf("ParseResponseAuthorization() error = %v", err)
	}
	if !parsed.OneWay {
		t.Error("expected a one-way response shape")
	}

	bearerResult, err := v.VerifyAuthorization(context.Background(), "bearer "+parsed.AccessToken, "server.example.com", "", "")
	if err != nil {
		t.Fatalf("bearer re-verification error = %v", err)
	}
	if bearerResult.DID != creds.DID {
		t.Errorf("bearer DID = %q, want %q", bearerResult.DID, creds.DID)
	}
}

func TestVerifyAuthorization_NonceReplayRejected(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	v := newTestVerifier(t, creds.Document)

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err != nil {
		t.Fatalf("first verification should succeed, got error = %v", err)
	}
	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected the replayed nonce to be rejected")
	}
}

func TestVerifyAuthorization_StaleTimestampRejected(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	future := time.Now().Add(48 * time.Hour)
	v := newTestVerifier(t, creds.Document, WithNowFunc(func() time.Time { return future }))

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected a stale timestamp to be rejected")
	}
}

func TestVerifyAuthorization_UnknownDIDRejected(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	key := generateVerifierTestKey(t)
	resolver := did.NewResolver(func(ctx context.Context, requestedDID string) (*did.Document, error) {
		return nil, nil
	}, nil)
	v, err := New(WithJWTKeys(key, &key.PublicKey, "RS256"), WithResolver(resolver))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected resolution failure for an unresolvable DID")
	}
}

func TestVerifyAuthorization_MissingHeaderRejected(t *testing.T) {
	key := generateVerifierTestKey(t)
	v, err := New(WithJWTKeys(key, &key.PublicKey, "RS256"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), "", "server.example.com", "", ""); err == nil {
		t.Error("expected an error for a missing Authorization header")
	}
}

func TestVerifyAuthorization_TwoWayBuildsPeerProof(t *testing.T) {
	_, callerCreds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	_, serverCreds, err := did.CreateDocument("server.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	v := newTestVerifier(t, callerCreds.Document, WithServerIdentity(serverCreds.DID, serverCreds))

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{
		CallerDID: callerCreds.DID, TargetDID: serverCreds.DID, Domain: "server.example.com", UseTwoWayAuth: true,
	}, callerCreds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	result, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", "")
	if err != nil {
		t.Fatalf("VerifyAuthorization() error = %v", err)
	}

	parsed, err := wba.ParseResponseAuthorization(result.ResponseAuthorization)
	if err != nil {
		t.Fatalf("ParseResponseAuthorization() error = %v", err)
	}
	if parsed.OneWay {
		t.Fatal("expected a two-way response shape")
	}

	peerHeader, err := wba.ParseAuthHeader(parsed.TwoWay.RespDIDAuthHeader.Authorization)
	if err != nil {
		t.Fatalf("ParseAuthHeader(peer proof) error = %v", err)
	}
	ok, err := wba.VerifyAuthHeader(peerHeader, serverCreds.Document, wba.VirtualBackServiceDomain)
	if err != nil {
		t.Fatalf("VerifyAuthHeader(peer proof) error = %v", err)
	}
	if !ok {
		t.Error("server's own proof of control over resp_did did not verify")
	}
}

func TestDomainAllowed_RejectsOutsideAllowlist(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	v := newTestVerifier(t, creds.Document, WithAllowedDomains("allowed.example.com"))

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected a domain outside the allowlist to be rejected")
	}
}

func TestVerifyDIDWba_DeniesNetworkResolutionWithoutAllowlist(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	networkCalled := false
	httpClient := &http.Client{Transport: serverRoundTripFunc(func(r *http.Request) (*http.Response, error) {
		networkCalled = true
		return nil, errors.New("network should not have been reached")
	})}
	resolver := did.NewResolver(func(ctx context.Context, requestedDID string) (*did.Document, error) {
		return nil, nil
	}, httpClient)

	key := generateVerifierTestKey(t)
	v, err := New(WithJWTKeys(key, &key.PublicKey, "RS256"), WithResolver(resolver))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected resolution to be denied for a DID absent from local storage and the allowlist")
	}
	if networkCalled {
		t.Error("expected the insecure-resolution gate to deny network resolution before any HTTP request")
	}
}

func TestVerifyDIDWba_AllowsNetworkResolutionWhenAllowlisted(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.localhost", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}

	networkCalled := false
	httpClient := &http.Client{Transport: serverRoundTripFunc(func(r *http.Request) (*http.Response, error) {
		networkCalled = true
		return nil, errors.New("stub transport never actually serves a document")
	})}
	resolver := did.NewResolver(func(ctx context.Context, requestedDID string) (*did.Document, error) {
		return nil, nil
	}, httpClient)

	key := generateVerifierTestKey(t)
	v, err := New(
		WithJWTKeys(key, &key.PublicKey, "RS256"),
		WithResolver(resolver),
		WithInsecureAllowlist("did:wba:caller.localhost*"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header, err := wba.BuildAuthHeader(&wba.AuthenticationContext{CallerDID: creds.DID, Domain: "server.example.com"}, creds)
	if err != nil {
		t.Fatalf("BuildAuthHeader() error = %v", err)
	}

	if _, err := v.VerifyAuthorization(context.Background(), header.String(), "server.example.com", "", ""); err == nil {
		t.Error("expected an error since the stub transport never returns a usable document")
	}
	if !networkCalled {
		t.Error("expected an allowlisted DID to fall through to network resolution")
	}
}

func TestWithNonceExpiry_ConfiguresDefaultStoreTTL(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	v := newTestVerifier(t, creds.Document, WithNonceExpiry(1*time.Minute))

	t0 := time.Now()
	if !v.nonces.CheckAndRecord("nonce-under-test", t0) {
		t.Fatalf("first use of a fresh nonce should be accepted")
	}

	// Past the 1-minute TTL WithNonceExpiry configured, but well inside
	// the 6-minute default New() used to hardcode regardless of this
	// option. A pre-fix Verifier would still reject this as a replay.
	later := t0.Add(2 * time.Minute)
	if !v.nonces.CheckAndRecord("nonce-under-test", later) {
		t.Error("nonce should be purged and reusable once WithNonceExpiry's TTL has elapsed")
	}
}

func TestVerifyTimestamp_MalformedAndFutureReturn401(t *testing.T) {
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	v := newTestVerifier(t, creds.Document)

	if err := v.verifyTimestamp("not-a-timestamp"); StatusCode(err, 0) != 401 {
		t.Errorf("malformed timestamp: StatusCode() = %d, want 401", StatusCode(err, 0))
	}

	future := v.now().Add(v.cfg.TimestampTolerance + time.Minute).Format("2006-01-02T15:04:05Z")
	if err := v.verifyTimestamp(future); StatusCode(err, 0) != 401 {
		t.Errorf("future-skewed timestamp: StatusCode() = %d, want 401", StatusCode(err, 0))
	}

	past := v.now().Add(-(v.cfg.TimestampTolerance + time.Minute)).Format("2006-01-02T15:04:05Z")
	if err := v.verifyTimestamp(past); StatusCode(err, 0) != 401 {
		t.Errorf("stale timestamp: StatusCode() = %d, want 401", StatusCode(err, 0))
	}
}
