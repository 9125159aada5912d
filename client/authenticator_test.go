package client

import (
	"strings"
	"testing"
	"time"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/token"
	"github.com/anp-wba/core/wba"
)

func newTestCredentials(t *testing.T) *did.Credentials {
	t.Helper()
	_, creds, err := did.CreateDocument("caller.example.com", nil, nil, nil)
	if err != nil {
		t.Fatalf("did.CreateDocument() error = %v", err)
	}
	return creds
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(); err == nil {
		t.Error("expected an error when no credentials are supplied")
	}
}

func TestHeaderFor_CachesPerDomain(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header1, err := a.HeaderFor("https://server.example.com/api", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}
	header2, err := a.HeaderFor("https://server.example.com/other-path", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}

	if header1 != header2 {
		t.Error("same-domain requests should reuse the cached header")
	}
}

func TestHeaderFor_DifferentDomainsGetDifferentHeaders(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header1, err := a.HeaderFor("https://server-a.example.com/api", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}
	header2, err := a.HeaderFor("https://server-b.example.com/api", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}

	if header1 == header2 {
		t.Error("distinct domains should not share a cached header (different nonce/timestamp/service)")
	}
}

func TestClearCache_ForcesRebuild(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header1, err := a.HeaderFor("https://server.example.com/api", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}

	a.ClearCache("https://server.example.com/api")

	header2, err := a.HeaderFor("https://server.example.com/api", "", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}

	if header1 == header2 {
		t.Error("expected a fresh header (new nonce) after ClearCache")
	}
}

func TestHeaderFor_IgnoresAdoptedRemoteToken(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	a.AdoptRemoteToken("did:wba:server.example.com", "cached-access-token")

	header, err := a.HeaderFor("https://server.example.com/api", "did:wba:server.example.com", false)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}
	if header == "bearer cached-access-token" {
		t.Error("HeaderFor should never replay an adopted remote token as the outbound credential")
	}
	if !strings.HasPrefix(header, wba.Scheme) {
		t.Errorf("header = %q, want a freshly built %s header", header, wba.Scheme)
	}

	remote, ok := a.RemoteTokenFor("did:wba:server.example.com")
	if !ok || remote.AccessToken != "cached-access-token" {
		t.Error("the adopted token should still be retrievable as a diagnostic, just not used by HeaderFor")
	}
}

func TestAdoptRemoteToken_UsesTokenExpClaimWhenPresent(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := generateAuthenticatorTestKey(t)
	signed, err := token.IssueAccessToken("did:wba:caller.example.com", "did:wba:server.example.com", "", key, "RS256", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken() error = %v", err)
	}

	a.AdoptRemoteToken("did:wba:server.example.com", signed)

	remote, ok := a.tokens.LookupRemote("did:wba:server.example.com")
	if !ok {
		t.Fatal("expected the adopted token to be retrievable immediately")
	}
	if remote.AccessToken != signed {
		t.Errorf("AccessToken = %q, want the signed token", remote.AccessToken)
	}
	if !remote.ExpiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be read from the token's own exp claim and be in the future")
	}
}

func TestAdoptRemoteToken_FallsBackToDefaultTTLForOpaqueTokens(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	a.AdoptRemoteToken("did:wba:server.example.com", "not-a-jwt")

	remote, ok := a.tokens.LookupRemote("did:wba:server.example.com")
	if !ok {
		t.Fatal("expected an opaque token to still be cached with a fallback expiry")
	}
	if !remote.ExpiresAt.After(time.Now()) {
		t.Error("fallback ExpiresAt should be in the future")
	}
}

func TestDomainOf(t *testing.T) {
	domain, err := domainOf("https://example.com:8443/path?query=1")
	if err != nil {
		t.Fatalf("domainOf() error = %v", err)
	}
	if domain != "example.com" {
		t.Errorf("domainOf() = %q, want %q", domain, "example.com")
	}
}

func TestHeaderFor_RejectsUnparsableTarget(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := a.HeaderFor("://not a url", "", false); err == nil {
		t.Error("expected an error for an unparsable target URL")
	}
}

func TestBuildHeader_TwoWayIncludesRespDID(t *testing.T) {
	creds := newTestCredentials(t)
	a, err := New(WithCredentials(creds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	header, err := a.HeaderFor("https://server.example.com/api", "did:wba:server.example.com", true)
	if err != nil {
		t.Fatalf("HeaderFor() error = %v", err)
	}
	if !strings.Contains(header, `resp_did="did:wba:server.example.com"`) {
		t.Errorf("two-way header %q should carry resp_did", header)
	}
}
