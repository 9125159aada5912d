package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/wba"
)

// CallResult is the outcome of one authenticated call.
type CallResult struct {
	StatusCode int
	Body       []byte
	// TwoWaySucceeded reports whether the target proved control of its
	// own DID back to the caller. False for a one-way fallback or for
	// targets that returned no token at all (no auth surface present).
	TwoWaySucceeded bool
	Message         string
}

// AuthFlow drives one request through the two-way-first handshake:
// build a two-way header, send, and on 401/403 retry once with a
// one-way header. On success it inspects the response Authorization
// value, verifies any embedded peer proof, and records the returned
// token through Authenticator.AdoptRemoteToken.
type AuthFlow struct {
	Authenticator *Authenticator
	HTTPClient    *http.Client
	Resolver      *did.Resolver
}

// NewAuthFlow constructs an AuthFlow. A nil httpClient defaults to
// http.DefaultClient.
func NewAuthFlow(a *Authenticator, resolver *did.Resolver, httpClient *http.Client) *AuthFlow {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AuthFlow{Authenticator: a, HTTPClient: httpClient, Resolver: resolver}
}

// Call runs the full authentication state machine for one request:
// START -> BUILD_TWO_WAY -> SEND -> INSPECT -> [TWO_WAY_FALLBACK -> SEND
// -> INSPECT] -> VERIFY_PEER -> STORE_TOKEN -> DONE.
func (f *AuthFlow) Call(ctx context.Context, method, requestURL, targetDID string, body io.Reader, customHeaders map[string]string, useTwoWayAuth bool) (*CallResult, error) {
	status, responseAuth, respBody, err := f.send(ctx, method, requestURL, targetDID, body, customHeaders, useTwoWayAuth)
	if err != nil {
		return nil, err
	}

	if (status == http.StatusUnauthorized || status == http.StatusForbidden) && useTwoWayAuth {
		f.Authenticator.ClearCache(requestURL)
		status, responseAuth, respBody, err = f.send(ctx, method, requestURL, targetDID, body, customHeaders, false)
		if err != nil {
			return nil, err
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &CallResult{StatusCode: status, Body: respBody, Message: "authentication failed"}, nil
	}

	if responseAuth == "" {
		return &CallResult{StatusCode: status, Body: respBody, Message: "no token returned; unauthenticated surface or legacy peer"}, nil
	}

	parsed, err := wba.ParseResponseAuthorization(responseAuth)
	if err != nil {
		return &CallResult{StatusCode: status, Body: respBody, Message: fmt.Sprintf("could not parse response authorization: %v", err)}, nil
	}

	if parsed.OneWay {
		f.Authenticator.AdoptRemoteToken(targetDID, parsed.AccessToken)
		return &CallResult{StatusCode: status, Body: respBody, Message: "one-way authentication succeeded"}, nil
	}

	ok, err := f.verifyPeerProof(ctx, parsed.TwoWay.RespDIDAuthHeader.Authorization, targetDID)
	if err != nil || !ok {
		return &CallResult{StatusCode: status, Body: respBody, Message: fmt.Sprintf("peer DID proof verification failed: %v", err)}, nil
	}

	f.Authenticator.AdoptRemoteToken(targetDID, parsed.TwoWay.AccessToken)
	return &CallResult{StatusCode: status, Body: respBody, TwoWaySucceeded: true, Message: "two-way authentication succeeded"}, nil
}

func (f *AuthFlow) send(ctx context.Context, method, requestURL, targetDID string, body io.Reader, customHeaders map[string]string, useTwoWayAuth bool) (int, string, []byte, error) {
	header, err := f.Authenticator.HeaderFor(requestURL, targetDID, useTwoWayAuth)
	if err != nil {
		return 0, "", nil, fmt.Errorf("build auth header: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range customHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", header)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, resp.Header.Get("Authorization"), respBody, nil
}

// verifyPeerProof checks the target's own DIDWba header, always signed
// against the fixed virtual back-service domain rather than the real
// transport URL, proving it controls targetDID independent of where the
// request was actually routed.
func (f *AuthFlow) verifyPeerProof(ctx context.Context, peerAuthHeader, targetDID string) (bool, error) {
	if peerAuthHeader == "" {
		return false, fmt.Errorf("peer returned no proof header")
	}
	if !strings.HasPrefix(peerAuthHeader, wba.Scheme) {
		return false, fmt.Errorf("peer proof header has unexpected scheme")
	}

	header, err := wba.ParseAuthHeader(peerAuthHeader)
	if err != nil {
		return false, err
	}
	if header.DID != targetDID {
		return false, fmt.Errorf("peer proof DID %q does not match expected target %q", header.DID, targetDID)
	}

	doc, err := f.Resolver.Resolve(ctx, targetDID)
	if err != nil {
		return false, fmt.Errorf("resolve peer DID document: %w", err)
	}

	return wba.VerifyAuthHeader(header, doc, wba.VirtualBackServiceDomain)
}
