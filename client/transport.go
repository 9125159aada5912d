package client

import (
	"fmt"
	"net/http"
	"strings"
)

// Transport wraps an http.RoundTripper and automatically attaches a
// DIDWba Authorization header to every outgoing request.
type Transport struct {
	Base          http.RoundTripper
	Authenticator *Authenticator
	TargetDID     string
	UseTwoWayAuth bool
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	header, err := t.Authenticator.HeaderFor(req.URL.String(), t.TargetDID, t.UseTwoWayAuth)
	if err != nil {
		return nil, fmt.Errorf("generate auth header: %w", err)
	}

	clonedReq := req.Clone(req.Context())
	clonedReq.Header.Set("Authorization", header)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(clonedReq)
	if err != nil {
		return nil, err
	}

	if auth := resp.Header.Get("Authorization"); auth != "" {
		parsed, parseErr := parseBearerOrOneWay(auth)
		if parseErr == nil {
			t.Authenticator.AdoptRemoteToken(t.TargetDID, parsed)
		}
	}

	return resp, nil
}

func parseBearerOrOneWay(auth string) (string, error) {
	const prefix = "bearer "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", fmt.Errorf("not a bearer value")
	}
	return auth[len(prefix):], nil
}

// NewClient creates an http.Client that automatically authenticates
// requests to a single target DID.
func NewClient(a *Authenticator, targetDID string, useTwoWayAuth bool) *http.Client {
	return &http.Client{
		Transport: &Transport{Authenticator: a, TargetDID: targetDID, UseTwoWayAuth: useTwoWayAuth},
	}
}

// NewClientWithTransport is like NewClient but wraps an existing base
// transport instead of http.DefaultTransport.
func NewClientWithTransport(a *Authenticator, targetDID string, useTwoWayAuth bool, base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &Transport{Base: base, Authenticator: a, TargetDID: targetDID, UseTwoWayAuth: useTwoWayAuth},
	}
}
