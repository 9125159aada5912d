package did

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// LocalLookupFunc resolves a DID document from local storage (filesystem
// or in-memory user-data cache). It returns (nil, nil) when the DID is
// simply not present locally, which is not an error; it just means the
// resolver should fall through to the network.
type LocalLookupFunc func(ctx context.Context, did string) (*Document, error)

// Resolver resolves DID documents, consulting local storage first and
// falling back to exactly one network GET.
type Resolver struct {
	Local      LocalLookupFunc
	HTTPClient *http.Client
}

// NewResolver constructs a Resolver with sensible defaults.
func NewResolver(local LocalLookupFunc, httpClient *http.Client) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Resolver{Local: local, HTTPClient: httpClient}
}

// Resolve implements the local-first-then-network order. It returns nil
// (not an error) only when the caller asked for a DID with no possible
// representation; any resolution failure is returned as an error so
// callers can distinguish "unresolvable" from "network trouble".
func (r *Resolver) Resolve(ctx context.Context, did string) (*Document, error) {
	doc, err := r.ResolveLocal(ctx, did)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}
	return r.ResolveNetwork(ctx, did)
}

// ResolveLocal consults Local only, never the network. A nil, nil result
// means the DID simply has no local record.
func (r *Resolver) ResolveLocal(ctx context.Context, did string) (*Document, error) {
	if r.Local == nil {
		return nil, nil
	}
	doc, err := r.Local(ctx, did)
	if err != nil {
		return nil, fmt.Errorf("local DID lookup: %w", err)
	}
	return doc, nil
}

// ResolveNetwork fetches a DID document over HTTP, bypassing Local
// entirely. Callers that gate network resolution behind a policy decision
// (e.g. an insecure-resolution allowlist) call this directly once that
// decision is made.
func (r *Resolver) ResolveNetwork(ctx context.Context, did string) (*Document, error) {
	docURL, err := DIDToURL(did)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build DID resolution request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch DID document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DID document fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read DID document response: %w", err)
	}

	var doc Document
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode DID document: %w", err)
	}
	if doc.ID != did {
		return nil, fmt.Errorf("DID document id mismatch: got %q want %q", doc.ID, did)
	}

	return &doc, nil
}

// DIDToURL derives the DID-document URL for a did:wba identifier:
// http://<host[:port]>/<segments joined by '/'>/did.json, or
// http://<host[:port]>/.well-known/did.json when the DID has no path
// segments. The scheme is
// http, not https, matching how these agents address each other over
// local/overlay networks rather than public TLS endpoints.
func DIDToURL(did string) (string, error) {
	if !strings.HasPrefix(did, Prefix) {
		return "", fmt.Errorf("invalid DID format: must start with %q", Prefix)
	}

	parts := strings.SplitN(did, ":", 4)
	if len(parts) < 3 {
		return "", fmt.Errorf("invalid DID format: missing domain")
	}

	domain, err := url.PathUnescape(parts[2])
	if err != nil {
		return "", fmt.Errorf("unescape domain: %w", err)
	}

	path := "/.well-known/did.json"
	if len(parts) > 3 {
		path = "/" + strings.ReplaceAll(parts[3], ":", "/") + "/did.json"
	}

	return fmt.Sprintf("http://%s%s", domain, path), nil
}
