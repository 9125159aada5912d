package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/anp-wba/core/did"
	"github.com/anp-wba/core/nonce"
	"github.com/anp-wba/core/token"
	"github.com/anp-wba/core/wba"
)

// NonceStore is the subset of nonce.Store a Verifier depends on.
type NonceStore = nonce.Store

// VerifyResult is what a successful verification yields: the caller's
// DID, a freshly minted access token scoped to that caller, and, for a
// two-way exchange, the Authorization value the server should set on
// its response.
type VerifyResult struct {
	DID                   string
	AccessToken           string
	ResponseAuthorization string
}

// Verifier checks incoming Authorization headers, either a DIDWba
// signature or a previously issued Bearer token, and issues access
// tokens to callers who pass.
type Verifier struct {
	cfg      Config
	resolver *did.Resolver
	nonces   NonceStore
	tokens   *token.Store
}

// New constructs a Verifier. WithJWTKeys is required; everything else
// has a working default.
func New(opts ...Option) (*Verifier, error) {
	v := &Verifier{
		cfg:    defaultConfig(),
		tokens: token.NewStore(),
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}

	if v.cfg.JWTPrivateKey == nil || v.cfg.JWTPublicKey == nil {
		return nil, fmt.Errorf("server: WithJWTKeys is required")
	}
	if v.resolver == nil {
		v.resolver = did.NewResolver(nil, v.cfg.HTTPClient)
	}
	if v.cfg.NowFunc == nil {
		v.cfg.NowFunc = time.Now
	}
	// WithNonceStore, if given, already set v.nonces; only fall back to
	// the in-memory default (sized from cfg.NonceExpire, which
	// WithNonceExpiry may have overridden) when the caller didn't.
	if v.nonces == nil {
		v.nonces = nonce.NewMemoryStore(v.cfg.NonceExpire)
	}

	return v, nil
}

func (v *Verifier) now() time.Time { return v.cfg.NowFunc().UTC() }

// AllowsInsecureResolution reports whether did may be resolved without
// local storage having spoken for it first. A did.LocalLookupFunc
// supplied via WithResolver should consult this before deciding whether
// an absent local record is fatal or safe to fall through on.
func (v *Verifier) AllowsInsecureResolution(did string) bool {
	return v.cfg.InsecureAllowlist.Allows(did)
}

// resolveCallerDID resolves a caller's DID document, enforcing the
// local-storage precondition: a DID with no local record is only resolved
// over the network when it matches the insecure-resolution allowlist.
// Without this gate, any caller could force a network fetch for a DID
// local storage never vouched for, regardless of the allowlist's intent.
func (v *Verifier) resolveCallerDID(ctx context.Context, requestedDID string) (*did.Document, error) {
	doc, err := v.resolver.ResolveLocal(ctx, requestedDID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		return doc, nil
	}

	if !v.AllowsInsecureResolution(requestedDID) {
		return nil, fmt.Errorf("%s not found in local storage and not on the insecure-resolution allowlist", requestedDID)
	}

	return v.resolver.ResolveNetwork(ctx, requestedDID)
}

func (v *Verifier) domainAllowed(domain string) error {
	if len(v.cfg.AllowedDomains) == 0 {
		return nil
	}
	for _, allowed := range v.cfg.AllowedDomains {
		if strings.EqualFold(strings.TrimSpace(allowed), domain) {
			return nil
		}
	}
	return WithStatus(fmt.Errorf("%w: %s", ErrDomainNotAllowed, domain), 403)
}

// VerifyAuthorization verifies one Authorization header value against
// the given service domain, dispatching to Bearer-token or DIDWba
// verification depending on the scheme present. reqDID/respDID are the
// paired "req_did"/"resp_did" headers a Bearer request carries; they are
// ignored for DIDWba requests, which carry the same information signed
// into the header itself.
func (v *Verifier) VerifyAuthorization(ctx context.Context, authorization, domain, reqDID, respDID string) (*VerifyResult, error) {
	if authorization == "" {
		return nil, WithStatus(ErrMissingAuthHeader, 401)
	}

	if isBearerScheme(authorization) {
		return v.verifyBearer(authorization, reqDID, respDID)
	}

	return v.verifyDIDWba(ctx, authorization, domain)
}

// isBearerScheme reports whether authorization carries a Bearer token,
// matching case-insensitively since some peers emit the response's
// one-way form in lowercase ("bearer ") while relaying it as a request
// header.
func isBearerScheme(authorization string) bool {
	const prefix = "bearer "
	return len(authorization) >= len(prefix) && strings.EqualFold(authorization[:len(prefix)], prefix)
}

// verifyBearer accepts a token directly off an issued-token store hit,
// without re-verifying its JWT signature; the signature is only
// re-checked as a fallback when the (reqDID, respDID) pair isn't
// present in the store, e.g. a token this process restarted and lost
// its in-memory record of. When the fallback path is taken, the
// caller-supplied reqDID/respDID headers are cross-checked against the
// token's own claims so a Bearer request can't claim a different
// identity than the one the token was actually issued to.
func (v *Verifier) verifyBearer(authorization, reqDID, respDID string) (*VerifyResult, error) {
	tokenString := authorization[strings.Index(authorization, " ")+1:]

	if reqDID != "" && respDID != "" {
		if issued, ok := v.tokens.LookupIssued(reqDID, respDID, tokenString); ok {
			return &VerifyResult{DID: issued.ReqDID, AccessToken: tokenString}, nil
		}
	}

	claims, err := token.VerifyAccessToken(tokenString, v.cfg.JWTPublicKey, v.cfg.JWTAlgorithm)
	if err != nil {
		return nil, WithStatus(Wrap(ErrInvalidToken, "bearer token verification failed", err), 401)
	}

	if reqDID != "" && claims.ReqDID != reqDID {
		return nil, WithStatus(fmt.Errorf("%w: req_did header does not match token claim", ErrDIDMismatch), 401)
	}
	if respDID != "" && claims.RespDID != respDID {
		return nil, WithStatus(fmt.Errorf("%w: resp_did header does not match token claim", ErrDIDMismatch), 401)
	}

	return &VerifyResult{DID: claims.ReqDID, AccessToken: tokenString}, nil
}

func (v *Verifier) verifyDIDWba(ctx context.Context, authorization, domain string) (*VerifyResult, error) {
	if err := v.domainAllowed(domain); err != nil {
		return nil, err
	}

	header, err := wba.ParseAuthHeader(authorization)
	if err != nil {
		return nil, WithStatus(Wrap(ErrInvalidAuthHeader, "", err), 401)
	}

	if err := v.verifyTimestamp(header.Timestamp); err != nil {
		return nil, err
	}

	if !v.nonces.CheckAndRecord(header.Nonce, v.now()) {
		return nil, WithStatus(ErrNonceReused, 401)
	}

	doc, err := v.resolveCallerDID(ctx, header.DID)
	if err != nil {
		return nil, WithStatus(Wrap(ErrDIDResolution, "", err), 401)
	}

	ok, reason := v.checkSignature(header, doc, domain)
	if !ok {
		return nil, WithStatus(fmt.Errorf("%w: %s", ErrInvalidSignature, reason), 403)
	}

	accessToken, err := token.IssueAccessToken(header.DID, v.effectiveRespDID(header), "", v.cfg.JWTPrivateKey, v.cfg.JWTAlgorithm, v.cfg.AccessTokenExpire)
	if err != nil {
		return nil, WithStatus(Wrap(ErrTokenCreation, "", err), 500)
	}

	v.tokens.RecordIssued(token.IssuedToken{
		AccessToken: accessToken,
		ReqDID:      header.DID,
		RespDID:     v.effectiveRespDID(header),
		ExpiresAt:   v.now().Add(v.cfg.AccessTokenExpire),
	})

	result := &VerifyResult{DID: header.DID, AccessToken: accessToken}

	if header.RespDID != "" {
		responseAuth, err := v.buildTwoWayResponse(header, accessToken)
		if err != nil {
			return nil, WithStatus(Wrap(ErrTokenCreation, "build two-way response", err), 500)
		}
		result.ResponseAuthorization = responseAuth
	} else {
		result.ResponseAuthorization = wba.BuildOneWayResponseAuthorization(accessToken)
	}

	return result, nil
}

func (v *Verifier) effectiveRespDID(header *wba.AuthHeader) string {
	if header.RespDID != "" {
		return header.RespDID
	}
	return v.cfg.ServerDID
}

func (v *Verifier) verifyTimestamp(timestampStr string) error {
	requestTime, err := time.Parse("2006-01-02T15:04:05Z", timestampStr)
	if err != nil {
		return WithStatus(Wrap(ErrTimestampInvalid, "", err), 401)
	}

	if v.now().Sub(requestTime).Abs() > v.cfg.TimestampTolerance {
		if requestTime.After(v.now()) {
			return WithStatus(ErrTimestampFuture, 401)
		}
		return WithStatus(ErrTimestampExpired, 401)
	}

	return nil
}

func (v *Verifier) checkSignature(header *wba.AuthHeader, doc *did.Document, serviceDomain string) (bool, string) {
	ok, err := wba.VerifyAuthHeader(header, doc, serviceDomain)
	if err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, "signature verification failed"
	}
	return true, ""
}

// buildTwoWayResponse signs the server's own DIDWba header proving
// control of resp_did, against the fixed virtual back-service domain,
// and wraps it with the freshly minted access token in the two-way
// response shape.
func (v *Verifier) buildTwoWayResponse(header *wba.AuthHeader, accessToken string) (string, error) {
	if v.cfg.ServerCredentials == nil {
		return "", fmt.Errorf("two-way response requested but no server identity configured")
	}

	respHeader, err := wba.BuildAuthHeader(&wba.AuthenticationContext{
		CallerDID: v.cfg.ServerDID,
		Domain:    wba.VirtualBackServiceDomain,
	}, v.cfg.ServerCredentials)
	if err != nil {
		return "", fmt.Errorf("sign resp_did proof: %w", err)
	}

	payload := wba.TwoWayResponsePayload{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ReqDID:      header.DID,
		RespDID:     header.RespDID,
		RespDIDAuthHeader: wba.RespDIDAuthHeader{
			Authorization: respHeader.String(),
		},
	}

	return wba.BuildTwoWayResponseAuthorization(payload)
}

// BatchRequest is one unit of work for VerifyBatch.
type BatchRequest struct {
	Authorization string
	Domain        string
	ReqDID        string // paired "req_did" header, Bearer requests only
	RespDID       string // paired "resp_did" header, Bearer requests only
}

// BatchResult is one BatchRequest's outcome. VerifyBatch runs requests
// concurrently and results may complete out of order internally, but
// the returned slice is index-aligned with the input.
type BatchResult struct {
	Result *VerifyResult
	Err    error
}

// VerifyBatch verifies many Authorization headers concurrently, bounded
// by maxConcurrency. It never returns a top-level error: per-request
// failures are reported in each BatchResult.Err, same as a verifying
// HTTP handler would report one request's failure without aborting
// others.
func (v *Verifier) VerifyBatch(ctx context.Context, requests []BatchRequest, maxConcurrency int64) ([]BatchResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}

	results := make([]BatchResult, len(requests))
	sem := semaphore.NewWeighted(maxConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				results[i] = BatchResult{Err: err}
				return nil
			}
			defer sem.Release(1)

			result, err := v.VerifyAuthorization(gctx, req.Authorization, req.Domain, req.ReqDID, req.RespDID)
			results[i] = BatchResult{Result: result, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
