package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/anp-wba/core/did"
)

type contextKey string

const (
	// ContextKeyDID is the context key for the authenticated DID.
	ContextKeyDID contextKey = "authenticated_did"
	// ContextKeyAccessToken is the context key for the issued access token.
	ContextKeyAccessToken contextKey = "access_token"
	// ContextKeyRequestID is the context key for the per-request
	// correlation id generated by Middleware.
	ContextKeyRequestID contextKey = "request_id"
)

// ExemptPaths lists request paths that never require authentication:
// documentation endpoints, the auth endpoint itself, and agent-facing
// discovery surfaces meant to be reachable before any DID exchange.
var ExemptPaths = []string{
	"/docs",
	"/redoc",
	"/openapi.json",
	"/",
	"/favicon.ico",
	"/wba/auth",
	"/wba/hostuser/*",
	"/wba/user/*",
	"/publisher/agents",
	"/agent/group/*",
	"/anp-nlp/",
	"/ws/",
	"/agents/example/ad.json",
}

func isExempt(requestPath string) bool {
	for _, pattern := range ExemptPaths {
		if did.GlobMatch(pattern, requestPath) {
			return true
		}
	}
	return false
}

// Middleware authenticates requests using DIDWba or Bearer
// Authorization headers, skipping requests whose path matches
// ExemptPaths. Successful authentication injects the DID and access
// token into the request context and echoes a response Authorization
// header back to the caller.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
			reqLogger := logger.With("request_id", requestID, "path", r.URL.Path)

			if isExempt(r.URL.Path) {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reqLogger.Warn("missing authorization header")
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			domain := r.Host
			if host, _, err := net.SplitHostPort(domain); err == nil {
				domain = host
			}

			result, err := v.VerifyAuthorization(ctx, authHeader, domain, r.Header.Get("req_did"), r.Header.Get("resp_did"))
			if err != nil {
				reqLogger.Warn("authentication failed", "error", err)
				handleAuthError(w, err)
				return
			}

			reqLogger.Debug("authenticated request", "did", result.DID)
			ctx = context.WithValue(ctx, ContextKeyDID, result.DID)
			ctx = context.WithValue(ctx, ContextKeyAccessToken, result.AccessToken)
			if result.ResponseAuthorization != "" {
				w.Header().Set("Authorization", result.ResponseAuthorization)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func handleAuthError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusCode(err, http.StatusUnauthorized))
}

// DIDFromContext extracts the authenticated DID from the request context.
func DIDFromContext(ctx context.Context) (string, bool) {
	did, ok := ctx.Value(ContextKeyDID).(string)
	return did, ok
}

// AccessTokenFromContext extracts the access token from the request context.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ContextKeyAccessToken).(string)
	return token, ok
}

// RequestIDFromContext extracts the per-request correlation id Middleware
// generated, for handlers that want to thread it into their own logging.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyRequestID).(string)
	return id, ok
}

// RequireDID ensures the request has an authenticated DID. It must be
// mounted after Middleware.
func RequireDID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := DIDFromContext(r.Context()); !ok {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSpecificDID ensures the authenticated DID matches one of
// allowedDIDs.
func RequireSpecificDID(allowedDIDs ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedDIDs))
	for _, d := range allowedDIDs {
		allowed[strings.TrimSpace(d)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, ok := DIDFromContext(r.Context())
			if !ok {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			if !allowed[d] {
				http.Error(w, "access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
