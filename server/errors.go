// Package server verifies incoming DIDWba and Bearer Authorization
// headers and issues access tokens to successfully-authenticated callers.
package server

import "errors"

// Sentinel errors for verification failures. Check these with errors.Is.
var (
	ErrMissingAuthHeader  = errors.New("missing authorization header")
	ErrInvalidAuthHeader  = errors.New("invalid authorization header")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidSignature   = errors.New("signature verification failed")
	ErrNonceReused        = errors.New("nonce already used")
	ErrTimestampExpired   = errors.New("timestamp expired")
	ErrTimestampFuture    = errors.New("timestamp is in the future")
	ErrTimestampInvalid   = errors.New("invalid timestamp format")
	ErrDomainNotAllowed   = errors.New("domain not allowed")
	ErrDIDMismatch        = errors.New("DID mismatch")
	ErrDIDResolution      = errors.New("failed to resolve DID document")
	ErrKeyNotFound        = errors.New("verification method not found")
	ErrUnsupportedKeyType = errors.New("unsupported verification method type")
	ErrJWTConfigMissing   = errors.New("JWT key not configured")
	ErrTokenCreation      = errors.New("failed to create access token")
)

// wrappedError pairs a sentinel with the concrete failure behind it, so
// errors.Is still matches the sentinel while Error() carries detail.
type wrappedError struct {
	sentinel error
	message  string
	cause    error
}

// Wrap associates err with sentinel, preserving errors.Is(_, sentinel).
func Wrap(sentinel error, message string, err error) error {
	if err == nil {
		return sentinel
	}
	return &wrappedError{sentinel: sentinel, message: message, cause: err}
}

func (e *wrappedError) Error() string {
	message := e.message
	if message == "" {
		message = e.sentinel.Error()
	}
	return message + ": " + e.cause.Error()
}

func (e *wrappedError) Unwrap() error { return e.sentinel }

func (e *wrappedError) Is(target error) bool { return errors.Is(e.sentinel, target) }

// StatusError pairs an error with the HTTP status code a middleware
// should respond with.
type StatusError struct {
	Err        error
	StatusCode int
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// WithStatus wraps err with an HTTP status code.
func WithStatus(err error, statusCode int) *StatusError {
	return &StatusError{Err: err, StatusCode: statusCode}
}

// StatusCode extracts the HTTP status code from err, falling back to
// defaultCode when err carries none.
func StatusCode(err error, defaultCode int) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return defaultCode
}
