package server

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expectedIs  error
		shouldMatch bool
	}{
		{
			name:        "direct sentinel error",
			err:         ErrMissingAuthHeader,
			expectedIs:  ErrMissingAuthHeader,
			shouldMatch: true,
		},
		{
			name:        "wrapped sentinel error",
			err:         Wrap(ErrInvalidToken, "token validation failed", fmt.Errorf("expired")),
			expectedIs:  ErrInvalidToken,
			shouldMatch: true,
		},
		{
			name:        "different sentinel error",
			err:         ErrNonceReused,
			expectedIs:  ErrInvalidToken,
			shouldMatch: false,
		},
		{
			name:        "status-wrapped sentinel",
			err:         WithStatus(ErrTimestampExpired, 401),
			expectedIs:  ErrTimestampExpired,
			shouldMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errors.Is(tt.err, tt.expectedIs) != tt.shouldMatch {
				t.Errorf("errors.Is() = %v, want %v", !tt.shouldMatch, tt.shouldMatch)
			}
		})
	}
}

func TestWrap_NilCauseReturnsSentinel(t *testing.T) {
	if Wrap(ErrInvalidToken, "msg", nil) != ErrInvalidToken {
		t.Error("Wrap() with a nil cause should return the sentinel unchanged")
	}
}

func TestWrap_ErrorMessage(t *testing.T) {
	wrapped := Wrap(ErrInvalidSignature, "signature check failed", fmt.Errorf("base error"))
	if wrapped.Error() == "" {
		t.Error("wrapped error should have a non-empty message")
	}
	if !errors.Is(wrapped, ErrInvalidSignature) {
		t.Error("wrapped error should match its sentinel via errors.Is")
	}
}

func TestWrap_EmptyMessageFallsBackToSentinel(t *testing.T) {
	wrapped := Wrap(ErrDIDResolution, "", fmt.Errorf("not found in local storage"))
	want := "failed to resolve DID document: not found in local storage"
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		defaultCode  int
		expectedCode int
	}{
		{
			name:         "status error",
			err:          WithStatus(ErrInvalidToken, 401),
			defaultCode:  500,
			expectedCode: 401,
		},
		{
			name:         "regular error uses default",
			err:          fmt.Errorf("regular error"),
			defaultCode:  400,
			expectedCode: 400,
		},
		{
			name:         "wrapped status error still unwraps to its code",
			err:          fmt.Errorf("context: %w", WithStatus(ErrDomainNotAllowed, 403)),
			defaultCode:  500,
			expectedCode: 403,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err, tt.defaultCode); got != tt.expectedCode {
				t.Errorf("StatusCode() = %d, want %d", got, tt.expectedCode)
			}
		})
	}
}
