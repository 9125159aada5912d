package server

import (
	"net/http"
	"time"

	"github.com/anp-wba/core/did"
)

// Config holds the tunables a Verifier needs. Construct one through
// New with functional options rather than populating this directly.
type Config struct {
	JWTPrivateKey      any
	JWTPublicKey       any
	JWTAlgorithm       string
	AccessTokenExpire  time.Duration
	NonceExpire        time.Duration
	TimestampTolerance time.Duration
	AllowedDomains     []string
	InsecureAllowlist  did.InsecureAllowlist
	HTTPClient         *http.Client
	NowFunc            func() time.Time

	// ServerDID and ServerCredentials let the Verifier prove control of
	// resp_did in a two-way exchange by signing its own DIDWba header
	// against wba.VirtualBackServiceDomain.
	ServerDID         string
	ServerCredentials *did.Credentials
}

func defaultConfig() Config {
	return Config{
		JWTAlgorithm:       "RS256",
		AccessTokenExpire:  60 * time.Minute,
		NonceExpire:        6 * time.Minute,
		TimestampTolerance: 5 * time.Minute,
	}
}
