package token

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token claim set. It carries the req/resp DID pair
// so a verifier can confirm the token was minted for this exact caller
// and target, plus a free-form comments field the issuer may use for
// diagnostics.
type Claims struct {
	ReqDID   string `json:"req_did"`
	RespDID  string `json:"resp_did"`
	Comments string `json:"comments,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccessToken mints a signed access token binding reqDID (the
// caller) to respDID (the token issuer), valid for expiration.
func IssueAccessToken(reqDID, respDID, comments string, privateKey any, algorithm string, expiration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ReqDID:   reqDID,
		RespDID:  respDID,
		Comments: comments,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}

	t := jwt.NewWithClaims(jwt.GetSigningMethod(algorithm), claims)
	signed, err := t.SignedString(privateKey)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken validates a signed access token and returns its claims.
func VerifyAccessToken(tokenString string, publicKey any, algorithm string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if jwt.GetSigningMethod(algorithm) != t.Method {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("access token is invalid")
	}
	if claims.ReqDID == "" || claims.RespDID == "" {
		return nil, fmt.Errorf("access token missing req_did/resp_did claims")
	}
	return claims, nil
}

// PeekExpiry reads the exp claim from an access token without verifying
// its signature, for a caller that holds the token but not the issuer's
// public key (a client caching a token a remote server just handed it).
// The caller must not treat the claims as trusted; this is only a cache
// eviction hint.
func PeekExpiry(tokenString string) (time.Time, bool) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ParseRSAPrivateKeyFromPEM parses an RSA private key for RS256 signing.
func ParseRSAPrivateKeyFromPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	return jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
}

// ParseRSAPublicKeyFromPEM parses an RSA public key for RS256 verification.
func ParseRSAPublicKeyFromPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	return jwt.ParseRSAPublicKeyFromPEM(pemBytes)
}

// ParseECPrivateKeyFromPEM parses an ECDSA private key, for deployments
// that configure an ES-family jwt algorithm instead of RS256.
func ParseECPrivateKeyFromPEM(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	return jwt.ParseECPrivateKeyFromPEM(pemBytes)
}

// ParseECPublicKeyFromPEM parses an ECDSA public key.
func ParseECPublicKeyFromPEM(pemBytes []byte) (*ecdsa.PublicKey, error) {
	return jwt.ParseECPublicKeyFromPEM(pemBytes)
}
