package wba

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/anp-wba/core/did"
)

// Scheme is the Authorization scheme name for DID-based auth headers.
const Scheme = "DIDWba "

// AuthHeader is the parsed/unparsed form of a DIDWba Authorization value.
type AuthHeader struct {
	DID                string
	Nonce              string
	Timestamp          string
	RespDID            string // empty => one-way
	VerificationMethod string // "#fragment"
	Signature          string
}

// String renders the header in the deterministic field order the
// specification mandates for emitters: did, nonce, timestamp,
// [resp_did], verification_method, signature.
func (h *AuthHeader) String() string {
	var b strings.Builder
	b.WriteString(Scheme)
	fmt.Fprintf(&b, `did="%s", nonce="%s", timestamp="%s", `, h.DID, h.Nonce, h.Timestamp)
	if h.RespDID != "" {
		fmt.Fprintf(&b, `resp_did="%s", `, h.RespDID)
	}
	fmt.Fprintf(&b, `verification_method="%s", signature="%s"`, h.VerificationMethod, h.Signature)
	return b.String()
}

var fieldPattern = regexp.MustCompile(`(did|nonce|timestamp|resp_did|verification_method|signature)\s*=\s*"([^"]*)"`)

// ParseAuthHeader parses a DIDWba Authorization value. The emitter is
// deterministic about field order but the parser accepts any order. The
// scheme prefix must match exactly "DIDWba " (one trailing space);
// anything else is rejected outright.
func ParseAuthHeader(header string) (*AuthHeader, error) {
	if !strings.HasPrefix(header, Scheme) {
		return nil, fmt.Errorf("authorization header must start with %q", Scheme)
	}
	rest := header[len(Scheme):]

	h := &AuthHeader{}
	matches := fieldPattern.FindAllStringSubmatch(rest, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("invalid DIDWba header format")
	}

	for _, m := range matches {
		switch m[1] {
		case "did":
			h.DID = m[2]
		case "nonce":
			h.Nonce = m[2]
		case "timestamp":
			h.Timestamp = m[2]
		case "resp_did":
			h.RespDID = m[2]
		case "verification_method":
			h.VerificationMethod = m[2]
		case "signature":
			h.Signature = m[2]
		}
	}

	if h.DID == "" || h.Nonce == "" || h.Timestamp == "" || h.VerificationMethod == "" || h.Signature == "" {
		return nil, fmt.Errorf("DIDWba header missing required field(s)")
	}
	return h, nil
}

// BuildAuthHeader signs a fresh Authorization header for ctx using creds'
// first authentication verification method.
func BuildAuthHeader(ctx *AuthenticationContext, creds *did.Credentials) (*AuthHeader, error) {
	fragment, err := creds.Document.FirstAuthenticationFragment()
	if err != nil {
		return nil, fmt.Errorf("select verification method: %w", err)
	}
	kp, err := creds.GetKeyPair(fragment)
	if err != nil {
		return nil, err
	}

	service, err := ctx.ServiceDomain()
	if err != nil {
		return nil, err
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	timestamp := newTimestamp()

	payload := &authPayload{
		Nonce:     nonce,
		Timestamp: timestamp,
		Service:   service,
		DID:       ctx.CallerDID,
	}
	if ctx.UseTwoWayAuth && ctx.TargetDID != "" {
		payload.RespDID = ctx.TargetDID
	}

	signature, err := sign(kp, payload)
	if err != nil {
		return nil, fmt.Errorf("sign auth payload: %w", err)
	}

	return &AuthHeader{
		DID:                ctx.CallerDID,
		Nonce:              nonce,
		Timestamp:          timestamp,
		RespDID:            payload.RespDID,
		VerificationMethod: "#" + fragment,
		Signature:          signature,
	}, nil
}

// VerifyAuthHeader verifies a parsed header against the signer's DID
// document, using serviceDomain as the server's view of the request's
// service value (which must match what the client signed).
func VerifyAuthHeader(h *AuthHeader, doc *did.Document, serviceDomain string) (bool, error) {
	if h.DID != doc.ID {
		return false, fmt.Errorf("DID mismatch: header %q document %q", h.DID, doc.ID)
	}

	method, err := doc.VerificationMethodByFragment(h.VerificationMethod)
	if err != nil {
		return false, err
	}

	payload := &authPayload{
		Nonce:     h.Nonce,
		Timestamp: h.Timestamp,
		Service:   serviceDomain,
		DID:       h.DID,
		RespDID:   h.RespDID,
	}

	return verify(method, payload, h.Signature)
}
