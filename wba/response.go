package wba

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// RespDIDAuthHeader carries the target's own DIDWba Authorization value,
// proving it controls resp_did, addressed back to the caller.
type RespDIDAuthHeader struct {
	Authorization string `json:"Authorization"`
}

// TwoWayResponsePayload is the single object embedded in a two-way
// response's Authorization JSON array.
type TwoWayResponsePayload struct {
	AccessToken       string            `json:"access_token"`
	TokenType         string            `json:"token_type"`
	ReqDID            string            `json:"req_did"`
	RespDID           string            `json:"resp_did"`
	RespDIDAuthHeader RespDIDAuthHeader `json:"resp_did_auth_header"`
}

// BuildOneWayResponseAuthorization returns the one-way response value:
// the literal lowercase "bearer <token>" string.
func BuildOneWayResponseAuthorization(token string) string {
	return "bearer " + token
}

// BuildTwoWayResponseAuthorization marshals the two-way response payload
// as a JSON array containing exactly one object.
// The emitter always uses the array form even though the parser (Open
// Question #1) also accepts a bare object for legacy compatibility.
func BuildTwoWayResponseAuthorization(payload TwoWayResponsePayload) (string, error) {
	arr := []TwoWayResponsePayload{payload}
	b, err := sonic.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("marshal two-way response: %w", err)
	}
	return string(b), nil
}

// ParsedResponse is the normalized result of parsing a response
// Authorization value, regardless of whether it was one-way or two-way.
type ParsedResponse struct {
	OneWay      bool
	AccessToken string
	TwoWay      *TwoWayResponsePayload
}

// ParseResponseAuthorization parses a response Authorization value as
// emitted by a server: a one-way "bearer <token>" string (matched
// case-insensitively, per the client flow's tolerance for either case),
// or a two-way JSON payload. The two-way JSON may be either the
// normalized one-element array or, for backward compatibility with an
// older wire form (Open Question #1), a bare object.
func ParseResponseAuthorization(raw string) (*ParsedResponse, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= len("bearer ") && strings.EqualFold(trimmed[:len("bearer ")], "bearer ") {
		return &ParsedResponse{OneWay: true, AccessToken: trimmed[len("bearer "):]}, nil
	}

	var arr []TwoWayResponsePayload
	if err := sonic.Unmarshal([]byte(trimmed), &arr); err == nil && len(arr) > 0 {
		return &ParsedResponse{TwoWay: &arr[0]}, nil
	}

	var obj TwoWayResponsePayload
	if err := sonic.Unmarshal([]byte(trimmed), &obj); err == nil && obj.AccessToken != "" {
		return &ParsedResponse{TwoWay: &obj}, nil
	}

	return nil, fmt.Errorf("unrecognized response authorization payload")
}
