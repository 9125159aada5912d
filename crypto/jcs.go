package crypto

import (
	"github.com/bytedance/sonic"
	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// CanonicalizeJCS marshals v to JSON and canonicalizes it per RFC 8785.
func CanonicalizeJCS(v any) ([]byte, error) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsoncanonicalizer.Transform(raw)
}
