package crypto

import "encoding/base64"

// B64URLEncode encodes data as unpadded URL-safe base64.
func B64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// B64URLDecode decodes unpadded or padded URL-safe base64, matching the
// wire rule that emitters never pad but parsers must accept padding.
func B64URLDecode(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
