package crypto

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Multicodec prefixes used by did:wba verification methods.
var (
	multicodecEd25519Pub   = []byte{0xed, 0x01}
	multicodecSecp256k1Pub = []byte{0xe7, 0x01}
)

// Base58BTCEncode encodes data using the Bitcoin base58 alphabet.
func Base58BTCEncode(data []byte) string {
	return base58.Encode(data)
}

// Base58BTCDecode decodes a base58-btc string (without the leading 'z'
// multibase prefix).
func Base58BTCDecode(s string) ([]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode base58: %w", err)
	}
	return b, nil
}

// DecodeMultibaseKey decodes a `publicKeyMultibase` value. It requires the
// leading 'z' prefix (base58-btc) and strips a recognized multicodec
// prefix (Ed25519 or secp256k1) if present, returning the raw key bytes.
func DecodeMultibaseKey(multibase string) (keyType string, keyBytes []byte, err error) {
	if len(multibase) == 0 || multibase[0] != 'z' {
		return "", nil, fmt.Errorf("unsupported multibase prefix, want 'z'")
	}

	raw, err := Base58BTCDecode(multibase[1:])
	if err != nil {
		return "", nil, err
	}

	switch {
	case len(raw) > 2 && raw[0] == multicodecEd25519Pub[0] && raw[1] == multicodecEd25519Pub[1]:
		return "ed25519", raw[2:], nil
	case len(raw) > 2 && raw[0] == multicodecSecp256k1Pub[0] && raw[1] == multicodecSecp256k1Pub[1]:
		return "secp256k1", raw[2:], nil
	case len(raw) == 32:
		return "ed25519", raw, nil
	case len(raw) == 33 || len(raw) == 65:
		return "secp256k1", raw, nil
	default:
		return "", nil, fmt.Errorf("unrecognized multibase key length: %d", len(raw))
	}
}

// EncodeMultibaseKey encodes raw key bytes with the appropriate multicodec
// prefix and returns the 'z'-prefixed base58-btc multibase string.
func EncodeMultibaseKey(keyType string, keyBytes []byte) (string, error) {
	var prefixed []byte
	switch keyType {
	case "ed25519":
		prefixed = append(append([]byte{}, multicodecEd25519Pub...), keyBytes...)
	case "secp256k1":
		prefixed = append(append([]byte{}, multicodecSecp256k1Pub...), keyBytes...)
	default:
		return "", fmt.Errorf("unsupported key type: %s", keyType)
	}
	return "z" + Base58BTCEncode(prefixed), nil
}
