package crypto

import "crypto/sha256"

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DoubleSHA256 hashes data twice, matching the signing convention used
// throughout the DID-WBA wire format: the canonicalized payload is hashed
// once to produce content_hash, then content_hash itself is hashed again
// before being handed to ECDSA(SHA-256).
func DoubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}
