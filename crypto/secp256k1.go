package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
)

// rsSignature mirrors the ASN.1 structure of an ECDSA signature for DER
// encode/decode.
type rsSignature struct {
	R, S *big.Int
}

// RSToDER converts a fixed-length R||S signature (coordSize bytes each) to
// ASN.1 DER. It rejects r=0, s=0, or a length that isn't 2*coordSize.
func RSToDER(sig []byte, coordSize int) ([]byte, error) {
	if len(sig) != coordSize*2 {
		return nil, fmt.Errorf("invalid R||S length: got %d want %d", len(sig), coordSize*2)
	}

	r := new(big.Int).SetBytes(sig[:coordSize])
	s := new(big.Int).SetBytes(sig[coordSize:])
	if r.Sign() == 0 || s.Sign() == 0 {
		return nil, errors.New("signature component is zero")
	}

	return asn1.Marshal(rsSignature{R: r, S: s})
}

// DERToRS converts a DER-encoded ECDSA signature to a fixed-length R||S
// form, each component padded to coordSize bytes.
func DERToRS(der []byte, coordSize int) ([]byte, error) {
	var sig rsSignature
	rest, err := asn1.Unmarshal(der, &sig)
	if err != nil {
		return nil, fmt.Errorf("parse DER signature: %w", err)
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after DER signature")
	}
	if sig.R.Sign() == 0 || sig.S.Sign() == 0 {
		return nil, errors.New("signature component is zero")
	}

	rb := sig.R.Bytes()
	sb := sig.S.Bytes()
	if len(rb) > coordSize || len(sb) > coordSize {
		return nil, fmt.Errorf("signature component larger than %d bytes", coordSize)
	}

	out := make([]byte, coordSize*2)
	copy(out[coordSize-len(rb):coordSize], rb)
	copy(out[coordSize*2-len(sb):], sb)
	return out, nil
}

// Secp256k1Sign signs a 32-byte digest with a secp256k1 private key,
// returning the fixed-length 64-byte R||S signature, base64url-encoded
// unpadded.
func Secp256k1Sign(privateKey *ecdsa.PrivateKey, digest []byte) (string, error) {
	if privateKey == nil {
		return "", errors.New("private key is required")
	}

	r, s, err := ecdsa.Sign(rand.Reader, privateKey, digest)
	if err != nil {
		return "", fmt.Errorf("sign digest: %w", err)
	}

	coordSize := curveByteSize(privateKey.Curve)
	der, err := asn1.Marshal(rsSignature{R: r, S: s})
	if err != nil {
		return "", fmt.Errorf("marshal DER signature: %w", err)
	}
	rs, err := DERToRS(der, coordSize)
	if err != nil {
		return "", fmt.Errorf("convert signature to R||S: %w", err)
	}

	return B64URLEncode(rs), nil
}

// Secp256k1Verify verifies a base64url(R||S) signature against a digest
// using the given public key.
func Secp256k1Verify(publicKey *ecdsa.PublicKey, digest []byte, signature string) bool {
	if publicKey == nil {
		return false
	}

	sigBytes, err := B64URLDecode(signature)
	if err != nil {
		return false
	}

	coordSize := curveByteSize(publicKey.Curve)
	if len(sigBytes) != coordSize*2 {
		return false
	}

	r := new(big.Int).SetBytes(sigBytes[:coordSize])
	s := new(big.Int).SetBytes(sigBytes[coordSize:])
	if r.Sign() == 0 || s.Sign() == 0 {
		return false
	}

	return ecdsa.Verify(publicKey, digest, r, s)
}

// PublicKeyFromUncompressed reconstructs an *ecdsa.PublicKey from a 33-byte
// compressed or 65-byte uncompressed secp256k1 point.
func PublicKeyFromUncompressed(point []byte) (*ecdsa.PublicKey, error) {
	curve := Secp256k1()
	switch len(point) {
	case 65:
		if point[0] != 0x04 {
			return nil, errors.New("uncompressed point must start with 0x04")
		}
		size := curveByteSize(curve)
		x := new(big.Int).SetBytes(point[1 : 1+size])
		y := new(big.Int).SetBytes(point[1+size:])
		if !curve.IsOnCurve(x, y) {
			return nil, errors.New("point is not on the secp256k1 curve")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	case 33:
		x, y := decompressPoint(curve, point)
		if x == nil {
			return nil, errors.New("invalid compressed point")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("unsupported point length: %d", len(point))
	}
}

// decompressPoint recovers Y from a 33-byte compressed point (0x02/0x03
// prefix || X) using secp256k1's y^2 = x^3 + 7 (mod p), exploiting that
// p ≡ 3 (mod 4) so the square root is x^((p+1)/4) mod p.
func decompressPoint(curve elliptic.Curve, data []byte) (*big.Int, *big.Int) {
	if len(data) != 33 || (data[0] != 0x02 && data[0] != 0x03) {
		return nil, nil
	}

	params := curve.Params()
	p := params.P
	x := new(big.Int).SetBytes(data[1:])
	if x.Cmp(p) >= 0 {
		return nil, nil
	}

	ySq := new(big.Int).Exp(x, big.NewInt(3), p)
	ySq.Add(ySq, big.NewInt(7))
	ySq.Mod(ySq, p)

	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	y := new(big.Int).Exp(ySq, exp, p)

	if new(big.Int).Exp(y, big.NewInt(2), p).Cmp(ySq) != 0 {
		return nil, nil
	}

	wantOdd := data[0] == 0x03
	if y.Bit(0) == 1 != wantOdd {
		y.Sub(p, y)
	}

	if !curve.IsOnCurve(x, y) {
		return nil, nil
	}
	return x, y
}
