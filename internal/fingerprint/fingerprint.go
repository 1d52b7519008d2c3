// Package fingerprint derives stable, non-sequential reset tokens from
// directory distinguished names.
//
// A token is the 64-bit FNV hash of salt||dn, packed little-endian and
// encoded as unpadded URL-safe base64, which is always exactly 11
// characters. The derivation is deterministic on purpose: the token file
// name for an account never changes, so at most one token can exist per
// account at a time.
//
// Known weakness: because there is no random nonce, anyone who learns the
// salt can predict the token for any known DN. Kept as-is so that every
// previously issued token stays valid.
package fingerprint

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/fnv"
)

// ErrNonASCII is returned when the DN or salt contains bytes outside the
// ASCII range. The token namespace is defined over ASCII input only.
var ErrNonASCII = errors.New("fingerprint: input is not ASCII")

// Fingerprint computes the reset token for the given distinguished name
// and salt. The same (dn, salt) pair always yields the same 11-character
// token.
//
// The hash is FNV with the multiply-before-xor byte order (fnv.New64, not
// New64a): the existing token corpus was built with that order, and
// changing it would invalidate every issued token.
func Fingerprint(dn, salt string) (string, error) {
	if !isASCII(salt) || !isASCII(dn) {
		return "", ErrNonASCII
	}
	h := fnv.New64()
	h.Write([]byte(salt))
	h.Write([]byte(dn))

	var packed [8]byte
	binary.LittleEndian.PutUint64(packed[:], h.Sum64())
	return base64.RawURLEncoding.EncodeToString(packed[:]), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return true
}
