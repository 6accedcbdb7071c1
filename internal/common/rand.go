package common

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const alnumAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// MakeRandHexString returns 2*size hex characters drawn from crypto/rand.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MakeRandAlnumString returns n characters drawn uniformly from [0-9a-z].
// Lowercase only, so tokens survive case-insensitive filesystems.
func MakeRandAlnumString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	base := big.NewInt(int64(len(alnumAlphabet)))
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		out[i] = alnumAlphabet[v.Int64()]
	}
	return string(out), nil
}

// WipeByteArray zeroes b in place. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
