package common

import (
	"crypto/rand"
	"encoding/hex"
)

// WipeByteArray overwrites every byte of b with zeroes. Used to clear
// passwords and other secrets from memory as soon as they are no longer
// needed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// MakeRandHexString generates a random hexadecimal string. The size
// parameter is the number of random bytes, so the resulting string is twice
// as long. Returns an error only if the random number generator fails.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
