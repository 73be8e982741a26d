package reward

import (
	"crypto/rand"
	"fmt"
)

const (
	// CodeLength is the number of symbols in a redemption code
	CodeLength = 8

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// maxUnbiased is the largest multiple of len(codeAlphabet) that fits in a byte.
// Bytes at or above it are rejected so every symbol is equally likely.
const maxUnbiased = 256 - 256%len(codeAlphabet)

// GenerateCode returns a uniformly random 8-symbol code over [A-Z0-9].
// Codes are not checked against previously issued ones.
func GenerateCode() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
