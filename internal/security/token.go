package security

import (
	"crypto/rand"
	"errors"
	"fmt"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ErrInvalidTokenLength is returned for structurally invalid length arguments.
var ErrInvalidTokenLength = errors.New("security: token length must be positive")

// GenerateToken returns a string of exactly length characters drawn uniformly
// from [A-Za-z0-9] using the crypto random source. Sampling rejects bytes
// outside the largest multiple of the alphabet size, so no character is more
// likely than another.
func GenerateToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidTokenLength, length)
	}

	const limit = 256 - 256%len(tokenAlphabet) // 248: reject 248..255 to stay unbiased
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("security: read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
