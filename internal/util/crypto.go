package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

// RandomHex returns n lowercase hex characters. Used for hook secrets and
// username suffixes.
func RandomHex(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	buf, err := randomBytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:n], nil
}

// RandomURLToken encodes size random bytes as unpadded base64url, safe to
// place in query strings and cookies.
func RandomURLToken(size int) (string, error) {
	buf, err := randomBytes(size)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
