package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var hookMethods = []string{jwt.SigningMethodHS256.Alg()}

// HookClaims binds a login event to the user, service and client that produced it.
// Sent as the x-hook-token header on webhook deliveries.
type HookClaims struct {
	UserID    string `json:"userId"`
	Service   string `json:"service"`
	IP        string `json:"ip"`
	UserAgent string `json:"userAgent"`
	Timestamp int64  `json:"timestamp"`
	jwt.RegisteredClaims
}

// SignHookToken signs claims with the service hook secret (HS256) and a short expiry.
func SignHookToken(secret string, claims HookClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty hook secret", ErrTokenGeneration)
	}

	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Timestamp == 0 {
		claims.Timestamp = now.UnixMilli()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// ParseHookToken validates a hook token the way a receiving service would.
func ParseHookToken(secret, tokenString string) (*HookClaims, error) {
	claims := &HookClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods(hookMethods), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidHookToken, err)
	}
	return claims, nil
}

// SignPayload returns the hex HMAC-SHA256 of body keyed with secret.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload reports whether signature is the hex HMAC-SHA256 of body. Constant time.
func VerifyPayload(secret string, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
