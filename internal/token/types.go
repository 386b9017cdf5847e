package token

import (
	"crypto/rsa"

	"github.com/go-authgate/identitygate/internal/core"
	"github.com/go-authgate/identitygate/internal/keystore"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants
const (
	TokenTypeBearer = "Bearer"

	// ScopeOpenID marks tokens minted for the deployment's OpenID service
	ScopeOpenID = "openid"
)

// Result is an alias for core.TokenResult.
type Result = core.TokenResult

// Subject is an alias for core.Subject.
type Subject = core.Subject

// Claims is the claim set carried by access and refresh tokens.
// The subject is the user id; Service names the tenant the token was minted for.
type Claims struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Scope   string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// KeyResolver hands out signing and verification keys per (service, token class).
// keystore.KeyStore satisfies it.
type KeyResolver interface {
	PrivateKey(service string, class keystore.TokenClass) (*rsa.PrivateKey, error)
	PublicKey(service string, class keystore.TokenClass) (*rsa.PublicKey, error)
}
