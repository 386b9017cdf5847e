package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var validMethods = []string{jwt.SigningMethodRS256.Alg()}

// Issuer mints and verifies RS256 tokens with the key pair of the
// (service, token class) they are scoped to.
type Issuer struct {
	keys   KeyResolver
	config *config.Config
}

// NewIssuer creates a new token issuer
func NewIssuer(cfg *config.Config, keys KeyResolver) *Issuer {
	return &Issuer{keys: keys, config: cfg}
}

func (i *Issuer) ttl(class keystore.TokenClass) time.Duration {
	if class == keystore.ClassRefresh {
		return i.config.RefreshTokenExpiration
	}
	return i.config.AccessTokenExpiration
}

// Issue signs a claim set for subject scoped to service with the private key of (service, class).
func (i *Issuer) Issue(subject Subject, service string, class keystore.TokenClass) (*Result, error) {
	privateKey, err := i.keys.PrivateKey(service, class)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenGeneration, err)
	}

	now := time.Now()
	expiresAt := now.Add(i.ttl(class))

	claims := &Claims{
		Name:    subject.Name,
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.ID,
			Issuer:    i.config.BaseURL,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}
	if i.config.OpenIDServiceName != "" && strings.EqualFold(service, i.config.OpenIDServiceName) {
		claims.Scope = ScopeOpenID
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keystore.KeyID(service, class)

	tokenString, err := tok.SignedString(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return &Result{
		TokenString: tokenString,
		TokenType:   TokenTypeBearer,
		Class:       string(class),
		Service:     service,
		ExpiresAt:   expiresAt,
	}, nil
}

// IssueAccess mints an access token
func (i *Issuer) IssueAccess(subject Subject, service string) (*Result, error) {
	return i.Issue(subject, service, keystore.ClassAccess)
}

// IssueRefresh mints a refresh token
func (i *Issuer) IssueRefresh(subject Subject, service string) (*Result, error) {
	return i.Issue(subject, service, keystore.ClassRefresh)
}

// Verify checks tokenString against the public key of (service, class) only.
// The algorithm is pinned to RS256; a token minted for another service or
// class fails signature verification.
func (i *Issuer) Verify(tokenString, service string, class keystore.TokenClass) (*Claims, error) {
	publicKey, err := i.keys.PublicKey(service, class)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	expectedKid := keystore.KeyID(service, class)
	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, ok := t.Header["kid"].(string); ok && kid != expectedKid {
			return nil, fmt.Errorf("unexpected key id %q", kid)
		}
		return publicKey, nil
	},
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(i.config.BaseURL),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMalformedToken)
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	if claims.Service != service {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrServiceMismatch)
	}
	return claims, nil
}

// VerifyAccess verifies an access token for service
func (i *Issuer) VerifyAccess(tokenString, service string) (*Claims, error) {
	return i.Verify(tokenString, service, keystore.ClassAccess)
}

// VerifyRefresh verifies a refresh token for service
func (i *Issuer) VerifyRefresh(tokenString, service string) (*Claims, error) {
	return i.Verify(tokenString, service, keystore.ClassRefresh)
}

// DecodeWithoutVerify returns the claims of tokenString without checking the
// signature. The result is a routing hint for picking a verification key and
// must never be used for an authorization decision.
func DecodeWithoutVerify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// VerifyClaimed verifies a token against the service it claims to be scoped to.
// The unverified service claim only selects the key; the signature check against
// that service's key is what authorizes.
func (i *Issuer) VerifyClaimed(tokenString string, class keystore.TokenClass) (*Claims, error) {
	hint, err := DecodeWithoutVerify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if hint.Service == "" {
		return nil, fmt.Errorf("%w: missing service claim", ErrInvalidToken)
	}
	return i.Verify(tokenString, hint.Service, class)
}
