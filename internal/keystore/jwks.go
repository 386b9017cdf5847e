package keystore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
)

// KeyID is the JWK "kid" and JWT header "kid" for a (service, class) pair.
func KeyID(service string, class TokenClass) string {
	return service + "-" + strings.ToLower(string(class))
}

// JWKS returns the public keys of every class present for the service.
// ErrKeyNotFound when the service has no keys at all.
func (k *KeyStore) JWKS(service string) (jose.JSONWebKeySet, error) {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(Classes))}

	for _, class := range Classes {
		pub, err := k.PublicKey(service, class)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return jose.JSONWebKeySet{}, fmt.Errorf("jwks %s: %w", class, err)
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     KeyID(service, class),
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}

	if len(set.Keys) == 0 {
		return jose.JSONWebKeySet{}, fmt.Errorf("%w: %s", ErrKeyNotFound, service)
	}
	return set, nil
}
