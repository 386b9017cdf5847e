package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/identitygate/internal/core"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/models"

	"github.com/go-jose/go-jose/v4"
)

// KeyService exposes per-service key management with audit and metrics.
type KeyService struct {
	keys    *keystore.KeyStore
	audit   *AuditService
	metrics core.Recorder
}

func NewKeyService(keys *keystore.KeyStore, audit *AuditService, m core.Recorder) *KeyService {
	return &KeyService{keys: keys, audit: audit, metrics: m}
}

// GenerateServiceKeys replaces every key pair of service. Tokens signed with
// the previous keys stop verifying.
func (s *KeyService) GenerateServiceKeys(ctx context.Context, service string, meta RequestMeta) error {
	err := s.keys.Regenerate(service)
	s.metrics.RecordKeyGeneration(err == nil)

	entry := AuditLogEntry{
		EventType:     models.EventKeysGenerated,
		Severity:      models.SeverityWarning,
		ActorUserID:   models.GetUserIDFromContext(ctx),
		ActorIP:       meta.IP,
		UserAgent:     meta.UserAgent,
		RequestPath:   meta.Path,
		RequestMethod: meta.Method,
		ResourceType:  models.ResourceKey,
		ResourceName:  service,
		Success:       err == nil,
	}
	if err != nil {
		entry.Severity = models.SeverityError
		entry.ErrorMessage = err.Error()
	}
	if aerr := s.audit.Record(ctx, entry); aerr != nil {
		return aerr
	}
	return mapKeyError(err)
}

// DeleteServiceKeys removes every key file of service. Missing files are not an error.
func (s *KeyService) DeleteServiceKeys(service string) error {
	return mapKeyError(s.keys.Delete(service))
}

// PublicKeyPEM returns the public PEM of (service, class). class is matched case-insensitively.
func (s *KeyService) PublicKeyPEM(service, class string) ([]byte, error) {
	tc, err := keystore.ParseTokenClass(class)
	if err != nil {
		return nil, mapKeyError(err)
	}
	pem, err := s.keys.PublicKeyPEM(service, tc)
	return pem, mapKeyError(err)
}

// JWKS returns the public key set of service.
func (s *KeyService) JWKS(service string) (jose.JSONWebKeySet, error) {
	set, err := s.keys.JWKS(service)
	return set, mapKeyError(err)
}

func mapKeyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keystore.ErrInvalidTokenClass), errors.Is(err, keystore.ErrInvalidServiceName):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, keystore.ErrKeyNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}
