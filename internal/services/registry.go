package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegistryService resolves services and manages user grants.
type RegistryService struct {
	store     *store.Store
	matchMode string
	logger    *zap.Logger
}

func NewRegistryService(s *store.Store, matchMode string) *RegistryService {
	if matchMode == "" {
		matchMode = config.ServiceMatchContains
	}
	return &RegistryService{
		store:     s,
		matchMode: matchMode,
		logger:    zap.L().Named("registry"),
	}
}

// FindByName returns the best match for name, or nil when nothing matches.
// In contains mode an exact match beats a partial one.
func (r *RegistryService) FindByName(ctx context.Context, name string) (*models.Service, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil //nolint:nilnil // absent service is not an error
	}
	matches, err := r.store.FindServicesByName(ctx, name, r.matchMode == config.ServiceMatchExact)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil //nolint:nilnil // absent service is not an error
	}
	return &matches[0], nil
}

// GetByName is FindByName with ErrServiceNotFound for a miss.
func (r *RegistryService) GetByName(ctx context.Context, name string) (*models.Service, error) {
	svc, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

// FindByBearerToken resolves the service presenting token, nil when unknown.
func (r *RegistryService) FindByBearerToken(
	ctx context.Context,
	token string,
) (*models.Service, error) {
	if token == "" {
		return nil, nil //nolint:nilnil // absent service is not an error
	}
	svc, err := r.store.GetServiceByBearerToken(ctx, token)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, nil //nolint:nilnil // absent service is not an error
	}
	return svc, err
}

// IsAvailable reports whether svc accepts OAuth logins: present, public, not deleted.
func (r *RegistryService) IsAvailable(svc *models.Service) bool {
	return svc.IsAvailable()
}

// RequireAvailable looks up name and fails with ErrServiceUnavailable unless
// the service can take logins.
func (r *RegistryService) RequireAvailable(
	ctx context.Context,
	name string,
) (*models.Service, error) {
	svc, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !r.IsAvailable(svc) {
		return nil, fmt.Errorf("%w: %q", ErrServiceUnavailable, name)
	}
	return svc, nil
}

// GrantUserService records that userID may use serviceID. Existing grants,
// including one inserted by a concurrent caller, count as success.
// It reports whether a new grant was written.
func (r *RegistryService) GrantUserService(
	ctx context.Context,
	userID, serviceID string,
) (bool, error) {
	if _, err := r.store.GetUserService(ctx, userID, serviceID); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return false, err
	}

	err := r.store.CreateUserService(ctx, &models.UserService{
		ID:        uuid.New().String(),
		UserID:    userID,
		ServiceID: serviceID,
	})
	switch {
	case err == nil:
		r.logger.Info("granted service",
			zap.String("user_id", userID),
			zap.String("service_id", serviceID),
		)
		return true, nil
	case errors.Is(err, store.ErrDuplicateKey):
		return false, nil
	default:
		return false, err
	}
}

// CheckServiceGrant reports whether the user holds a grant for the named
// service. Always reads the database.
func (r *RegistryService) CheckServiceGrant(
	ctx context.Context,
	userID, serviceName string,
) (bool, error) {
	svc, err := r.FindByName(ctx, serviceName)
	if err != nil {
		return false, err
	}
	if svc == nil {
		return false, nil
	}
	count, err := r.store.CountUserServices(ctx, userID, svc.ID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateServiceInput describes a service registration.
type CreateServiceInput struct {
	Name        string
	Public      bool
	WebhookURLs []string
	HookSecret  string // generated when empty
	BearerToken string // generated when empty
}

// CreateService registers a tenant, generating its secrets when not supplied.
func (r *RegistryService) CreateService(
	ctx context.Context,
	in CreateServiceInput,
) (*models.Service, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("service name is required")
	}
	for _, raw := range in.WebhookURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationError("invalid webhook url %q", raw)
		}
	}

	existing, err := r.store.FindServicesByName(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: service %q already exists", ErrConflict, name)
	}

	secret := in.HookSecret
	if secret == "" {
		if secret, err = store.GenerateHookSecret(); err != nil {
			return nil, err
		}
	}
	bearer := in.BearerToken
	if bearer == "" {
		bearer = uuid.New().String()
	}

	svc := &models.Service{
		ID:                uuid.New().String(),
		Name:              name,
		Public:            in.Public,
		MicroServicesURLs: in.WebhookURLs,
		HookSecret:        secret,
		BearerToken:       bearer,
	}
	if err := r.store.CreateService(ctx, svc); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: service %q already exists", ErrConflict, name)
		}
		return nil, err
	}
	return svc, nil
}

// DeleteService soft-deletes the service named exactly name, whatever the
// match mode. Its bearer token stops resolving immediately.
func (r *RegistryService) DeleteService(ctx context.Context, name string) (*models.Service, error) {
	matches, err := r.store.FindServicesByName(ctx, name, true)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	svc := &matches[0]
	if err := r.store.DeleteService(ctx, svc.ID); err != nil {
		return nil, err
	}
	r.logger.Info("service deleted", zap.String("service", svc.Name), zap.String("service_id", svc.ID))
	return svc, nil
}
