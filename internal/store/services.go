package store

import (
	"context"
	"strings"

	"github.com/go-authgate/identitygate/internal/models"

	"gorm.io/gorm/clause"
)

// Service (tenant) operations. Soft-deleted rows are excluded by gorm's DeletedAt scope.

// FindServicesByName matches name case-insensitively, as a substring unless exact is set.
// Exact matches sort first, then shorter names.
func (s *Store) FindServicesByName(
	ctx context.Context,
	name string,
	exact bool,
) ([]models.Service, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	query := s.db.WithContext(ctx).Model(&models.Service{})
	if exact {
		query = query.Where("LOWER(name) = ?", lower)
	} else {
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(lower)+"%")
	}

	var services []models.Service
	err := query.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(name) = ? THEN 0 ELSE 1 END",
			Vars:               []any{lower},
			WithoutParentheses: true,
		}}).
		Order("LENGTH(name) ASC").
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}

func (s *Store) GetServiceByBearerToken(ctx context.Context, token string) (*models.Service, error) {
	var svc models.Service
	if err := s.db.WithContext(ctx).Where("bearer_token = ?", token).First(&svc).Error; err != nil {
		return nil, translate(err)
	}
	return &svc, nil
}

func (s *Store) CreateService(ctx context.Context, svc *models.Service) error {
	return translate(s.db.WithContext(ctx).Create(svc).Error)
}

// DeleteService soft-deletes a service
func (s *Store) DeleteService(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Service{}, "id = ?", id).Error
}

func (s *Store) ListServices(ctx context.Context) ([]models.Service, error) {
	var services []models.Service
	err := s.db.WithContext(ctx).Order("name ASC").Find(&services).Error
	return services, err
}

// Grant operations

func (s *Store) GetUserService(
	ctx context.Context,
	userID, serviceID string,
) (*models.UserService, error) {
	var grant models.UserService
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND service_id = ?", userID, serviceID).
		First(&grant).Error
	if err != nil {
		return nil, translate(err)
	}
	return &grant, nil
}

// CreateUserService inserts a grant. ErrDuplicateKey when it already exists.
func (s *Store) CreateUserService(ctx context.Context, grant *models.UserService) error {
	return translate(s.db.WithContext(ctx).Create(grant).Error)
}

func (s *Store) CountUserServices(ctx context.Context, userID, serviceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.UserService{}).
		Where("user_id = ? AND service_id = ?", userID, serviceID).
		Count(&count).Error
	return count, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// CountServices returns the number of non-deleted services
func (s *Store) CountServices(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Service{}).Count(&count).Error
	return count, err
}
