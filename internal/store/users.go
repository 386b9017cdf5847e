package store

import (
	"context"
	"strings"
	"time"

	"github.com/go-authgate/identitygate/internal/models"

	"gorm.io/gorm"
)

// User operations

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByEmail matches case-insensitively; emails are stored lower-cased.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// UsernameExists reports whether username is taken
func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

// CreateUser inserts a user. ErrDuplicateKey when the email or username is taken.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Save(user).Error)
}

// ListUsers returns users ordered by creation time, newest first
func (s *Store) ListUsers(
	ctx context.Context,
	params PaginationParams,
) ([]models.User, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if params.Search != "" {
		like := "%" + escapeLike(strings.ToLower(params.Search)) + "%"
		query = query.Where(
			`(LOWER(username) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\')`,
			like, like,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var users []models.User
	err := query.Order("created_at DESC").
		Offset(params.offset()).
		Limit(params.PageSize).
		Find(&users).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}
	return users, CalculatePagination(total, params.Page, params.PageSize), nil
}

// Account operations

// GetAccount finds the account linked for (provider, providerAccountID)
func (s *Store) GetAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// CreateAccount links an external account. ErrDuplicateKey when already linked.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	return translate(s.db.WithContext(ctx).Create(account).Error)
}

// TouchAccount records a sign-in through the account
func (s *Store) TouchAccount(ctx context.Context, accountID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ?", accountID).
		Update("last_used_at", at).Error
}

// CreateUserWithAccount inserts a user and its first linked account in one transaction.
func (s *Store) CreateUserWithAccount(
	ctx context.Context,
	user *models.User,
	account *models.Account,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		account.UserID = user.ID
		return tx.Create(account).Error
	})
	return translate(err)
}

// CountUsers returns the number of registered users
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}
