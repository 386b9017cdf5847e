package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// New opens the database, migrates the schema and optionally seeds demo data.
func New(ctx context.Context, driver, dsn string, cfg *config.Config) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dialector.Name() == "sqlite" {
		// one connection: :memory: databases are per-connection and sqlite serialises writers anyway
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Service{},
		&models.UserService{},
		&models.HookLog{},
		&models.AuditLog{},
	); err != nil {
		return nil, err
	}

	store := &Store{db: db}

	if cfg != nil && cfg.SeedDemoData {
		if err := store.seedData(ctx); err != nil {
			zap.L().Warn("failed to seed data", zap.Error(err))
		}
	}

	return store, nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

// GenerateHookSecret returns a random hex secret for HMAC signing
func GenerateHookSecret() (string, error) {
	return util.RandomHex(64)
}

func (s *Store) seedData(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount == 0 {
		password, err := generateRandomPassword(16)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hashStr := string(hash)
		user := &models.User{
			ID:           uuid.New().String(),
			Username:     "admin",
			Email:        "admin@localhost",
			PasswordHash: &hashStr,
			Role:         models.RoleAdmin,
		}
		if err := db.Create(user).Error; err != nil {
			return err
		}
		zap.L().Info("created default admin user",
			zap.String("email", user.Email),
			zap.String("password", password),
		)
	}

	var serviceCount int64
	if err := db.Model(&models.Service{}).Count(&serviceCount).Error; err != nil {
		return err
	}
	if serviceCount > 0 {
		return nil
	}

	for _, seed := range []struct {
		name   string
		public bool
	}{
		{"blog", true},
		{"chat", false},
	} {
		secret, err := GenerateHookSecret()
		if err != nil {
			return err
		}
		svc := &models.Service{
			ID:          uuid.New().String(),
			Name:        seed.name,
			Public:      seed.public,
			HookSecret:  secret,
			BearerToken: uuid.New().String(),
		}
		if err := db.Create(svc).Error; err != nil {
			return err
		}
		zap.L().Info("created demo service",
			zap.String("name", svc.Name),
			zap.Bool("public", svc.Public),
		)
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("database close: %w", ctx.Err())
	}
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
