package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/store"

	"go.uber.org/zap"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// ensureServiceKeys generates key pairs for registered services that have none.
// A service with only part of its key files is regenerated as a whole.
func ensureServiceKeys(
	ctx context.Context,
	db *store.Store,
	keys *keystore.KeyStore,
	logger *zap.Logger,
) error {
	services, err := db.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list services: %w", err)
	}

	for _, svc := range services {
		missing, err := serviceKeysMissing(keys, svc.Name)
		if err != nil {
			logger.Warn("skipping key check for service",
				zap.String("service", svc.Name), zap.Error(err))
			continue
		}
		if !missing {
			continue
		}
		if err := keys.Regenerate(svc.Name); err != nil {
			return fmt.Errorf("failed to generate keys for %s: %w", svc.Name, err)
		}
		logger.Info("generated signing keys", zap.String("service", svc.Name))
	}
	return nil
}

func serviceKeysMissing(keys *keystore.KeyStore, service string) (bool, error) {
	for _, class := range keystore.Classes {
		_, err := keys.PrivateKey(service, class)
		switch {
		case errors.Is(err, keystore.ErrKeyNotFound):
			return true, nil
		case err != nil:
			return false, err
		}
		if _, err := keys.PublicKey(service, class); errors.Is(err, keystore.ErrKeyNotFound) {
			return true, nil
		}
	}
	return false, nil
}
