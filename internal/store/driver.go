package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openers maps DATABASE_DRIVER values to gorm dialectors
var openers = map[string]func(dsn string) gorm.Dialector{
	"sqlite":   sqlite.Open,
	"postgres": postgres.Open,
}

// GetDialector returns the dialector for driver, matched case-insensitively.
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	open, ok := openers[strings.ToLower(strings.TrimSpace(driver))]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("empty dsn for database driver %q", driver)
	}
	return open(dsn), nil
}
