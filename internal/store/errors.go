package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert violates a unique constraint
	ErrDuplicateKey = errors.New("duplicate key")
)

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case isDuplicateKey(err):
		return errors.Join(ErrDuplicateKey, err)
	default:
		return err
	}
}

// isDuplicateKey detects unique violations. TranslateError covers both bundled
// drivers; the message checks catch dialectors registered without a translator.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
