package cache

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable wraps backend (Redis) failures
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidValue wraps encode and decode failures
	ErrInvalidValue = errors.New("cache: invalid value")
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}

// encode and decode define the wire form shared by both Redis backends.
func encode[T any](value T) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return string(b), nil
}

func decode[T any](s string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(s), &value); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}
