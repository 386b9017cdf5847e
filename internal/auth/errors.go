package auth

import "errors"

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrMissingEmail        = errors.New("provider account has no email address")

	// Provider API errors
	ErrProviderAPI      = errors.New("oauth provider API request failed")
	ErrProviderResponse = errors.New("invalid response from oauth provider")
)
