package token

import "errors"

var (
	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")

	// ErrMalformedToken indicates the token could not be decoded at all
	ErrMalformedToken = errors.New("malformed token")

	// ErrServiceMismatch indicates the token was minted for another service
	ErrServiceMismatch = errors.New("token service mismatch")

	// ErrInvalidHookToken indicates a webhook delivery token failed validation
	ErrInvalidHookToken = errors.New("invalid hook token")
)
