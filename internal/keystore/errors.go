package keystore

import "errors"

var (
	// ErrKeyNotFound indicates the requested key file does not exist
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidTokenClass indicates a token class other than Access or Refresh
	ErrInvalidTokenClass = errors.New("invalid token class")

	// ErrInvalidServiceName indicates a service name unsafe for use in a file name
	ErrInvalidServiceName = errors.New("invalid service name")

	// ErrKeyGeneration indicates RSA key generation failed
	ErrKeyGeneration = errors.New("failed to generate key pair")

	// ErrInvalidKey indicates a key file could not be parsed
	ErrInvalidKey = errors.New("invalid key material")
)
