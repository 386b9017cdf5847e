package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// TokenClass is the purpose a key pair signs for.
type TokenClass string

const (
	ClassAccess  TokenClass = "Access"
	ClassRefresh TokenClass = "Refresh"
)

// Classes lists every token class a service owns a key pair for.
var Classes = []TokenClass{ClassAccess, ClassRefresh}

const (
	defaultKeyBits = 2048

	pemTypePrivate = "RSA PRIVATE KEY"
	pemTypePublic  = "RSA PUBLIC KEY"
)

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ParseTokenClass accepts "access" / "refresh" in any letter case.
func ParseTokenClass(s string) (TokenClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "access":
		return ClassAccess, nil
	case "refresh":
		return ClassRefresh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTokenClass, s)
	}
}

// KeyStore keeps one RSA key pair per (service, token class) as PEM files
// named <service><Public|Private><Access|Refresh>.pem under a single directory.
type KeyStore struct {
	dir  string
	bits int
}

// Option configures a KeyStore
type Option func(*KeyStore)

// WithKeyBits overrides the RSA modulus size. Intended for tests.
func WithKeyBits(bits int) Option {
	return func(k *KeyStore) {
		if bits >= 1024 {
			k.bits = bits
		}
	}
}

// New creates a KeyStore rooted at dir. The directory is created lazily on first write.
func New(dir string, opts ...Option) *KeyStore {
	k := &KeyStore{dir: dir, bits: defaultKeyBits}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Dir returns the directory holding the key files
func (k *KeyStore) Dir() string {
	return k.dir
}

func (k *KeyStore) path(service string, public bool, class TokenClass) string {
	half := "Private"
	if public {
		half = "Public"
	}
	return filepath.Join(k.dir, service+half+string(class)+".pem")
}

func validate(service string, class TokenClass) error {
	if !serviceNamePattern.MatchString(service) {
		return fmt.Errorf("%w: %q", ErrInvalidServiceName, service)
	}
	if class != ClassAccess && class != ClassRefresh {
		return fmt.Errorf("%w: %q", ErrInvalidTokenClass, class)
	}
	return nil
}

// Generate creates a fresh key pair for (service, class), replacing any existing files.
// Both halves are written to temporary files first and renamed into place so readers
// never observe a half-written pair.
func (k *KeyStore) Generate(service string, class TokenClass) error {
	if err := validate(service, class); err != nil {
		return err
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, k.bits)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePrivate,
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	publicPEM := pem.EncodeToMemory(&pem.Block{
		Type:  pemTypePublic,
		Bytes: x509.MarshalPKCS1PublicKey(&privateKey.PublicKey),
	})

	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	privateTmp, err := writeTemp(k.dir, privatePEM, 0o600)
	if err != nil {
		return err
	}
	publicTmp, err := writeTemp(k.dir, publicPEM, 0o644)
	if err != nil {
		_ = os.Remove(privateTmp)
		return err
	}

	privatePath := k.path(service, false, class)
	publicPath := k.path(service, true, class)

	if err := os.Rename(privateTmp, privatePath); err != nil {
		_ = os.Remove(privateTmp)
		_ = os.Remove(publicTmp)
		return fmt.Errorf("failed to install private key: %w", err)
	}
	if err := os.Rename(publicTmp, publicPath); err != nil {
		// Never leave a private half without its public half
		_ = os.Remove(publicTmp)
		_ = os.Remove(privatePath)
		return fmt.Errorf("failed to install public key: %w", err)
	}

	zap.L().Info("generated key pair",
		zap.String("service", service),
		zap.String("class", string(class)),
	)
	return nil
}

// Regenerate deletes every key file of the service and generates new pairs for all classes.
// Rotation is a hard cutover: tokens signed with the old keys stop verifying.
func (k *KeyStore) Regenerate(service string) error {
	if err := k.Delete(service); err != nil {
		return err
	}
	for _, class := range Classes {
		if err := k.Generate(service, class); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes both halves of both classes for a service. Files that are already
// absent are not an error.
func (k *KeyStore) Delete(service string) error {
	if err := validate(service, ClassAccess); err != nil {
		return err
	}

	var errs []error
	for _, class := range Classes {
		for _, public := range []bool{true, false} {
			err := os.Remove(k.path(service, public, class))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to delete keys for %s: %w", service, errors.Join(errs...))
	}
	return nil
}

// PublicKeyPEM returns the PEM text of the public half. ErrKeyNotFound when absent.
func (k *KeyStore) PublicKeyPEM(service string, class TokenClass) ([]byte, error) {
	if err := validate(service, class); err != nil {
		return nil, err
	}
	return readKeyFile(k.path(service, true, class))
}

// PublicKey returns the parsed public key of (service, class).
func (k *KeyStore) PublicKey(service string, class TokenClass) (*rsa.PublicKey, error) {
	data, err := k.PublicKeyPEM(service, class)
	if err != nil {
		return nil, err
	}
	return parsePublicKey(data)
}

// PrivateKey returns the parsed private key of (service, class). Only the token
// issuer calls this; no HTTP surface exposes private material.
func (k *KeyStore) PrivateKey(service string, class TokenClass) (*rsa.PrivateKey, error) {
	if err := validate(service, class); err != nil {
		return nil, err
	}
	data, err := readKeyFile(k.path(service, false, class))
	if err != nil {
		return nil, err
	}
	return parsePrivateKey(data)
}

func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return data, nil
}

func writeTemp(dir string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, ".key-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp key file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("failed to set key file mode: %w", err)
	}
	return name, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
	}
	return key, nil
}

func parsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return key, nil
}
