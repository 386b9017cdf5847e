package core

// ExternalProfile is the normalized identity an OAuth provider returns.
// Providers fill what they know; Username and AvatarURL may be empty.
type ExternalProfile struct {
	Provider  string // "discord", "github", "google"
	ID        string // Provider's account ID
	Username  string
	Email     string
	AvatarURL string
}

// PasswordHasher hashes and checks local passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}
