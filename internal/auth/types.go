package auth

import "github.com/go-authgate/identitygate/internal/core"

// Profile is a type alias for core.ExternalProfile so services can depend on
// core without importing the provider adapters.
type Profile = core.ExternalProfile

// Provider names
const (
	ProviderDiscord = "discord"
	ProviderGitHub  = "github"
	ProviderGoogle  = "google"
)
