package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-authgate/identitygate/internal/cache"
	"github.com/go-authgate/identitygate/internal/core"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/util"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPasswordLength   = 8
	maxUsernameLength   = 32
	maxUsernameSuffixes = 100
	resolveMaxTries     = 4
	userCacheKeyPrefix  = "user:"
)

var usernameDisallowed = regexp.MustCompile(`[^a-z0-9_.-]+`)

// IdentityService turns provider profiles and local credentials into users.
type IdentityService struct {
	store    *store.Store
	hasher   core.PasswordHasher
	cache    cache.Cache[models.User]
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewIdentityService(
	s *store.Store,
	hasher core.PasswordHasher,
	userCache cache.Cache[models.User],
	cacheTTL time.Duration,
) *IdentityService {
	if userCache == nil {
		userCache = cache.NewMemoryCache[models.User]()
	}
	return &IdentityService{
		store:    s,
		hasher:   hasher,
		cache:    userCache,
		cacheTTL: cacheTTL,
		logger:   zap.L().Named("identity"),
	}
}

// ResolveExternalIdentity finds or creates the user behind an external profile.
// Lookup order is (provider, account id), then email (linking a new account),
// then a new user with its account. Concurrent callers for the same account
// race on the unique index; the loser retries and reads the winner's rows.
func (s *IdentityService) ResolveExternalIdentity(
	ctx context.Context,
	profile *core.ExternalProfile,
) (*models.User, error) {
	if profile == nil || profile.Provider == "" || profile.ID == "" {
		return nil, validationError("provider profile is incomplete")
	}
	if strings.TrimSpace(profile.Email) == "" {
		return nil, validationError("provider profile has no email")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	user, err := backoff.Retry(ctx, func() (*models.User, error) {
		user, err := s.resolveExternalOnce(ctx, profile)
		if err != nil && !errors.Is(err, store.ErrDuplicateKey) {
			return nil, backoff.Permanent(err)
		}
		return user, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(resolveMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("identity create raced, retrying",
				zap.String("provider", profile.Provider),
				zap.Duration("after", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve %s identity: %w", profile.Provider, err)
	}
	return user, nil
}

func (s *IdentityService) resolveExternalOnce(
	ctx context.Context,
	profile *core.ExternalProfile,
) (*models.User, error) {
	account, err := s.store.GetAccount(ctx, profile.Provider, profile.ID)
	switch {
	case err == nil:
		if err := s.store.TouchAccount(ctx, account.ID, time.Now()); err != nil {
			s.logger.Warn("failed to touch account", zap.String("account_id", account.ID), zap.Error(err))
		}
		user, err := s.store.GetUserByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
		s.adoptAvatar(ctx, user, profile.AvatarURL)
		return user, nil
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	newAccount := &models.Account{
		ID:                uuid.New().String(),
		Provider:          profile.Provider,
		ProviderAccountID: profile.ID,
		ProviderUsername:  profile.Username,
		ProviderEmail:     profile.Email,
		ProviderImage:     profile.AvatarURL,
		LastUsedAt:        time.Now(),
	}

	user, err := s.store.GetUserByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		newAccount.UserID = user.ID
		if err := s.store.CreateAccount(ctx, newAccount); err != nil {
			return nil, err
		}
		s.logger.Info("linked external account",
			zap.String("user_id", user.ID),
			zap.String("provider", profile.Provider),
		)
		s.adoptAvatar(ctx, user, profile.AvatarURL)
		return user, nil
	case !errors.Is(err, store.ErrRecordNotFound):
		return nil, err
	}

	base := profile.Username
	if base == "" {
		base, _, _ = strings.Cut(profile.Email, "@")
	}
	username, err := s.availableUsername(ctx, base)
	if err != nil {
		return nil, err
	}

	user = &models.User{
		ID:       uuid.New().String(),
		Username: username,
		Email:    strings.ToLower(strings.TrimSpace(profile.Email)),
		Role:     models.RoleUser,
		Image:    profile.AvatarURL,
	}
	if err := s.store.CreateUserWithAccount(ctx, user, newAccount); err != nil {
		return nil, err
	}
	s.logger.Info("created user from external profile",
		zap.String("user_id", user.ID),
		zap.String("provider", profile.Provider),
	)
	return user, nil
}

// adoptAvatar fills an empty profile image from the provider. Failures are
// logged; the login itself is unaffected.
func (s *IdentityService) adoptAvatar(ctx context.Context, user *models.User, avatarURL string) {
	if user.Image != "" || avatarURL == "" {
		return
	}
	user.Image = avatarURL
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("failed to store provider avatar", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.InvalidateUser(ctx, user.ID)
}

// ResolveLocalCredentials checks an email/password pair. Unknown email,
// provider-only account and wrong password all yield ErrInvalidCredentials.
func (s *IdentityService) ResolveLocalCredentials(
	ctx context.Context,
	email, password string,
) (*models.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.HasPassword() || !s.hasher.Verify(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RegisterLocalUser creates a password user. ErrEmailTaken or ErrUsernameTaken
// when either is in use; no row is written in that case.
func (s *IdentityService) RegisterLocalUser(
	ctx context.Context,
	email, username, password string,
) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, validationError("a valid email is required")
	}
	if username == "" || len(username) > maxUsernameLength {
		return nil, validationError("username must be 1-%d characters", maxUsernameLength)
	}
	if len(password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}
	taken, err := s.store.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleUser,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent signup
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// GetUser returns a user through the identity cache. Entries may be stale for
// up to the cache TTL; grant checks never go through here.
func (s *IdentityService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.cache.GetWithFetch(ctx, userCacheKeyPrefix+id, s.cacheTTL,
		func(ctx context.Context, _ string) (models.User, error) {
			u, err := s.store.GetUserByID(ctx, id)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		})
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// InvalidateUser drops a cached user.
func (s *IdentityService) InvalidateUser(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, userCacheKeyPrefix+id); err != nil {
		s.logger.Warn("failed to invalidate cached user", zap.String("user_id", id), zap.Error(err))
	}
}

// ListUsers returns a page of users.
func (s *IdentityService) ListUsers(
	ctx context.Context,
	params store.PaginationParams,
) ([]models.User, store.PaginationResult, error) {
	return s.store.ListUsers(ctx, params)
}

// availableUsername normalizes base and appends the first free numeric suffix.
func (s *IdentityService) availableUsername(ctx context.Context, base string) (string, error) {
	base = usernameDisallowed.ReplaceAllString(strings.ToLower(base), "")
	if base == "" {
		base = "user"
	}
	if len(base) > maxUsernameLength-4 {
		base = base[:maxUsernameLength-4]
	}

	for i := range maxUsernameSuffixes {
		candidate := base
		if i > 0 {
			candidate = base + strconv.Itoa(i)
		}
		taken, err := s.store.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	suffix, err := util.RandomHex(6)
	if err != nil {
		return "", err
	}
	return base + "-" + suffix, nil
}
