package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/identitygate/internal/core"
	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/token"

	"go.uber.org/zap"
)

// Login methods, as reported to metrics and audit details
const (
	LoginMethodLocal  = "local"
	LoginMethodSignup = "signup"
)

// RequestMeta carries the client facts recorded with audit entries and login events.
type RequestMeta struct {
	IP        string
	UserAgent string
	Path      string
	Method    string
}

// LoginResult is the outcome of a completed login: the user, the token pair
// scoped to the service, and whether the service was notified.
type LoginResult struct {
	User     *models.User
	Service  string
	Access   *token.Result
	Refresh  *token.Result
	Notified bool
}

// SessionService orchestrates logins: identity, grants, notification, tokens and audit.
type SessionService struct {
	identity       *IdentityService
	registry       *RegistryService
	dispatcher     *Dispatcher
	issuer         *token.Issuer
	audit          *AuditService
	metrics        core.Recorder
	notifyRequired bool
	logger         *zap.Logger
}

// NewSessionService wires the orchestrator. With notifyRequired a login whose
// event reached no channel fails with ErrNotificationFailed; otherwise the
// failure is logged and tokens are still minted.
func NewSessionService(
	identity *IdentityService,
	registry *RegistryService,
	dispatcher *Dispatcher,
	issuer *token.Issuer,
	audit *AuditService,
	m core.Recorder,
	notifyRequired bool,
) *SessionService {
	return &SessionService{
		identity:       identity,
		registry:       registry,
		dispatcher:     dispatcher,
		issuer:         issuer,
		audit:          audit,
		metrics:        m,
		notifyRequired: notifyRequired,
		logger:         zap.L().Named("session"),
	}
}

// CompleteExternalLogin is the OAuth callback step: the service must be
// available, the profile resolves to a user, and the user is granted the
// service on first use.
func (s *SessionService) CompleteExternalLogin(
	ctx context.Context,
	profile *core.ExternalProfile,
	serviceName string,
	meta RequestMeta,
) (*models.User, error) {
	svc, err := s.registry.RequireAvailable(ctx, serviceName)
	if err != nil {
		s.metrics.RecordOAuthCallback(profile.Provider, false)
		return nil, err
	}

	user, err := s.identity.ResolveExternalIdentity(ctx, profile)
	if err != nil {
		s.metrics.RecordOAuthCallback(profile.Provider, false)
		return nil, err
	}

	if err := s.grant(ctx, user, svc, meta); err != nil {
		s.metrics.RecordOAuthCallback(profile.Provider, false)
		return nil, err
	}

	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventLogin,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceService,
		ResourceID:    svc.ID,
		ResourceName:  svc.Name,
		Details:       models.AuditDetails{"provider": profile.Provider},
		Success:       true,
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordOAuthCallback(profile.Provider, true)
	s.metrics.RecordLogin(profile.Provider, true)
	return user, nil
}

// CompleteLogin is the success step after an OAuth round trip. The user is
// re-read and must still hold the grant before tokens are minted.
func (s *SessionService) CompleteLogin(
	ctx context.Context,
	userID, serviceName string,
	meta RequestMeta,
) (*LoginResult, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	svc, err := s.registry.GetByName(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	granted, err := s.registry.CheckServiceGrant(ctx, user.ID, svc.Name)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrGrantMissing
	}

	return s.finish(ctx, user, svc, meta)
}

// LocalLogin authenticates an email/password pair for a service. A user
// without a grant is granted public services and refused private ones.
func (s *SessionService) LocalLogin(
	ctx context.Context,
	email, password, serviceName string,
	meta RequestMeta,
) (*LoginResult, error) {
	user, err := s.identity.ResolveLocalCredentials(ctx, email, password)
	if err != nil {
		s.metrics.RecordLogin(LoginMethodLocal, false)
		if errors.Is(err, ErrInvalidCredentials) {
			if aerr := s.record(ctx, meta, AuditLogEntry{
				EventType:    models.EventLoginFailure,
				ResourceType: models.ResourceUser,
				ResourceName: email,
				Details:      models.AuditDetails{"method": LoginMethodLocal, "service": serviceName},
				Success:      false,
				ErrorMessage: err.Error(),
			}); aerr != nil {
				return nil, aerr
			}
		}
		return nil, err
	}

	svc, err := s.registry.GetByName(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	granted, err := s.registry.CheckServiceGrant(ctx, user.ID, svc.Name)
	if err != nil {
		return nil, err
	}
	if !granted {
		if !svc.IsAvailable() {
			s.metrics.RecordLogin(LoginMethodLocal, false)
			return nil, ErrGrantMissing
		}
		if err := s.grant(ctx, user, svc, meta); err != nil {
			return nil, err
		}
	}

	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventLogin,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceService,
		ResourceID:    svc.ID,
		ResourceName:  svc.Name,
		Details:       models.AuditDetails{"method": LoginMethodLocal},
		Success:       true,
	}); err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(LoginMethodLocal, true)

	return s.finish(ctx, user, svc, meta)
}

// Signup registers a local user and grants the requested service, which
// must be available.
func (s *SessionService) Signup(
	ctx context.Context,
	email, username, password, serviceName string,
	meta RequestMeta,
) (*LoginResult, error) {
	svc, err := s.registry.RequireAvailable(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	user, err := s.identity.RegisterLocalUser(ctx, email, username, password)
	if err != nil {
		s.metrics.RecordLogin(LoginMethodSignup, false)
		return nil, err
	}

	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventRegister,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceUser,
		ResourceID:    user.ID,
		ResourceName:  user.Username,
		Details:       models.AuditDetails{"service": svc.Name},
		Success:       true,
	}); err != nil {
		return nil, err
	}

	if err := s.grant(ctx, user, svc, meta); err != nil {
		return nil, err
	}
	s.metrics.RecordLogin(LoginMethodSignup, true)

	return s.finish(ctx, user, svc, meta)
}

// CreateUser registers a local user on behalf of an administrator. No
// service is granted.
func (s *SessionService) CreateUser(
	ctx context.Context,
	actor *models.User,
	email, username, password string,
	meta RequestMeta,
) (*models.User, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	user, err := s.identity.RegisterLocalUser(ctx, email, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventUserCreated,
		ActorUserID:   actor.ID,
		ActorUsername: actor.Username,
		ResourceType:  models.ResourceUser,
		ResourceID:    user.ID,
		ResourceName:  user.Username,
		Success:       true,
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh mints a new access token from a refresh token. The grant is read
// fresh so a revoked grant never yields a token. Refresh tokens are not rotated.
func (s *SessionService) Refresh(
	ctx context.Context,
	refreshToken string,
	meta RequestMeta,
) (*token.Result, error) {
	claims, err := s.VerifyToken(refreshToken, keystore.ClassRefresh)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}

	granted, err := s.registry.CheckServiceGrant(ctx, claims.Subject, claims.Service)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}
	if !granted {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrGrantMissing
	}

	user, err := s.identity.GetUser(ctx, claims.Subject)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidSessionToken
		}
		return nil, err
	}

	access, err := s.issue(user, claims.Service, keystore.ClassAccess)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}

	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventTokenRefreshed,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceToken,
		ResourceName:  claims.Service,
		Details:       models.AuditDetails{"jti": claims.ID},
		Success:       true,
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordTokenRefresh(true)
	return access, nil
}

// VerifyToken verifies a token of class against the key of the service it
// claims. Any failure is ErrInvalidSessionToken.
func (s *SessionService) VerifyToken(
	tokenString string,
	class keystore.TokenClass,
) (*token.Claims, error) {
	label := string(class)
	if tokenString == "" {
		s.metrics.RecordTokenVerification(label, "missing")
		return nil, ErrInvalidSessionToken
	}

	claims, err := s.issuer.VerifyClaimed(tokenString, class)
	if err != nil {
		result := "invalid"
		if errors.Is(err, token.ErrExpiredToken) {
			result = "expired"
		}
		s.metrics.RecordTokenVerification(label, result)
		s.logger.Debug("token verification failed", zap.String("class", label), zap.Error(err))
		return nil, ErrInvalidSessionToken
	}

	s.metrics.RecordTokenVerification(label, "valid")
	return claims, nil
}

// Logout records the logout of userID. Cookie and session teardown belong to the caller.
func (s *SessionService) Logout(ctx context.Context, userID, username string, meta RequestMeta) error {
	s.metrics.RecordLogout()
	if userID == "" {
		return nil
	}
	return s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventLogout,
		ActorUserID:   userID,
		ActorUsername: username,
		ResourceType:  models.ResourceUser,
		ResourceID:    userID,
		Success:       true,
	})
}

// finish notifies the service, mints the token pair and records ACCESS_SERVICE.
func (s *SessionService) finish(
	ctx context.Context,
	user *models.User,
	svc *models.Service,
	meta RequestMeta,
) (*LoginResult, error) {
	notified, err := s.dispatcher.DispatchLoginNotification(ctx, user, svc.Name, meta.IP, meta.UserAgent)
	if err != nil {
		s.logger.Warn("login notification not dispatched",
			zap.String("service", svc.Name),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}
	if !notified && s.notifyRequired {
		return nil, ErrNotificationFailed
	}

	access, err := s.issue(user, svc.Name, keystore.ClassAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(user, svc.Name, keystore.ClassRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventAccessService,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceService,
		ResourceID:    svc.ID,
		ResourceName:  svc.Name,
		Details:       models.AuditDetails{"notified": notified},
		Success:       true,
	}); err != nil {
		return nil, err
	}

	return &LoginResult{
		User:     user,
		Service:  svc.Name,
		Access:   access,
		Refresh:  refresh,
		Notified: notified,
	}, nil
}

func (s *SessionService) issue(
	user *models.User,
	service string,
	class keystore.TokenClass,
) (*token.Result, error) {
	start := time.Now()
	result, err := s.issuer.Issue(token.Subject{ID: user.ID, Name: user.Username}, service, class)
	if err != nil {
		if errors.Is(err, keystore.ErrKeyNotFound) {
			return nil, ErrServiceKeysMissing
		}
		return nil, err
	}
	s.metrics.RecordTokenIssued(string(class), time.Since(start))
	return result, nil
}

func (s *SessionService) grant(
	ctx context.Context,
	user *models.User,
	svc *models.Service,
	meta RequestMeta,
) error {
	created, err := s.registry.GrantUserService(ctx, user.ID, svc.ID)
	if err != nil || !created {
		return err
	}
	return s.record(ctx, meta, AuditLogEntry{
		EventType:     models.EventServiceGranted,
		ActorUserID:   user.ID,
		ActorUsername: user.Username,
		ResourceType:  models.ResourceService,
		ResourceID:    svc.ID,
		ResourceName:  svc.Name,
		Success:       true,
	})
}

func (s *SessionService) record(ctx context.Context, meta RequestMeta, entry AuditLogEntry) error {
	entry.ActorIP = meta.IP
	entry.UserAgent = meta.UserAgent
	entry.RequestPath = meta.Path
	entry.RequestMethod = meta.Method
	return s.audit.Record(ctx, entry)
}
