package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-authgate/identitygate/internal/keystore"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/gin-gonic/gin"
)

// Cookie and gin context keys
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	ContextKeyUser    = "user"
	ContextKeyClaims  = "claims"
	ContextKeyService = "service"
)

// TokenVerifier checks a token against the key of the service it claims.
type TokenVerifier interface {
	VerifyToken(tokenString string, class keystore.TokenClass) (*token.Claims, error)
}

// UserLoader loads the user a verified token belongs to.
type UserLoader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// ServiceResolver resolves the service presenting a bearer credential.
type ServiceResolver interface {
	FindByBearerToken(ctx context.Context, token string) (*models.Service, error)
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth accepts an access token from the Authorization header or the
// access token cookie, verifies it against its service's key and loads the user.
func RequireAuth(verifier TokenVerifier, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			raw, _ = c.Cookie(AccessTokenCookie)
		}
		if raw == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization failed!", "No token provided")
			return
		}

		claims, err := verifier.VerifyToken(raw, keystore.ClassAccess)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Authorization failed!", "Invalid token")
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.Subject)
		if err != nil || user == nil {
			abortWithError(c, http.StatusUnauthorized, "Authorization failed!", "User not found")
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyClaims, claims)
		c.Request = c.Request.WithContext(models.SetUserContext(c.Request.Context(), user))
		c.Next()
	}
}

// RequirePermission rejects users whose role lacks perm. Use after RequireAuth.
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			abortWithError(c, http.StatusUnauthorized, "Authorization failed!", "Not authenticated")
			return
		}
		if !user.HasPermission(perm) {
			abortWithError(c, http.StatusForbidden, "Forbidden", "Missing permission "+perm)
			return
		}
		c.Next()
	}
}

// RequireServiceBearer authenticates a tenant service by its bearer token.
func RequireServiceBearer(services ServiceResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			challenge(c, "service", "Service token required")
			return
		}

		svc, err := services.FindByBearerToken(c.Request.Context(), raw)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "Internal Server Error", "Service lookup failed")
			return
		}
		if svc == nil {
			challenge(c, "service", "Unknown service token")
			return
		}

		c.Set(ContextKeyService, svc)
		c.Next()
	}
}

// GetUser returns the user set by RequireAuth, nil when absent.
func GetUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextKeyUser); ok {
		user, _ := v.(*models.User)
		return user
	}
	return nil
}

// GetClaims returns the access token claims set by RequireAuth.
func GetClaims(c *gin.Context) *token.Claims {
	if v, ok := c.Get(ContextKeyClaims); ok {
		claims, _ := v.(*token.Claims)
		return claims
	}
	return nil
}

// GetService returns the service set by RequireServiceBearer.
func GetService(c *gin.Context) *models.Service {
	if v, ok := c.Get(ContextKeyService); ok {
		svc, _ := v.(*models.Service)
		return svc
	}
	return nil
}
