package handlers

import (
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/token"

	"github.com/gin-gonic/gin"
)

// CookieConfig controls the token cookies set after login.
type CookieConfig struct {
	Domain string
	Secure bool // production only
}

func (cc CookieConfig) set(c *gin.Context, name string, result *token.Result) {
	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, result.TokenString, maxAge, "/", cc.Domain, cc.Secure, true)
}

func (cc CookieConfig) setTokens(c *gin.Context, access, refresh *token.Result) {
	cc.set(c, middleware.AccessTokenCookie, access)
	if refresh != nil {
		cc.set(c, middleware.RefreshTokenCookie, refresh)
	}
}

func (cc CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", cc.Domain, cc.Secure, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/", cc.Domain, cc.Secure, true)
}
