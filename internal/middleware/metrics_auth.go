package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// challenge rejects the request with a Bearer challenge for realm
func challenge(c *gin.Context, realm, detail string) {
	c.Header("WWW-Authenticate", `Bearer realm="`+realm+`"`)
	abortWithError(c, http.StatusUnauthorized, "Authorization failed!", detail)
}

// RequireStaticToken admits requests presenting exactly token as a bearer
// credential. The comparison is constant time. An empty token disables the check.
func RequireStaticToken(realm, token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(token)

	return func(c *gin.Context) {
		switch provided := BearerToken(c); {
		case provided == "":
			challenge(c, realm, "Bearer token required")
		case subtle.ConstantTimeCompare([]byte(provided), want) != 1:
			challenge(c, realm, "Invalid token")
		default:
			c.Next()
		}
	}
}

// MetricsAuthMiddleware guards /metrics with METRICS_TOKEN
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return RequireStaticToken("Metrics", token)
}
