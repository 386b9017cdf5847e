package util

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const (
	ipKey ctxKey = iota
	userAgentKey
)

// IPMiddleware copies the client IP and user agent into the request context
// so services called with c.Request.Context() can read them.
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := SetIPContext(c.Request.Context(), c.ClientIP())
		ctx = SetUserAgentContext(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// SetIPContext stores ip in ctx. An empty ip leaves ctx unchanged.
func SetIPContext(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipKey, ip)
}

// GetIPFromContext extracts the client IP address from the context
func GetIPFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.ClientIP()
	}
	ip, _ := ctx.Value(ipKey).(string)
	return ip
}

// SetUserAgentContext stores ua in ctx. An empty ua leaves ctx unchanged.
func SetUserAgentContext(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, ua)
}

// GetUserAgentFromContext returns the user agent stored in ctx, or "".
func GetUserAgentFromContext(ctx context.Context) string {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		return ginCtx.Request.UserAgent()
	}
	ua, _ := ctx.Value(userAgentKey).(string)
	return ua
}
