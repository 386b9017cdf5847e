package models

import (
	"context"

	"github.com/gin-gonic/gin"
)

type contextKey struct{}

var userContextKey = contextKey{}

// SetUserContext returns a copy of ctx carrying user. A nil user leaves ctx unchanged.
func SetUserContext(ctx context.Context, user *User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the user stored by SetUserContext or by the auth
// middleware on a gin context, nil when absent.
func GetUserFromContext(ctx context.Context) *User {
	if ginCtx, ok := ctx.(*gin.Context); ok {
		if userVal, exists := ginCtx.Get("user"); exists {
			if user, ok := userVal.(*User); ok {
				return user
			}
		}
		if ginCtx.Request == nil {
			return nil
		}
		ctx = ginCtx.Request.Context()
	}
	if ctx == nil {
		return nil
	}
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// GetUsernameFromContext returns the username of the user in ctx, or "".
func GetUsernameFromContext(ctx context.Context) string {
	if user := GetUserFromContext(ctx); user != nil {
		return user.Username
	}
	return ""
}

// GetUserIDFromContext returns the id of the user in ctx, or "".
func GetUserIDFromContext(ctx context.Context) string {
	if user := GetUserFromContext(ctx); user != nil {
		return user.ID
	}
	return ""
}
