package middleware

import (
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
)

// AuditAccess queues an ACCESS_SERVICE entry for every authenticated API call.
// Use after RequireAuth.
func AuditAccess(audit *services.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		user := GetUser(c)
		if user == nil {
			return
		}
		entry := services.AuditLogEntry{
			EventType:     models.EventAccessService,
			ActorUserID:   user.ID,
			ActorUsername: user.Username,
			ActorIP:       c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
			RequestPath:   c.FullPath(),
			RequestMethod: c.Request.Method,
			Action:        c.Request.Method + " " + c.FullPath(),
			Details:       models.AuditDetails{"status": c.Writer.Status()},
			Success:       c.Writer.Status() < 400,
		}
		if claims := GetClaims(c); claims != nil {
			entry.ResourceType = models.ResourceService
			entry.ResourceName = claims.Service
		}
		audit.Log(c.Request.Context(), entry)
	}
}
