package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/version"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Health godoc
//
//	@Summary		Health check
//	@Description	Reports database reachability and the running version
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	object{status=string,database=string,version=string}
//	@Failure		503	{object}	object{status=string,database=string}
//	@Router			/health [get]
func Health(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": "ok",
			"version":  version.String(),
		})
	}
}
