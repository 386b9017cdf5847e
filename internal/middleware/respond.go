package middleware

import "github.com/gin-gonic/gin"

// abortWithError writes the error body shared with the handlers and stops the chain.
func abortWithError(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   detail,
	})
}
