package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-authgate/identitygate/internal/services"
	"github.com/go-authgate/identitygate/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorResponse is the body of every failed API call
type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func respondFailure(c *gin.Context, status int, message, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Success: false,
		Message: message,
		Error:   detail,
	})
}

// respondError maps a service error onto its HTTP status. Internal errors are
// logged with detail and answered with a generic body.
func respondError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "Internal Server Error"
	switch {
	case errors.Is(err, services.ErrValidation):
		status, message = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, services.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrConflict):
		status, message = http.StatusConflict, "Conflict"
	case errors.Is(err, services.ErrUnavailable):
		status, message = http.StatusServiceUnavailable, "Service unavailable"
	}

	if status == http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondFailure(c, status, message, "An unexpected error occurred")
		return
	}
	respondFailure(c, status, message, err.Error())
}

func requestMeta(c *gin.Context) services.RequestMeta {
	return services.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	}
}

// paginationFromQuery reads page and page_size; out-of-range values are clamped.
func paginationFromQuery(c *gin.Context) store.PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(store.DefaultPageSize)))
	return store.NewPaginationParams(page, pageSize, c.Query("search"))
}
