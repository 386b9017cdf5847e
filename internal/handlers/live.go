package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/middleware"
	"github.com/go-authgate/identitygate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHeartbeat = 25 * time.Second

// LiveHandler serves the per-service event stream and delivery log.
type LiveHandler struct {
	registry   *livechannel.Registry
	dispatcher *services.Dispatcher
	heartbeat  time.Duration
	logger     *zap.Logger
}

func NewLiveHandler(
	registry *livechannel.Registry,
	dispatcher *services.Dispatcher,
	heartbeat time.Duration,
) *LiveHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &LiveHandler{
		registry:   registry,
		dispatcher: dispatcher,
		heartbeat:  heartbeat,
		logger:     zap.L().Named("live"),
	}
}

// Stream godoc
//
//	@Summary		Live login events
//	@Description	Holds a Server-Sent Events connection for the calling service. Login events are written as they are dispatched.
//	@Tags			Services
//	@Produce		text/event-stream
//	@Security		ServiceBearer
//	@Success		200	{string}	string
//	@Failure		401	{object}	object{success=bool,message=string,error=string}
//	@Router			/live [get]
func (h *LiveHandler) Stream(c *gin.Context) {
	svc := middleware.GetService(c)
	conn := h.registry.Register(svc.ID)
	defer h.registry.Deregister(conn)

	h.logger.Info("live channel opened", zap.String("service", svc.Name))
	defer h.logger.Info("live channel closed", zap.String("service", svc.Name))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"service": svc.Name})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-conn.Done():
			return false
		case msg := <-conn.Messages():
			c.SSEvent(msg.Event, string(msg.Data))
			return true
		case <-heartbeat.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			return err == nil
		}
	})
}

// HookLogs godoc
//
//	@Summary		Webhook delivery log
//	@Description	Lists the calling service's delivery attempts, newest first
//	@Tags			Services
//	@Produce		json
//	@Security		ServiceBearer
//	@Param			page		query		int	false	"Page number"		default(1)
//	@Param			page_size	query		int	false	"Items per page"	default(20)
//	@Success		200			{object}	object{success=bool,logs=[]object,pagination=object}
//	@Failure		401			{object}	object{success=bool,message=string,error=string}
//	@Router			/services/hook-logs [get]
func (h *LiveHandler) HookLogs(c *gin.Context) {
	svc := middleware.GetService(c)
	logs, page, err := h.dispatcher.ListHookLogs(c.Request.Context(), svc.ID, paginationFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"logs":       logs,
		"pagination": page,
	})
}
