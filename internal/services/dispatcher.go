package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-authgate/identitygate/internal/core"
	"github.com/go-authgate/identitygate/internal/livechannel"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/token"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Login event wire names
const (
	EventUserLogin = "user.login"

	HeaderHookToken     = "x-hook-token"
	HeaderHookSignature = "x-hook-signature"
)

// Delivery channels, as reported to metrics
const (
	channelLive    = "live"
	channelWebhook = "webhook"
)

const maxLoggedResponseBody = 4096

// EventUser is the user section of a login event
type EventUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Image    string `json:"image,omitempty"`
}

// LoginEvent is the payload signed and delivered to a service on login
type LoginEvent struct {
	Event     string    `json:"event"`
	User      EventUser `json:"user"`
	Service   string    `json:"service"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Timestamp string    `json:"timestamp"`
}

// Envelope is what the live channel carries. Webhooks receive Payload as the
// body and Token and Signature as headers.
type Envelope struct {
	Token     string          `json:"token"`
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

// Dispatcher delivers signed login events to a service's live channel and webhooks.
type Dispatcher struct {
	registry *RegistryService
	store    *store.Store
	live     *livechannel.Registry
	client   *retry.Client
	metrics  core.Recorder
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. live may be nil when no live channels are served.
func NewDispatcher(
	registry *RegistryService,
	s *store.Store,
	live *livechannel.Registry,
	client *retry.Client,
	m core.Recorder,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.L()
	}
	if tokenTTL <= 0 {
		tokenTTL = 5 * time.Minute
	}
	return &Dispatcher{
		registry: registry,
		store:    s,
		live:     live,
		client:   client,
		metrics:  m,
		tokenTTL: tokenTTL,
		logger:   logger.Named("dispatcher"),
	}
}

// DispatchLoginNotification signs a login event for user and delivers it to the
// named service: the live channel first when one is connected, then every
// webhook URL in order. Each attempt writes exactly one hook log row. It
// reports whether at least one attempt was accepted; the error is non-nil only
// when nothing could be attempted.
func (d *Dispatcher) DispatchLoginNotification(
	ctx context.Context,
	user *models.User,
	serviceName, ip, userAgent string,
) (bool, error) {
	svc, err := d.registry.FindByName(ctx, serviceName)
	if err != nil {
		return false, err
	}
	if svc == nil {
		return false, fmt.Errorf("%w: %q", ErrServiceNotFound, serviceName)
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(LoginEvent{
		Event: EventUserLogin,
		User: EventUser{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Image:    user.Image,
		},
		Service:   svc.Name,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode login event: %w", err)
	}

	hookToken, err := token.SignHookToken(svc.HookSecret, token.HookClaims{
		UserID:    user.ID,
		Service:   svc.Name,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: now.UnixMilli(),
	}, d.tokenTTL)
	if err != nil {
		return false, err
	}
	signature := token.SignPayload(svc.HookSecret, payload)

	// Log rows must be written even if the request goes away mid-dispatch
	logCtx := context.WithoutCancel(ctx)
	accepted := 0

	if d.live != nil && d.live.Connected(svc.ID) {
		if d.deliverLive(ctx, logCtx, svc, Envelope{
			Token:     hookToken,
			Signature: signature,
			Payload:   payload,
		}) {
			accepted++
		}
	}

	for _, url := range svc.MicroServicesURLs {
		if d.deliverWebhook(ctx, logCtx, svc, url, payload, hookToken, signature) {
			accepted++
		}
	}

	d.logger.Info("login notification dispatched",
		zap.String("service", svc.Name),
		zap.String("user_id", user.ID),
		zap.Int("accepted", accepted),
		zap.Int("webhooks", len(svc.MicroServicesURLs)),
	)
	return accepted > 0, nil
}

func (d *Dispatcher) deliverLive(
	ctx, logCtx context.Context,
	svc *models.Service,
	env Envelope,
) bool {
	data, err := json.Marshal(env)
	if err != nil {
		d.writeLog(logCtx, &models.HookLog{
			ServiceID:    svc.ID,
			URL:          models.LiveChannelTarget,
			Status:       models.HookStatusFailure,
			ErrorMessage: err.Error(),
		})
		return false
	}

	start := time.Now()
	err = d.live.Send(ctx, svc.ID, livechannel.Message{Event: EventUserLogin, Data: data})
	d.metrics.RecordHookDelivery(channelLive, err == nil, time.Since(start))

	entry := &models.HookLog{
		ServiceID:   svc.ID,
		URL:         models.LiveChannelTarget,
		RequestBody: string(env.Payload),
	}
	if err != nil {
		entry.Status = models.HookStatusFailure
		entry.ErrorMessage = err.Error()
		d.logger.Warn("live channel delivery failed",
			zap.String("service", svc.Name),
			zap.Error(err),
		)
	} else {
		entry.Status = models.HookStatusSuccess
		entry.StatusCode = http.StatusOK
	}
	d.writeLog(logCtx, entry)
	return err == nil
}

func (d *Dispatcher) deliverWebhook(
	ctx, logCtx context.Context,
	svc *models.Service,
	url string,
	payload []byte,
	hookToken, signature string,
) bool {
	entry := &models.HookLog{
		ServiceID:   svc.ID,
		URL:         url,
		RequestBody: string(payload),
		Status:      models.HookStatusFailure,
	}

	start := time.Now()
	resp, err := d.client.Post(
		ctx,
		url,
		retry.WithBody("application/json", bytes.NewReader(payload)),
		retry.WithHeader(HeaderHookToken, hookToken),
		retry.WithHeader(HeaderHookSignature, signature),
	)
	if resp != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedResponseBody))
		_ = resp.Body.Close()
		entry.StatusCode = resp.StatusCode
		entry.ResponseBody = string(body)
	}
	switch {
	case err != nil:
		// Network errors leave the status code at 0
		entry.ErrorMessage = err.Error()
	case resp == nil:
		entry.ErrorMessage = "no response"
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		entry.Status = models.HookStatusSuccess
	default:
		entry.ErrorMessage = "unexpected status " + resp.Status
	}

	ok := entry.Succeeded()
	d.metrics.RecordHookDelivery(channelWebhook, ok, time.Since(start))
	if !ok {
		d.logger.Warn("webhook delivery failed",
			zap.String("service", svc.Name),
			zap.String("url", url),
			zap.Int("status_code", entry.StatusCode),
			zap.String("error", entry.ErrorMessage),
		)
	}
	d.writeLog(logCtx, entry)
	return ok
}

// writeLog persists one attempt. A failed write is logged with the attempt's outcome
// so it stays visible in the application log.
func (d *Dispatcher) writeLog(ctx context.Context, entry *models.HookLog) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now()
	if err := d.store.CreateHookLog(ctx, entry); err != nil {
		d.metrics.RecordDatabaseQueryError("create_hook_log")
		d.logger.Error("failed to write hook log",
			zap.String("service_id", entry.ServiceID),
			zap.String("url", entry.URL),
			zap.String("status", entry.Status),
			zap.Error(err),
		)
	}
}

// ListHookLogs returns the delivery log of a service, newest first
func (d *Dispatcher) ListHookLogs(
	ctx context.Context,
	serviceID string,
	params store.PaginationParams,
) ([]models.HookLog, store.PaginationResult, error) {
	return d.store.ListHookLogs(ctx, serviceID, params)
}

// CleanupOldLogs deletes hook logs older than retention
func (d *Dispatcher) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return d.store.DeleteHookLogsBefore(ctx, time.Now().Add(-retention))
}
