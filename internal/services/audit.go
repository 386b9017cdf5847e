package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"
	"github.com/go-authgate/identitygate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	auditBatchSize     = 100
	auditFlushInterval = time.Second
	defaultAuditBuffer = 1000
)

// AuditLogEntry is what callers describe; buildEntry fills in the rest.
type AuditLogEntry struct {
	EventType     models.EventType
	Severity      models.EventSeverity
	ActorUserID   string
	ActorUsername string
	ActorIP       string
	ResourceType  models.ResourceType
	ResourceID    string
	ResourceName  string
	Action        string
	Details       models.AuditDetails
	Success       bool
	ErrorMessage  string
	UserAgent     string
	RequestPath   string
	RequestMethod string
}

// AuditService persists the audit trail. Authentication events are written
// synchronously through Record under the configured failure policy; the
// per-request ACCESS_SERVICE entries go through Log, which queues them for a
// single writer goroutine that inserts in batches.
type AuditService struct {
	store  *store.Store
	policy string
	logger *zap.Logger

	queue   chan *models.AuditLog
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewAuditService starts the batch writer. policy is
// config.AuditPolicyBestEffort (the default) or config.AuditPolicyFatal.
func NewAuditService(s *store.Store, policy string, bufferSize int) *AuditService {
	if bufferSize <= 0 {
		bufferSize = defaultAuditBuffer
	}
	if policy == "" {
		policy = config.AuditPolicyBestEffort
	}

	a := &AuditService{
		store:   s,
		policy:  policy,
		logger:  zap.L().Named("audit"),
		queue:   make(chan *models.AuditLog, bufferSize),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()

	a.logger.Info("audit service started",
		zap.Int("buffer_size", bufferSize),
		zap.String("failure_policy", policy),
	)
	return a
}

// run owns the pending batch; nothing else touches it.
func (s *AuditService) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(auditFlushInterval)
	defer ticker.Stop()

	batch := make([]*models.AuditLog, 0, auditBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.store.CreateAuditLogBatch(context.Background(), batch); err != nil {
			s.logger.Error("failed to write audit log batch", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-s.queue:
			if batch = append(batch, entry); len(batch) >= auditBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			for {
				select {
				case entry := <-s.queue:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *AuditService) buildEntry(ctx context.Context, entry AuditLogEntry) *models.AuditLog {
	if entry.ActorIP == "" {
		entry.ActorIP = util.GetIPFromContext(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = util.GetUserAgentFromContext(ctx)
	}
	if entry.ActorUsername == "" {
		entry.ActorUsername = models.GetUsernameFromContext(ctx)
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
		if !entry.Success {
			entry.Severity = models.SeverityWarning
		}
	}
	if entry.Action == "" {
		entry.Action = string(entry.EventType)
	}

	now := time.Now()
	return &models.AuditLog{
		ID:            uuid.New().String(),
		EventType:     entry.EventType,
		EventTime:     now,
		Severity:      entry.Severity,
		ActorUserID:   entry.ActorUserID,
		ActorUsername: entry.ActorUsername,
		ActorIP:       entry.ActorIP,
		ResourceType:  entry.ResourceType,
		ResourceID:    entry.ResourceID,
		ResourceName:  entry.ResourceName,
		Action:        entry.Action,
		Details:       maskSensitiveDetails(entry.Details),
		Success:       entry.Success,
		ErrorMessage:  entry.ErrorMessage,
		UserAgent:     entry.UserAgent,
		RequestPath:   entry.RequestPath,
		RequestMethod: entry.RequestMethod,
		CreatedAt:     now,
	}
}

// Log queues an entry for the batch writer. It never blocks: with the queue
// full or the service stopped the entry is dropped with a warning.
func (s *AuditService) Log(ctx context.Context, entry AuditLogEntry) {
	row := s.buildEntry(ctx, entry)

	select {
	case <-s.stop:
		s.logger.Warn("audit service stopped, dropping entry", zap.String("action", row.Action))
		return
	default:
	}
	select {
	case s.queue <- row:
	default:
		s.logger.Warn("audit log buffer full, dropping entry", zap.String("action", row.Action))
	}
}

// LogSync writes an entry directly to the database
func (s *AuditService) LogSync(ctx context.Context, entry AuditLogEntry) error {
	return s.store.CreateAuditLog(ctx, s.buildEntry(ctx, entry))
}

// Record writes an entry synchronously and applies the failure policy: with
// the fatal policy a write error is returned, otherwise it is only logged.
func (s *AuditService) Record(ctx context.Context, entry AuditLogEntry) error {
	err := s.LogSync(context.WithoutCancel(ctx), entry)
	if err == nil {
		return nil
	}
	s.logger.Error("failed to write audit log",
		zap.String("event", string(entry.EventType)),
		zap.String("user_id", entry.ActorUserID),
		zap.Error(err),
	)
	if s.policy == config.AuditPolicyFatal {
		return fmt.Errorf("audit log write failed: %w", err)
	}
	return nil
}

// GetAuditLogs retrieves audit logs with pagination and filtering
func (s *AuditService) GetAuditLogs(
	ctx context.Context,
	params store.PaginationParams,
	filters store.AuditLogFilters,
) ([]models.AuditLog, store.PaginationResult, error) {
	return s.store.GetAuditLogsPaginated(ctx, params, filters)
}

// CleanupOldLogs deletes audit logs older than the retention period
func (s *AuditService) CleanupOldLogs(ctx context.Context, retention time.Duration) (int64, error) {
	return s.store.DeleteOldAuditLogs(ctx, time.Now().Add(-retention))
}

// Shutdown stops the writer once everything already queued is flushed.
func (s *AuditService) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.stop) })

	select {
	case <-s.stopped:
		s.logger.Info("audit service shut down gracefully")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit service shutdown timeout: %w", ctx.Err())
	}
}

const redacted = "***REDACTED***"

// detailRules decide how a details key is stored, by substring of its
// lowercased name: full redaction for credentials, a shortened form for
// identifiers that are useful to correlate but should not be replayable.
var detailRules = []struct {
	match   string
	partial bool
}{
	{"password", false},
	{"secret", false},
	{"token", false},
	{"signature", false},
	{"jti", true},
	{"key_id", true},
}

func maskSensitiveDetails(details models.AuditDetails) models.AuditDetails {
	if details == nil {
		return nil
	}

	masked := make(models.AuditDetails, len(details))
	for key, value := range details {
		masked[key] = maskValue(strings.ToLower(key), value)
	}
	return masked
}

func maskValue(key string, value any) any {
	for _, rule := range detailRules {
		if !strings.Contains(key, rule.match) {
			continue
		}
		if !rule.partial {
			return redacted
		}
		if str, ok := value.(string); ok && len(str) > 12 {
			return str[:8] + "..." + str[len(str)-4:]
		}
		return value
	}
	return value
}
