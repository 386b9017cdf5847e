package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-authgate/identitygate/internal/config"
	"github.com/go-authgate/identitygate/internal/models"
	"github.com/go-authgate/identitygate/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecord_MasksSensitiveDetails(t *testing.T) {
	s := setupTestStore(t)
	a := newTestAudit(t, s, config.AuditPolicyBestEffort)

	err := a.Record(context.Background(), AuditLogEntry{
		EventType:   models.EventLogin,
		ActorUserID: "u1",
		Details: models.AuditDetails{
			"password":     "hunter22",
			"refreshToken": "abc",
			"jti":          "0123456789abcdef",
			"provider":     "github",
		},
		Success: true,
	})
	require.NoError(t, err)

	logs := auditEvents(t, s, models.EventLogin)
	require.Len(t, logs, 1)
	details := logs[0].Details
	assert.Equal(t, "***REDACTED***", details["password"])
	assert.Equal(t, "***REDACTED***", details["refreshToken"])
	assert.Equal(t, "01234567...cdef", details["jti"])
	assert.Equal(t, "github", details["provider"])
	assert.Equal(t, models.SeverityInfo, logs[0].Severity)
	assert.Equal(t, string(models.EventLogin), logs[0].Action)
}

func TestAuditRecord_FailurePolicy(t *testing.T) {
	entry := AuditLogEntry{EventType: models.EventLogin, Success: true}

	s := setupTestStore(t)
	bestEffort := newTestAudit(t, s, config.AuditPolicyBestEffort)
	fatal := newTestAudit(t, s, config.AuditPolicyFatal)

	// writes fail once the database is closed
	require.NoError(t, s.Close(context.Background()))

	assert.NoError(t, bestEffort.Record(context.Background(), entry))
	assert.Error(t, fatal.Record(context.Background(), entry))
}

func TestAuditLog_FlushedOnShutdown(t *testing.T) {
	s := setupTestStore(t)
	a := NewAuditService(s, config.AuditPolicyBestEffort, 16)

	for range 3 {
		a.Log(context.Background(), AuditLogEntry{EventType: models.EventAccessService, Success: true})
	}
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Len(t, auditEvents(t, s, models.EventAccessService), 3)

	// entries after shutdown are dropped, not blocked on
	a.Log(context.Background(), AuditLogEntry{EventType: models.EventAccessService, Success: true})
}

func TestAuditCleanupOldLogs(t *testing.T) {
	s := setupTestStore(t)
	a := newTestAudit(t, s, config.AuditPolicyBestEffort)
	ctx := context.Background()

	old := &models.AuditLog{
		ID:        "old",
		EventType: models.EventLogin,
		EventTime: time.Now().Add(-48 * time.Hour),
		Severity:  models.SeverityInfo,
		Action:    "LOGIN",
		Success:   true,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, s.CreateAuditLog(ctx, old))
	require.NoError(t, a.Record(ctx, AuditLogEntry{EventType: models.EventLogin, Success: true}))

	deleted, err := a.CleanupOldLogs(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	logs, page, err := a.GetAuditLogs(ctx, store.NewPaginationParams(1, 10, ""), store.AuditLogFilters{})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.EqualValues(t, 1, page.Total)
}
