package store

import (
	"context"
	"time"

	"github.com/go-authgate/identitygate/internal/models"
)

// CreateAuditLog writes a single audit entry
func (s *Store) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// CreateAuditLogBatch writes entries in batches of 100
func (s *Store) CreateAuditLogBatch(ctx context.Context, entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

// GetAuditLogsPaginated returns audit entries matching filters, newest first
func (s *Store) GetAuditLogsPaginated(
	ctx context.Context,
	params PaginationParams,
	filters AuditLogFilters,
) ([]models.AuditLog, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Scopes(filters.Scope())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.AuditLog
	err := query.Order("event_time DESC").
		Offset(params.offset()).
		Limit(params.PageSize).
		Find(&logs).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}
	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// DeleteOldAuditLogs removes audit entries created before cutoff
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
