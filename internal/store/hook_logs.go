package store

import (
	"context"
	"time"

	"github.com/go-authgate/identitygate/internal/models"
)

// CreateHookLog appends one delivery attempt
func (s *Store) CreateHookLog(ctx context.Context, entry *models.HookLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListHookLogs returns the delivery attempts of a service, newest first
func (s *Store) ListHookLogs(
	ctx context.Context,
	serviceID string,
	params PaginationParams,
) ([]models.HookLog, PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.HookLog{}).Where("service_id = ?", serviceID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var logs []models.HookLog
	err := query.Order("created_at DESC").
		Offset(params.offset()).
		Limit(params.PageSize).
		Find(&logs).Error
	if err != nil {
		return nil, PaginationResult{}, err
	}
	return logs, CalculatePagination(total, params.Page, params.PageSize), nil
}

// CountHookLogs counts the delivery attempts recorded for a service
func (s *Store) CountHookLogs(ctx context.Context, serviceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.HookLog{}).
		Where("service_id = ?", serviceID).
		Count(&count).Error
	return count, err
}

// DeleteHookLogsBefore removes delivery attempts older than cutoff
func (s *Store) DeleteHookLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.HookLog{})
	return result.RowsAffected, result.Error
}
