package store

import (
	"strings"
	"time"

	"github.com/go-authgate/identitygate/internal/models"

	"gorm.io/gorm"
)

// AuditLogFilters narrows an audit query. Zero fields do not filter.
type AuditLogFilters struct {
	EventType    models.EventType
	ActorUserID  string
	ResourceType models.ResourceType
	ResourceID   string
	Severity     models.EventSeverity
	Success      *bool
	StartTime    time.Time
	EndTime      time.Time
	ActorIP      string

	// Search is a case-insensitive substring of action, resource name or actor username
	Search string
}

// Scope returns the filters as a gorm scope over audit_logs.
func (f AuditLogFilters) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for column, value := range map[string]string{
			"event_type":    string(f.EventType),
			"actor_user_id": f.ActorUserID,
			"resource_type": string(f.ResourceType),
			"resource_id":   f.ResourceID,
			"severity":      string(f.Severity),
			"actor_ip":      f.ActorIP,
		} {
			if value != "" {
				db = db.Where(column+" = ?", value)
			}
		}
		if f.Success != nil {
			db = db.Where("success = ?", *f.Success)
		}
		if !f.StartTime.IsZero() {
			db = db.Where("event_time >= ?", f.StartTime)
		}
		if !f.EndTime.IsZero() {
			db = db.Where("event_time <= ?", f.EndTime)
		}
		if f.Search != "" {
			like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
			db = db.Where(
				`(LOWER(action) LIKE ? ESCAPE '\' OR LOWER(resource_name) LIKE ? ESCAPE '\' OR LOWER(actor_username) LIKE ? ESCAPE '\')`,
				like, like, like,
			)
		}
		return db
	}
}
