package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// EventType is the action tag of an audit entry
type EventType string

const (
	EventLogin           EventType = "LOGIN"
	EventAccessService   EventType = "ACCESS_SERVICE"
	EventLogout          EventType = "LOGOUT"
	EventRegister        EventType = "REGISTER"
	EventLoginFailure    EventType = "LOGIN_FAILURE"
	EventTokenRefreshed  EventType = "TOKEN_REFRESHED"
	EventKeysGenerated   EventType = "KEYS_GENERATED"
	EventServiceGranted  EventType = "SERVICE_GRANTED"
	EventServiceCreated  EventType = "SERVICE_CREATED"
	EventServiceDeleted  EventType = "SERVICE_DELETED"
	EventUserCreated     EventType = "USER_CREATED"
	EventRateLimitExceed EventType = "RATE_LIMIT_EXCEEDED"
)

type EventSeverity string

const (
	SeverityInfo    EventSeverity = "INFO"
	SeverityWarning EventSeverity = "WARNING"
	SeverityError   EventSeverity = "ERROR"
)

// ResourceType names what an entry is about
type ResourceType string

const (
	ResourceUser    ResourceType = "USER"
	ResourceService ResourceType = "SERVICE"
	ResourceKey     ResourceType = "KEY"
	ResourceToken   ResourceType = "TOKEN"
)

// AuditDetails is free-form event context, stored as a JSON object.
// Values are masked by the audit service before they get here.
type AuditDetails map[string]any

// Value stores nil details as SQL NULL
func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // NULL column
	}
	return json.Marshal(a)
}

func (a *AuditDetails) Scan(value any) error {
	details := make(AuditDetails)
	ok, err := scanJSON("AuditDetails", value, &details)
	if err != nil {
		return err
	}
	if !ok {
		details = nil
	}
	*a = details
	return nil
}

// AuditLog is an append-only record of an authentication-relevant action
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	EventTime time.Time     `gorm:"index;not null"                  json:"event_time"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	ActorUserID   string `gorm:"type:varchar(36);index" json:"actor_user_id"`
	ActorUsername string `gorm:"type:varchar(100)"      json:"actor_username"`
	ActorIP       string `gorm:"type:varchar(45);index" json:"actor_ip"`

	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(64);index" json:"resource_id"`
	ResourceName string       `gorm:"type:varchar(255)"      json:"resource_name"`

	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	UserAgent     string `gorm:"type:varchar(500)" json:"user_agent,omitempty"`
	RequestPath   string `gorm:"type:varchar(500)" json:"request_path,omitempty"`
	RequestMethod string `gorm:"type:varchar(10)"  json:"request_method,omitempty"`

	// No UpdatedAt: entries are immutable
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
