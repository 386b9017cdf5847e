package models

import "time"

// Hook delivery outcomes
const (
	HookStatusSuccess = "success"
	HookStatusFailure = "failed"

	// LiveChannelTarget is recorded as the URL of live channel attempts
	LiveChannelTarget = "live-channel"
)

// HookLog is one delivery attempt of a login event. Rows are never updated.
type HookLog struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"   json:"id"`
	ServiceID    string    `gorm:"type:varchar(36);index;not null" json:"service_id"`
	URL          string    `gorm:"type:varchar(2048);not null"   json:"url"`
	Status       string    `gorm:"type:varchar(20);not null"     json:"status"`
	StatusCode   int       `                                     json:"status_code"`
	RequestBody  string    `gorm:"type:text"                     json:"request_body"`
	ResponseBody string    `gorm:"type:text"                     json:"response_body,omitempty"`
	ErrorMessage string    `gorm:"type:text"                     json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index;not null"                json:"created_at"`
}

func (HookLog) TableName() string {
	return "hook_logs"
}

// Succeeded reports whether the attempt was accepted by the target
func (h *HookLog) Succeeded() bool {
	return h.Status == HookStatusSuccess
}
