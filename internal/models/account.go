package models

import (
	"time"
)

// Account links a user to an identity at an external OAuth provider
type Account struct {
	ID                string `gorm:"primaryKey"                                                           json:"id"`
	UserID            string `gorm:"not null;index"                                                       json:"user_id"`
	Provider          string `gorm:"not null;uniqueIndex:idx_account_provider_id,priority:1"              json:"provider"` // "discord", "github", "google"
	ProviderAccountID string `gorm:"column:provider_account_id;not null;uniqueIndex:idx_account_provider_id,priority:2" json:"provider_account_id"`

	// Profile snapshot at link time
	ProviderUsername string `json:"provider_username"`
	ProviderEmail    string `json:"provider_email"`
	ProviderImage    string `json:"provider_image"`

	LastUsedAt time.Time `json:"last_used_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}
