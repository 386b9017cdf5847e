package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// StringList is an ordered list of strings stored as a JSON array. The
// order of webhook URLs is the delivery order.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	var list []string
	ok, err := scanJSON("StringList", value, &list)
	if err != nil {
		return err
	}
	if !ok {
		list = nil
	}
	*l = list
	return nil
}

// Service is a tenant application that consumes identities issued by the gateway
type Service struct {
	ID                string     `gorm:"primaryKey"                        json:"id"`
	Name              string     `gorm:"not null;index"                    json:"name"`
	Public            bool       `gorm:"not null;default:false"            json:"public"`
	MicroServicesURLs StringList `gorm:"column:micro_services_urls;type:text" json:"micro_services_urls"`
	HookSecret        string     `gorm:"not null"                          json:"-"`
	BearerToken       string     `gorm:"index"                             json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAvailable reports whether the service accepts OAuth logins
func (s *Service) IsAvailable() bool {
	return s != nil && s.Public && !s.DeletedAt.Valid
}

// UserService records that a user is entitled to a service
type UserService struct {
	ID        string    `gorm:"primaryKey"                                            json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_user_service,priority:1"      json:"user_id"`
	ServiceID string    `gorm:"not null;uniqueIndex:idx_user_service,priority:2;index" json:"service_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserService) TableName() string {
	return "user_services"
}
