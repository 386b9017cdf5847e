package models

import (
	"slices"
	"time"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Permissions
const (
	PermReadUser   = "read:user"
	PermManageUser = "manage:user"
	PermReadKeys   = "read:keys"
	PermManageKeys = "manage:keys"
	PermReadAudit  = "read:audit"

	PermManageServices = "manage:services"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {
		PermReadUser, PermManageUser,
		PermReadKeys, PermManageKeys,
		PermReadAudit, PermManageServices,
	},
	RoleUser:  {PermReadUser},
}

type User struct {
	ID           string  `gorm:"primaryKey"              json:"id"`
	Username     string  `gorm:"uniqueIndex;not null"    json:"username"`
	Email        string  `gorm:"uniqueIndex;not null"    json:"email"`
	PasswordHash *string `json:"-"` // nil for users who only sign in through a provider
	Role         string  `gorm:"not null;default:'user'" json:"role"`
	Image        string  `json:"image,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasPassword reports whether the user can sign in with local credentials
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Permissions returns the static permission set of the user's role
func (u *User) Permissions() []string {
	return rolePermissions[u.Role]
}

// HasPermission reports whether the user's role grants perm
func (u *User) HasPermission(perm string) bool {
	return slices.Contains(rolePermissions[u.Role], perm)
}
