package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUser_Permissions(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	user := &User{Role: RoleUser}
	unknown := &User{Role: "guest"}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.HasPermission(PermManageKeys))
	assert.True(t, admin.HasPermission(PermReadAudit))
	assert.False(t, user.HasPermission(PermReadAudit))
	assert.True(t, user.HasPermission(PermReadUser))
	assert.False(t, user.HasPermission(PermReadKeys))
	assert.False(t, unknown.HasPermission(PermReadUser))
	assert.Empty(t, unknown.Permissions())
}

func TestUser_HasPassword(t *testing.T) {
	empty := ""
	hash := "$2a$10$abc"

	assert.False(t, (&User{}).HasPassword())
	assert.False(t, (&User{PasswordHash: &empty}).HasPassword())
	assert.True(t, (&User{PasswordHash: &hash}).HasPassword())
}

func TestService_IsAvailable(t *testing.T) {
	var missing *Service
	assert.False(t, missing.IsAvailable())
	assert.False(t, (&Service{Public: false}).IsAvailable())
	assert.True(t, (&Service{Public: true}).IsAvailable())

	deleted := &Service{Public: true, DeletedAt: gorm.DeletedAt{Valid: true}}
	assert.False(t, deleted.IsAvailable())
}

func TestStringList_ValueScan(t *testing.T) {
	v, err := StringList{"http://a/hook", "http://b/hook"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["http://a/hook","http://b/hook"]`, v)

	var nilList StringList
	v, err = nilList.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var scanned StringList
	require.NoError(t, scanned.Scan([]byte(`["x"]`)))
	assert.Equal(t, StringList{"x"}, scanned)
	require.NoError(t, scanned.Scan(`["y","z"]`))
	assert.Equal(t, StringList{"y", "z"}, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)
	assert.Error(t, scanned.Scan(42))
}

func TestAuditDetails_Scan(t *testing.T) {
	var d AuditDetails
	require.NoError(t, d.Scan(`{"service":"blog"}`))
	assert.Equal(t, "blog", d["service"])
	assert.Error(t, d.Scan(3.14))
}
