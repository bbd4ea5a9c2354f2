package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/user-admin-service/internal/domain"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.Role
		ok   bool
	}{
		{raw: "staff", want: domain.RoleStaff, ok: true},
		{raw: "admin", want: domain.RoleAdmin, ok: true},
		{raw: " Admin ", want: domain.RoleAdmin, ok: true},
		{raw: "owner", want: domain.RoleNone, ok: false},
		{raw: "", want: domain.RoleNone, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := domain.ParseRole(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCaller(t *testing.T) {
	assert.False(t, domain.Anonymous().Authenticated)
	assert.False(t, domain.Anonymous().IsAdmin())

	admin := domain.NewCaller("uid-1", domain.RoleAdmin)
	assert.True(t, admin.Authenticated)
	assert.True(t, admin.IsAdmin())

	staff := domain.NewCaller("uid-2", domain.RoleStaff)
	assert.False(t, staff.IsAdmin())

	assert.False(t, domain.NewCaller("", domain.RoleAdmin).Authenticated)
}
