package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdminSet_RoleOf(t *testing.T) {
	admins := AdminSet{"root@example.com": {}}

	assert.Equal(t, RoleAdmin, admins.RoleOf("root@example.com"))
	assert.Equal(t, RoleUser, admins.RoleOf("a@example.com"))
	assert.Equal(t, RoleUser, AdminSet(nil).RoleOf("root@example.com"))
}
