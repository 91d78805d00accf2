package db

import (
	"testing"

	"spendwatch-server/src/anomaly"

	"github.com/stretchr/testify/assert"
)

func TestCheckRole(t *testing.T) {
	tests := []struct {
		role    anomaly.Role
		minimum anomaly.Role
		allowed bool
	}{
		{anomaly.RoleViewer, anomaly.RoleViewer, true},
		{anomaly.RoleOwner, anomaly.RoleViewer, true},
		{anomaly.RoleMember, anomaly.RoleAdmin, false},
		{anomaly.RoleAdmin, anomaly.RoleAdmin, true},
		{anomaly.Role("guest"), anomaly.RoleViewer, false},
		{anomaly.Role(""), anomaly.Role(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.minimum), func(t *testing.T) {
			err := CheckRole(tt.role, tt.minimum)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, anomaly.ErrForbidden)
		})
	}
}
