package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveWithoutSessionAlwaysLogin(t *testing.T) {
	for _, role := range []string{"", "admin", "ADMIN", "parent", "teacher", "  Parent "} {
		assert.Equal(t, DestinationLogin, Resolve(false, role), role)
	}
}

func TestResolveWithSession(t *testing.T) {
	cases := map[string]Destination{
		"admin":      DestinationAdminDashboard,
		"Admin":      DestinationAdminDashboard,
		"ADMIN":      DestinationAdminDashboard,
		"parent":     DestinationParentDashboard,
		" PaReNt ":   DestinationParentDashboard,
		"teacher":    DestinationLogin,
		"":           DestinationLogin,
		"superadmin": DestinationLogin,
	}
	for role, want := range cases {
		assert.Equal(t, want, Resolve(true, role), role)
	}
}

func TestParseRoleString(t *testing.T) {
	assert.Equal(t, "admin", ParseRole("AdMiN").String())
	assert.Equal(t, "parent", ParseRole("parent").String())
	assert.Equal(t, "unknown", ParseRole("staff").String())
}
