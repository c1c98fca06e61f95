package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGrant(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Grant
	}{
		{
			name:  "exact permission",
			input: "client:read",
			want:  Grant{Kind: GrantExact, Resource: "client", Action: "read"},
		},
		{
			name:  "resource wildcard",
			input: "invoice:*",
			want:  Grant{Kind: GrantResourceWildcard, Resource: "invoice"},
		},
		{
			name:  "global wildcard",
			input: "*:*",
			want:  Grant{Kind: GrantGlobalWildcard},
		},
		{
			name:  "bare star",
			input: "*",
			want:  Grant{Kind: GrantGlobalWildcard},
		},
		{
			name:  "no separator",
			input: "client",
			want:  Grant{Kind: GrantExact, Resource: "client"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseGrant(tt.input))
		})
	}
}

func TestGrantSetAllows(t *testing.T) {
	tests := []struct {
		name     string
		grants   []string
		resource string
		action   string
		want     bool
	}{
		{
			name:     "exact match",
			grants:   []string{"client:read"},
			resource: "client",
			action:   "read",
			want:     true,
		},
		{
			name:     "exact does not cover sibling action",
			grants:   []string{"client:read"},
			resource: "client",
			action:   "delete",
			want:     false,
		},
		{
			name:     "resource wildcard covers all actions on that resource",
			grants:   []string{"invoice:*"},
			resource: "invoice",
			action:   "send",
			want:     true,
		},
		{
			name:     "resource wildcard does not leak to other resources",
			grants:   []string{"invoice:*"},
			resource: "client",
			action:   "read",
			want:     false,
		},
		{
			name:     "global wildcard covers everything",
			grants:   []string{"*:*"},
			resource: "payment_credential",
			action:   "delete",
			want:     true,
		},
		{
			name:     "empty set denies",
			grants:   nil,
			resource: "client",
			action:   "read",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewGrantSet(tt.grants)
			assert.Equal(t, tt.want, set.Allows(tt.resource, tt.action))
		})
	}
}

func TestGrantSetLen(t *testing.T) {
	set := NewGrantSet([]string{"client:read", "client:update", "invoice:*", "*:*"})
	assert.Equal(t, 4, set.Len())
}

// Each system role's grant set must cover everything the next role down can
// do. A promotion should never take a capability away.
func TestSystemRolesMonotonic(t *testing.T) {
	for i := 0; i < len(SystemRoles)-1; i++ {
		higher := NewGrantSet(SystemRoles[i].Grants)
		lower := SystemRoles[i+1]

		for _, raw := range lower.Grants {
			g := ParseGrant(raw)
			switch g.Kind {
			case GrantExact:
				assert.True(t, higher.Allows(g.Resource, g.Action),
					"%s should allow %s held by %s", SystemRoles[i].Name, raw, lower.Name)
			case GrantResourceWildcard:
				for _, action := range Catalog[g.Resource] {
					assert.True(t, higher.Allows(g.Resource, action),
						"%s should allow %s:%s held by %s", SystemRoles[i].Name, g.Resource, action, lower.Name)
				}
			}
		}
	}
}

func TestSystemRolesPriorityOrdering(t *testing.T) {
	for i := 0; i < len(SystemRoles)-1; i++ {
		assert.Greater(t, SystemRoles[i].Priority, SystemRoles[i+1].Priority)
	}
}

// Every grant in the seed catalog must name a known resource and action.
func TestSystemRolesGrantsInCatalog(t *testing.T) {
	for _, role := range SystemRoles {
		for _, raw := range role.Grants {
			g := ParseGrant(raw)
			if g.Kind == GrantGlobalWildcard {
				continue
			}
			actions, ok := Catalog[g.Resource]
			assert.True(t, ok, "role %s grants unknown resource %q", role.Name, g.Resource)
			if g.Kind == GrantExact {
				assert.Contains(t, actions, g.Action,
					"role %s grants unknown action %q on %q", role.Name, g.Action, g.Resource)
			}
		}
	}
}
