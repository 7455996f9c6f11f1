package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/admissions/core"
)

func TestNewSet(t *testing.T) {
	tests := []struct {
		name        string
		role        string
		permissions map[string]bool
		want        []Capability
		wantAdmin   bool
	}{
		{name: "nothing", role: "counselor"},
		{
			name:        "explicit grants only",
			role:        "counselor",
			permissions: map[string]bool{"leads.edit": true, "leads.create": true, "leads.delete": false, "bogus.perm": true},
			want:        []Capability{LeadsCreate, LeadsEdit},
		},
		{name: "wildcard", role: "manager", permissions: map[string]bool{"*": true}, want: allCaps()},
		{name: "wildcard false", role: "manager", permissions: map[string]bool{"*": false}},
		{name: "admin role", role: " Admin ", want: allCaps(), wantAdmin: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSet(tt.role, tt.permissions)
			if tt.want == nil {
				tt.want = []Capability{}
			}
			assert.Equal(t, tt.want, s.List())
			assert.Equal(t, tt.wantAdmin, s.IsAdmin())
		})
	}
}

func allCaps() []Capability {
	var caps []Capability
	for _, g := range Groups {
		for _, p := range g.Permissions {
			caps = append(caps, p.Capability)
		}
	}
	return caps
}

func TestSet_Require(t *testing.T) {
	s := NewSet("counselor", map[string]bool{"leads.edit": true})
	assert.NoError(t, s.Require(LeadsEdit))

	err := s.Require(LeadsAssign)
	assert.True(t, core.IsForbidden(err))
	assert.Contains(t, err.Error(), "leads.assign")
	assert.True(t, core.IsForbidden(s.RequireAdmin()))

	var zero Set
	assert.False(t, zero.Has(LeadsEdit))
	assert.False(t, All("manager").Has("unknown.cap"))
	assert.NoError(t, All("admin").RequireAdmin())
}

func TestMap(t *testing.T) {
	m := Map([]Capability{LeadsEdit, ReportsView})
	assert.Equal(t, map[string]bool{"leads.edit": true, "reports.view": true}, m)
	assert.Equal(t, []Capability{LeadsEdit, ReportsView}, NewSet("", m).List())
}
