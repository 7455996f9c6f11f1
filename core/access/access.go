// Package access turns the permission map returned by the API into a typed capability set.
package access

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// Capability is a single permission.
type Capability string

const (
	UsersView   Capability = "users.view"
	UsersCreate Capability = "users.create"
	UsersEdit   Capability = "users.edit"
	UsersDelete Capability = "users.delete"

	LeadsViewAll        Capability = "leads.view_all"
	LeadsCreate         Capability = "leads.create"
	LeadsEdit           Capability = "leads.edit"
	LeadsDelete         Capability = "leads.delete"
	LeadsViewFinancials Capability = "leads.view_financials"
	LeadsEditPayments   Capability = "leads.edit_payments"
	LeadsAssign         Capability = "leads.assign"
	LeadsExport         Capability = "leads.export"

	FinanceView   Capability = "finance.view"
	FinanceExport Capability = "finance.export"
	ReportsView   Capability = "reports.view"

	SystemSettings     Capability = "system.settings"
	SystemIntegrations Capability = "system.integrations"

	// Wildcard grants every capability.
	Wildcard = "*"

	RoleAdmin     = "admin"
	RoleManager   = "manager"
	RoleCounselor = "counselor"
)

type (
	Permission struct {
		Capability  Capability
		Label       string
		Description string
	}

	Group struct {
		Category    string
		Permissions []Permission
	}
)

// Groups lists every capability, grouped for the role editor.
var Groups = []Group{
	{
		Category: "User Management",
		Permissions: []Permission{
			{UsersView, "View Users", "Can view all system users"},
			{UsersCreate, "Create Users", "Can add new accounts"},
			{UsersEdit, "Edit Users", "Can modify user details"},
			{UsersDelete, "Delete Users", "Can remove accounts"},
		},
	},
	{
		Category: "Leads & Pipeline",
		Permissions: []Permission{
			{LeadsViewAll, "View All Leads", "Access to global lead base"},
			{LeadsCreate, "Create Leads", "Can add new leads"},
			{LeadsEdit, "Edit Leads", "Can modify lead details"},
			{LeadsDelete, "Delete Leads", "Can remove leads"},
			{LeadsViewFinancials, "View Financials", "Access payment & revenue data"},
			{LeadsEditPayments, "Manage Payments", "Update payment status & records"},
			{LeadsAssign, "Assign Leads", "Can distribute leads to team"},
			{LeadsExport, "Export Data", "Can download lead reports"},
		},
	},
	{
		Category: "Finance & Reports",
		Permissions: []Permission{
			{FinanceView, "View Dashboards", "Access revenue & analytics"},
			{FinanceExport, "Export Reports", "Download financial statements"},
			{ReportsView, "View Reports", "Access system reports"},
		},
	},
	{
		Category: "System Configuration",
		Permissions: []Permission{
			{SystemSettings, "General Settings", "Manage global preferences"},
			{SystemIntegrations, "Manage Integrations", "Configure API & Webhooks"},
		},
	},
}

var known = func() map[Capability]int {
	m := make(map[Capability]int)
	for _, g := range Groups {
		for _, p := range g.Permissions {
			m[p.Capability] = len(m)
		}
	}
	return m
}()

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	_, ok := known[c]
	return ok
}

// Set is the immutable capability set of a session. The zero value grants nothing.
type Set struct {
	role string
	all  bool
	caps map[Capability]struct{}
}

// NewSet builds the set from the role and the permission map. Unknown and false entries are ignored.
// The wildcard and the admin role grant everything.
func NewSet(role string, permissions map[string]bool) Set {
	s := Set{role: core.CleanString(role, true /* lower */), caps: make(map[Capability]struct{})}
	if s.role == RoleAdmin || permissions[Wildcard] {
		s.all = true
	}
	for p, granted := range permissions {
		c := Capability(p)
		if granted && c.Valid() {
			s.caps[c] = struct{}{}
		}
	}
	return s
}

// All returns a set granting every capability.
func All(role string) Set {
	return Set{role: role, all: true, caps: map[Capability]struct{}{}}
}

func (s Set) Role() string  { return s.role }
func (s Set) IsAdmin() bool { return s.role == RoleAdmin }

func (s Set) Has(c Capability) bool {
	if s.all {
		return c.Valid()
	}
	_, ok := s.caps[c]
	return ok
}

// Require returns core.ErrForbidden, naming c, when the set lacks it.
func (s Set) Require(c Capability) error {
	if !s.Has(c) {
		return errors.Wrapf(core.ErrForbidden, "missing %s", c)
	}
	return nil
}

// RequireAdmin returns core.ErrForbidden unless the role is admin.
func (s Set) RequireAdmin() error {
	if !s.IsAdmin() {
		return errors.Wrap(core.ErrForbidden, "admin role required")
	}
	return nil
}

// List returns the granted capabilities in declaration order.
func (s Set) List() []Capability {
	list := make([]Capability, 0, len(known))
	for c := range known {
		if s.Has(c) {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return known[list[i]] < known[list[j]] })
	return list
}

// Map is the inverse of NewSet, as sent when saving a role.
func Map(caps []Capability) map[string]bool {
	m := make(map[string]bool, len(caps))
	for _, c := range caps {
		m[string(c)] = true
	}
	return m
}
