package user

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
)

// User statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var rolePriorities = map[string]int{
	access.RoleAdmin:     30,
	access.RoleManager:   20,
	access.RoleCounselor: 10,
}

// RolePriority ranks roles; custom roles rank as counselors.
func RolePriority(role string) int {
	if p, ok := rolePriorities[role]; ok {
		return p
	}
	return rolePriorities[access.RoleCounselor]
}

// CanGrant reports whether a user with role actor may give role to someone.
func CanGrant(actor, role string) bool {
	return RolePriority(role) <= RolePriority(actor)
}

// Profile is the signed-in user, as returned by /auth/me.
type Profile struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	FullName    string          `json:"full_name"`
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

// Access converts the permissions once; pass the result to views rather than the raw map.
func (p Profile) Access() access.Set {
	return access.NewSet(p.Role, p.Permissions)
}

func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// User is an account as listed in the admin views.
type User struct {
	ID        string      `json:"id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Phone     null.String `json:"phone"`
	Role      string      `json:"role"`
	Status    string      `json:"status"`
	LastLogin null.Time   `json:"last_login"`
	CreatedAt time.Time   `json:"created_at"`
}

func (u User) IsActive() bool { return u.Status == StatusActive }

type UserList struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

type Role struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description null.String     `json:"description"`
	Permissions map[string]bool `json:"permissions"`
	IsSystem    bool            `json:"is_system"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UnmarshalJSON accepts permissions as an object of flags, a list of granted
// capabilities, or either of those encoded as a JSON string. Permissions that
// cannot be read grant nothing, so one bad row does not fail a whole list.
func (r *Role) UnmarshalJSON(data []byte) error {
	type role Role
	aux := struct {
		*role
		Permissions json.RawMessage `json:"permissions"`
	}{role: (*role)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Permissions = decodePermissions(aux.Permissions)
	return nil
}

func decodePermissions(raw json.RawMessage) map[string]bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	perms := map[string]bool{}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return perms
		}
		if p := decodePermissions(json.RawMessage(s)); p != nil {
			return p
		}
	case '[':
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return perms
		}
		for _, p := range list {
			perms[p] = true
		}
	case '{':
		var flags map[string]interface{}
		if err := json.Unmarshal(raw, &flags); err != nil {
			return perms
		}
		for p, v := range flags {
			if granted, ok := v.(bool); ok && granted {
				perms[p] = true
			}
		}
	}
	return perms
}

// Access is the capability set the role grants.
func (r Role) Access() access.Set {
	return access.NewSet(r.Name, r.Permissions)
}

// NewUser contains information needed to create a new User.
// Without a password the account is invited by email.
type NewUser struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone"`
	Role     string `json:"role" validate:"required,role"`
	Password string `json:"password,omitempty"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	FullName string `json:"full_name,omitempty" validate:"omitempty,max=200"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,phone"`
	Role     string `json:"role,omitempty" validate:"omitempty,role"`
	Status   string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	uu.FullName = core.CleanString(uu.FullName)
	uu.Phone = core.CleanString(uu.Phone)
	uu.Role = core.CleanString(uu.Role, true /* lower */)
	uu.Status = core.CleanString(uu.Status, true /* lower */)
	return validate.Struct(uu)
}

type NewRole struct {
	Name        string          `json:"name" validate:"required,role"`
	Description string          `json:"description,omitempty" validate:"omitempty,max=500"`
	Permissions map[string]bool `json:"permissions" validate:"dive,keys,capability,endkeys"`
}

func (nr *NewRole) Validate(validate *validator.Validate) error {
	nr.Name = core.CleanString(nr.Name, true /* lower */)
	nr.Description = core.CleanString(nr.Description)
	if nr.Permissions == nil {
		nr.Permissions = map[string]bool{}
	}
	return validate.Struct(nr)
}

// UpdateRole is a partial role update; nil fields (null permissions included) are left unchanged.
type UpdateRole struct {
	Name        *string         `json:"name,omitempty" validate:"omitempty,role"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=500"`
	Permissions map[string]bool `json:"permissions" validate:"omitempty,dive,keys,capability,endkeys"`
}

func (ur *UpdateRole) Validate(validate *validator.Validate) error {
	if ur.Name != nil {
		name := core.CleanString(*ur.Name, true /* lower */)
		ur.Name = &name
	}
	return validate.Struct(ur)
}

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"role"`
	Status string `query:"status"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	if qf.Limit <= 0 || qf.Limit > 100 {
		qf.Limit = 50
	}
	if qf.Offset < 0 {
		qf.Offset = 0
	}
}
