package user

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
)

type fakeRepo struct {
	Repository // unimplemented calls panic

	created     []NewUser
	roleUpdates map[string]UpdateRole
	deleted     []string
	auditFilter *AuditLogFilter
	connected   []NewIntegration
	logLimit    int
}

func (r *fakeRepo) CreateUser(_ context.Context, nu NewUser) (User, error) {
	r.created = append(r.created, nu)
	return User{ID: "u-new", FullName: nu.FullName, Email: nu.Email, Role: nu.Role, Status: StatusActive}, nil
}

func (r *fakeRepo) UpdateRole(_ context.Context, id string, ur UpdateRole) error {
	if r.roleUpdates == nil {
		r.roleUpdates = make(map[string]UpdateRole)
	}
	r.roleUpdates[id] = ur
	return nil
}

func (r *fakeRepo) DeleteUser(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeRepo) QueryAuditLogs(_ context.Context, filter AuditLogFilter) (AuditLogList, error) {
	r.auditFilter = &filter
	return AuditLogList{Limit: filter.Limit, Page: 1}, nil
}

func (r *fakeRepo) QueryIntegrations(context.Context) ([]Integration, error) { return nil, nil }

func (r *fakeRepo) ConnectIntegration(_ context.Context, ni NewIntegration) error {
	r.connected = append(r.connected, ni)
	return nil
}

func (r *fakeRepo) QueryIntegrationLogs(_ context.Context, limit int) (IntegrationLogList, error) {
	r.logLimit = limit
	return IntegrationLogList{}, nil
}

func (r *fakeRepo) SystemHealth(context.Context) (SystemHealth, error) {
	return SystemHealth{ServerStatus: "healthy", DatabaseStatus: "disconnected"}, nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService() (*Service, *fakeRepo, func(error) map[string]string) {
	validate, translator := core.NewValidator()
	RegisterValidators(validate, translator)
	repo := &fakeRepo{}
	translate := func(err error) map[string]string {
		var verrs validator.ValidationErrors
		if ve, ok := err.(validator.ValidationErrors); ok {
			verrs = ve
		}
		return core.TranslateErrors(verrs, translator)
	}
	return NewService(repo, validate, nopLogger{}), repo, translate
}

func TestNewUser_password(t *testing.T) {
	svc, _, translate := newTestService()
	admin := access.All(access.RoleAdmin)

	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{"invite without password", "", ""},
		{"valid", "Gr3at!Horse", ""},
		{"too short", "Ab1!", pwdMinLenText},
		{"whitespace", "Abc 123!xyz", pwdNoSpaceText},
		{"all numeric", "1234567890", pwdNotAllNumText},
		{"no special", "Abcdefg123", pwdComplexityText},
		{"no upper", "abcdefg12!", pwdComplexityText},
		{"similar to name", "Janedoe1!", pwdAttrSimText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{FullName: "Jane Doe", Email: "jane.doe@example.com", Role: "counselor", Password: tt.pwd}
			_, err := svc.CreateUser(context.Background(), admin, nu)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, map[string]string{"password": tt.want}, translate(err))
		})
	}
}

func TestService_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("cleans input", func(t *testing.T) {
		svc, repo, _ := newTestService()
		_, err := svc.CreateUser(ctx, access.All(access.RoleAdmin), NewUser{FullName: "  Jo Lee ", Email: "JO@Example.com ", Role: " Manager"})
		require.NoError(t, err)
		require.Len(t, repo.created, 1)
		assert.Equal(t, NewUser{FullName: "Jo Lee", Email: "jo@example.com", Role: "manager"}, repo.created[0])
	})

	t.Run("needs users.create", func(t *testing.T) {
		svc, repo, _ := newTestService()
		_, err := svc.CreateUser(ctx, access.NewSet("manager", map[string]bool{"users.view": true}), NewUser{})
		assert.True(t, core.IsForbidden(err))
		assert.Empty(t, repo.created)
	})

	t.Run("cannot grant above own role", func(t *testing.T) {
		svc, repo, _ := newTestService()
		manager := access.NewSet("manager", map[string]bool{"users.create": true})
		_, err := svc.CreateUser(ctx, manager, NewUser{FullName: "A", Email: "a@example.com", Role: "admin"})
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ErrRoleTooHigh, verr.Err)
		assert.Empty(t, repo.created)

		_, err = svc.CreateUser(ctx, manager, NewUser{FullName: "A", Email: "a@example.com", Role: "counselor"})
		assert.NoError(t, err)
	})

	t.Run("field errors", func(t *testing.T) {
		svc, _, translate := newTestService()
		_, err := svc.CreateUser(ctx, access.All(access.RoleAdmin), NewUser{Email: "nope", Role: "Head Counselor!"})
		assert.Equal(t, map[string]string{
			"full_name": "this field is required",
			"email":     "email must be a valid email address",
			"role":      roleText,
		}, translate(err))
	})
}

func TestService_roles(t *testing.T) {
	ctx := context.Background()
	admin := access.All(access.RoleAdmin)
	custom := Role{ID: "r1", Name: "intern", Permissions: map[string]bool{"leads.view_all": true, "leads.edit": false}}
	system := Role{ID: "r0", Name: "admin", IsSystem: true, Permissions: map[string]bool{"*": true}}

	t.Run("toggle grants then revokes", func(t *testing.T) {
		svc, repo, _ := newTestService()
		r, err := svc.TogglePermission(ctx, admin, custom, access.LeadsEdit)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"leads.view_all": true, "leads.edit": true}, r.Permissions)

		r, err = svc.TogglePermission(ctx, admin, r, access.LeadsViewAll)
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"leads.edit": true}, r.Permissions)
		assert.Equal(t, map[string]bool{"leads.edit": true}, repo.roleUpdates["r1"].Permissions)
		assert.Equal(t, []access.Capability{access.LeadsEdit}, r.Access().List())
	})

	t.Run("system roles are read-only", func(t *testing.T) {
		svc, repo, _ := newTestService()
		_, err := svc.TogglePermission(ctx, admin, system, access.LeadsEdit)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ErrSystemRole, verr.Err)
		assert.Error(t, svc.DeleteRole(ctx, admin, system))
		assert.Empty(t, repo.roleUpdates, "no request is sent")
	})

	t.Run("admin only", func(t *testing.T) {
		svc, _, _ := newTestService()
		manager := access.NewSet("manager", map[string]bool{"*": true})
		_, err := svc.TogglePermission(ctx, manager, custom, access.LeadsEdit)
		assert.True(t, core.IsForbidden(err))
	})

	t.Run("unknown permission", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.TogglePermission(ctx, admin, custom, "leads.teleport")
		assert.Error(t, err)
	})

	t.Run("new role permissions are checked", func(t *testing.T) {
		svc, _, translate := newTestService()
		_, err := svc.CreateRole(ctx, admin, NewRole{Name: "intern", Permissions: map[string]bool{"leads.teleport": true}})
		require.Error(t, err)
		assert.Equal(t, map[string]string{"permissions[leads.teleport]": capabilityText}, translate(err))
	})
}

func TestService_DeleteUser(t *testing.T) {
	svc, repo, _ := newTestService()
	admin := access.All(access.RoleAdmin)

	assert.Error(t, svc.DeleteUser(context.Background(), admin, "me", "me"))
	require.NoError(t, svc.DeleteUser(context.Background(), admin, "me", "u2"))
	assert.Equal(t, []string{"u2"}, repo.deleted)
}

func TestRolePriority(t *testing.T) {
	assert.True(t, CanGrant("admin", "manager"))
	assert.True(t, CanGrant("manager", "manager"))
	assert.False(t, CanGrant("counselor", "manager"))
	assert.True(t, CanGrant("manager", "intern"), "custom roles rank as counselors")
	assert.False(t, CanGrant("intern", "admin"))
}

func TestService_system(t *testing.T) {
	ctx := context.Background()
	admin := access.All(access.RoleAdmin)
	manager := access.NewSet("manager", map[string]bool{"users.view": true, "users.edit": true})
	integrator := access.NewSet("manager", map[string]bool{"system.integrations": true})

	t.Run("audit logs are admin only", func(t *testing.T) {
		svc, repo, _ := newTestService()
		_, err := svc.AuditLogs(ctx, manager, AuditLogFilter{})
		assert.True(t, core.IsForbidden(err))
		assert.Nil(t, repo.auditFilter)

		list, err := svc.AuditLogs(ctx, admin, AuditLogFilter{Action: " Updated ", Limit: 500, Offset: -3})
		require.NoError(t, err)
		assert.Equal(t, AuditLogFilter{Action: "updated", Limit: 50}, *repo.auditFilter)
		assert.NotNil(t, list.Logs)
	})

	t.Run("audit log dates", func(t *testing.T) {
		svc, repo, translate := newTestService()
		_, err := svc.AuditLogs(ctx, admin, AuditLogFilter{DateFrom: "09/01/2024"})
		require.Error(t, err)
		assert.Contains(t, translate(err), "date_from")
		assert.Nil(t, repo.auditFilter)
	})

	t.Run("health is admin only", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Health(ctx, manager)
		assert.True(t, core.IsForbidden(err))

		h, err := svc.Health(ctx, admin)
		require.NoError(t, err)
		assert.False(t, h.Healthy())
	})

	t.Run("integrations need system.integrations", func(t *testing.T) {
		svc, repo, _ := newTestService()
		_, err := svc.Integrations(ctx, manager)
		assert.True(t, core.IsForbidden(err))
		assert.True(t, core.IsForbidden(svc.ConnectIntegration(ctx, manager, NewIntegration{Type: "smtp"})))
		assert.True(t, core.IsForbidden(svc.DisconnectIntegration(ctx, manager, "smtp")))
		_, err = svc.IntegrationLogs(ctx, manager, 0)
		assert.True(t, core.IsForbidden(err))
		assert.Empty(t, repo.connected)

		list, err := svc.Integrations(ctx, integrator)
		require.NoError(t, err)
		assert.NotNil(t, list)
	})

	t.Run("connect", func(t *testing.T) {
		svc, repo, translate := newTestService()
		require.NoError(t, svc.ConnectIntegration(ctx, integrator, NewIntegration{Type: " SMTP "}))
		require.Len(t, repo.connected, 1)
		assert.Equal(t, NewIntegration{Type: "smtp", Name: "smtp", Config: map[string]string{}}, repo.connected[0])

		err := svc.ConnectIntegration(ctx, admin, NewIntegration{})
		require.Error(t, err)
		assert.Equal(t, map[string]string{"type": "this field is required", "name": "this field is required"}, translate(err))
	})

	t.Run("webhook log limit", func(t *testing.T) {
		svc, repo, _ := newTestService()
		for _, tt := range []struct{ limit, want int }{{0, 10}, {25, 25}, {1000, 10}} {
			_, err := svc.IntegrationLogs(ctx, admin, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.logLimit)
		}
	})
}

func TestAuditLog_Summary(t *testing.T) {
	tests := []struct {
		name string
		log  AuditLog
		want string
	}{
		{
			name: "role and status change",
			log: AuditLog{
				Action:     "updated",
				Resource:   "user",
				BeforeData: json.RawMessage(`{"email":"jo@example.com","role":"counselor","status":"active"}`),
				AfterData:  json.RawMessage(`{"email":"jo@example.com","role":"manager","status":"inactive"}`),
			},
			want: "Updated user jo@example.com (role: manager, status: inactive)",
		},
		{
			name: "details email wins",
			log: AuditLog{
				Action:    "created",
				Resource:  "user",
				Details:   json.RawMessage(`{"email":"new@example.com"}`),
				AfterData: json.RawMessage(`{"email":"other@example.com"}`),
			},
			want: "User created: new@example.com",
		},
		{
			name: "deleted falls back to before data",
			log:  AuditLog{Action: "deleted", Resource: "user", BeforeData: json.RawMessage(`{"email":"gone@example.com"}`)},
			want: "Deleted user gone@example.com",
		},
		{
			name: "unknown target",
			log:  AuditLog{Action: "updated", Resource: "user", Details: json.RawMessage(`"garbage"`)},
			want: "Updated user unknown user",
		},
		{
			name: "other resource",
			log:  AuditLog{Action: "connected", Resource: "integration"},
			want: "Integration connected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.log.Summary())
		})
	}

	assert.Equal(t, "System", AuditLog{}.Actor())
	assert.Equal(t, "ops@example.com", AuditLog{UserEmail: null.StringFrom("ops@example.com")}.Actor())
}

func TestRole_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		permissions string
		want        map[string]bool
	}{
		{"object", `{"leads.edit": true, "leads.delete": false}`, map[string]bool{"leads.edit": true}},
		{"list", `["leads.edit", "reports.view"]`, map[string]bool{"leads.edit": true, "reports.view": true}},
		{"encoded object", `"{\"leads.edit\": true}"`, map[string]bool{"leads.edit": true}},
		{"encoded list", `"[\"reports.view\"]"`, map[string]bool{"reports.view": true}},
		{"null", `null`, nil},
		{"unreadable", `"not json"`, map[string]bool{}},
		{"wrong shape", `42`, map[string]bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Role
			data := `{"id": "r1", "name": "intern", "is_system": true, "permissions": ` + tt.permissions + `}`
			require.NoError(t, json.Unmarshal([]byte(data), &r))
			assert.Equal(t, "r1", r.ID)
			assert.Equal(t, "intern", r.Name)
			assert.True(t, r.IsSystem)
			assert.Equal(t, tt.want, r.Permissions)
		})
	}

	t.Run("one bad row keeps the list", func(t *testing.T) {
		var roles []Role
		data := `[{"id": "r1", "permissions": "oops"}, {"id": "r2", "permissions": ["leads.edit"]}]`
		require.NoError(t, json.Unmarshal([]byte(data), &roles))
		require.Len(t, roles, 2)
		assert.Empty(t, roles[0].Permissions)
		assert.True(t, roles[1].Access().Has(access.LeadsEdit))
	})
}
