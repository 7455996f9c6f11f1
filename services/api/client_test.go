package apisvc_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/user"
	apisvc "github.com/trezcool/admissions/services/api"
	testutil "github.com/trezcool/admissions/tests"
)

var now = time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*apisvc.Client, *testutil.Upstream) {
	t.Helper()
	repo := testutil.NewLeadRepository(
		testutil.NewLead(t, "l-1", "John Smith", lead.StatusNew, now, 2),
		testutil.NewLead(t, "l-2", "Mary Jones", lead.StatusConnected, now, 30),
	)
	repo.Now = func() time.Time { return now }
	up := testutil.NewUpstream(t, repo)
	return apisvc.New(up.Config(), testutil.NewLogger()).WithToken(testutil.UpstreamToken), up
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   "u-1",
		ExpiresAt: exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque", "test-token", false},
		{"future", signed(t, now.Add(time.Hour)), false},
		{"past", signed(t, now.Add(-time.Second)), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, apisvc.TokenExpired(tc.token, now))
		})
	}
}

func TestClient_Headers(t *testing.T) {
	client, up := setup(t)
	_, err := client.QueryLeads(context.Background(), lead.QueryFilter{Status: "connected", Search: "mary"})
	require.NoError(t, err)

	reqs := up.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer test-token", reqs[0].Auth)
	assert.Equal(t, "search=mary&status=connected", reqs[0].Query)
	_, err = uuid.Parse(reqs[0].RequestID)
	assert.NoError(t, err)
}

func TestClient_SessionExpiredLocally(t *testing.T) {
	client, up := setup(t)
	ctx := context.Background()

	_, err := client.WithToken("").QueryLeads(ctx, lead.QueryFilter{})
	assert.True(t, core.IsSessionExpired(err))

	_, err = client.WithToken(signed(t, time.Now().Add(-time.Minute))).QueryLeads(ctx, lead.QueryFilter{})
	assert.True(t, core.IsSessionExpired(err))
	assert.Empty(t, up.Requests(), "expired tokens never reach the API")
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"401", http.StatusUnauthorized, func(t *testing.T, err error) { assert.True(t, core.IsSessionExpired(err)) }},
		{"403", http.StatusForbidden, func(t *testing.T, err error) { assert.True(t, core.IsForbidden(err)) }},
		{"404", http.StatusNotFound, func(t *testing.T, err error) { assert.Equal(t, lead.ErrNotFound, errors.Cause(err)) }},
		{"500", http.StatusInternalServerError, func(t *testing.T, err error) {
			var apiErr *core.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			assert.Equal(t, "Internal Server Error", apiErr.Message)
			assert.True(t, core.IsRecoverable(err))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, up := setup(t)
			up.Fail(http.MethodPatch, "/api/v1/leads/l-1/status", tc.status)
			err := client.UpdateLeadStatus(ctx, "l-1", lead.StatusConnected)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	client, up := setup(t)
	up.Close()
	_, err := client.QueryLeads(context.Background(), lead.QueryFilter{})
	var te *core.TransportError
	assert.True(t, errors.As(err, &te))
	assert.True(t, core.IsRecoverable(err))
}

func TestClient_Leads(t *testing.T) {
	client, up := setup(t)
	ctx := context.Background()

	leads, err := client.QueryLeads(ctx, lead.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "l-1", leads[0].ID)

	require.NoError(t, client.UpdateLeadStatus(ctx, "l-1", lead.StatusVisitScheduled))
	assert.Equal(t, "status=visit_scheduled", up.Requests()[1].Query)
	l, err := client.GetLead(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusVisitScheduled, l.Status)
	assert.True(t, l.UpdatedAt.Equal(now))

	_, err = client.GetLead(ctx, "nope")
	assert.Equal(t, lead.ErrNotFound, errors.Cause(err))

	l, err = client.AssignLead(ctx, "l-2", "u-9")
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("u-9"), l.AssignedTo)

	created, err := client.CreateLead(ctx, lead.NewLead{
		ParentName: "Ann Lee",
		Status:     lead.StatusNew,
		Source:     lead.SourceReferral,
		Students:   []lead.NewStudent{{Name: "Tom", GradeApplyingFor: "Grade 1"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	require.Len(t, created.Students, 1)
	assert.Equal(t, "Grade 1", created.Students[0].GradeApplyingFor.String)
}

func TestClient_Me(t *testing.T) {
	client, _ := setup(t)
	p, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.FullName)
	assert.True(t, p.Access().Has("leads.edit"))
}

func TestClient_Notifications(t *testing.T) {
	client, up := setup(t)
	ctx := context.Background()
	up.AddNotifications(
		notification.Notification{ID: "n-1", Title: "New lead", CreatedAt: now.Add(-time.Hour)},
		notification.Notification{ID: "n-2", Title: "Visit", CreatedAt: now, Read: true},
	)

	list, err := client.QueryNotifications(ctx, notification.QueryFilter{Limit: 10, UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n-1", list[0].ID)

	require.NoError(t, client.MarkRead(ctx, "n-1"))
	err = client.MarkRead(ctx, "n-9")
	var apiErr *core.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Notification not found", apiErr.Message)

	require.NoError(t, client.MarkAllRead(ctx))
	assert.Equal(t, 1, up.Count(http.MethodPost, "/api/v1/notifications/mark-all-read"))
}

func TestClient_Reports(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()

	tmpls, err := client.QueryTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, tmpls, 1)

	exp, err := client.ExportReport(ctx, report.ExportRequest{ReportID: "leads_overview", Format: report.FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, "report_export.csv", exp.Filename)
	assert.Equal(t, "text/csv", exp.ContentType)
	assert.Equal(t, "parent_name,status\n", string(exp.Data))

	_, err = client.ExportReport(ctx, report.ExportRequest{ReportID: "missing", Format: report.FormatCSV})
	assert.Equal(t, report.ErrNotFound, errors.Cause(err))
}

func TestClient_Admin(t *testing.T) {
	client, up := setup(t)
	ctx := context.Background()
	up.AddUsers(user.User{ID: "u-2", FullName: "Bob Ray", Email: "bob@example.com", Role: "counselor"})
	up.AddRoles(
		user.Role{ID: "r-1", Name: "admin", IsSystem: true},
		user.Role{ID: "r-2", Name: "intern", Permissions: map[string]bool{}},
	)

	list, err := client.QueryUsers(ctx, user.QueryFilter{Search: "bob", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	require.NoError(t, client.UpdateRole(ctx, "r-2", user.UpdateRole{Permissions: map[string]bool{"leads.edit": true}}))
	roles, err := client.QueryRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"leads.edit": true}, roles[1].Permissions)

	err = client.UpdateRole(ctx, "r-1", user.UpdateRole{Permissions: map[string]bool{}})
	assert.True(t, core.IsForbidden(err))
	err = client.UpdateRole(ctx, "r-9", user.UpdateRole{})
	assert.Equal(t, user.ErrRoleNotFound, errors.Cause(err))
}

func TestClient_System(t *testing.T) {
	client, up := setup(t)
	ctx := context.Background()
	up.AddAuditLogs(
		user.AuditLog{ID: "a-1", Action: "created", Resource: "user", CreatedAt: now.Add(-2 * time.Hour)},
		user.AuditLog{ID: "a-2", Action: "updated", Resource: "user", UserID: null.StringFrom("u-1"), CreatedAt: now.Add(-time.Hour)},
		user.AuditLog{ID: "a-3", Action: "updated", Resource: "role", CreatedAt: now},
	)
	up.AddWebhookLogs(
		user.IntegrationLog{ID: "w-1", EventName: "lead.created", Status: "success", ResponseStatus: null.IntFrom(200), CreatedAt: now},
		user.IntegrationLog{ID: "w-2", EventName: "lead.updated", Status: "failed", CreatedAt: now.Add(-time.Minute)},
	)

	logs, err := client.QueryAuditLogs(ctx, user.AuditLogFilter{Resource: "user", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, logs.Total)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, "a-2", logs.Logs[0].ID, "newest first")
	assert.Equal(t, "u-1", logs.Logs[0].UserID.String)
	assert.Equal(t, "limit=50&offset=0&resource=user", up.Requests()[0].Query)

	require.NoError(t, client.ConnectIntegration(ctx, user.NewIntegration{Type: "smtp", Name: "Mail"}))
	list, err := client.QueryIntegrations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsConnected())
	assert.Equal(t, "Mail", list[0].Name)

	require.NoError(t, client.DisconnectIntegration(ctx, "smtp"))
	list, err = client.QueryIntegrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.IntegrationDisconnected, list[0].Status)
	err = client.DisconnectIntegration(ctx, "slack")
	assert.Equal(t, user.ErrIntegrationNotFound, errors.Cause(err))

	webhooks, err := client.QueryIntegrationLogs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, webhooks.Count)
	assert.Equal(t, 200, webhooks.Logs[0].ResponseStatus.Int)

	up.Health.DatabaseStatus = "disconnected"
	h, err := client.SystemHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, h.DatabaseConnections)
	assert.False(t, h.Healthy())
}

func TestClient_Dashboard(t *testing.T) {
	client, up := setup(t)
	up.Dashboard = analytics.Dashboard{KPIs: analytics.KPIs{TotalLeads: 12, AvgTimeToConvert: null.Float64From(3.5)}}

	d, err := client.Dashboard(context.Background(), analytics.Filter{Source: "website"})
	require.NoError(t, err)
	assert.Equal(t, 12, d.KPIs.TotalLeads)
	assert.Equal(t, 3.5, d.KPIs.AvgTimeToConvert.Float64)
	assert.Equal(t, "source=website", up.Requests()[0].Query)
}
