package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/user"
)

const UpstreamToken = "test-token"

// Request is what the fake upstream saw.
type Request struct {
	Method    string
	Path      string
	Query     string
	Auth      string
	RequestID string
}

// Upstream is a fake admissions API backed by in-memory state.
type Upstream struct {
	*httptest.Server
	Leads     *LeadRepository
	Profile   user.Profile
	Dashboard analytics.Dashboard
	Templates []report.Template
	Health    user.SystemHealth

	mu            sync.Mutex
	requests      []Request
	failures      map[string]int
	notifications []notification.Notification
	users         []user.User
	roles         []user.Role
	auditLogs     []user.AuditLog
	integrations  []user.Integration
	webhookLogs   []user.IntegrationLog
}

func NewUpstream(t *testing.T, leads *LeadRepository) *Upstream {
	t.Helper()
	up := &Upstream{
		Leads: leads,
		Profile: user.Profile{
			ID:          "u-1",
			Email:       "jane@example.com",
			FullName:    "Jane Doe",
			Role:        "manager",
			Permissions: map[string]bool{"leads.edit": true, "leads.create": true, "reports.view": true},
		},
		Templates: []report.Template{{ID: "leads_overview", Name: "Leads Overview", Fields: []string{"parent_name", "status"}, IsSystem: true}},
		Health:    user.SystemHealth{ServerStatus: "healthy", DatabaseStatus: "healthy", DatabaseConnections: 3},
		failures:  make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(up.record)
	e.GET("/api/v1/auth/me", func(c echo.Context) error { return c.JSON(http.StatusOK, up.Profile) })

	e.GET("/api/v1/leads", up.queryLeads)
	e.POST("/api/v1/leads", up.createLead)
	e.GET("/api/v1/leads/:id", up.getLead)
	e.PATCH("/api/v1/leads/:id/status", up.updateStatus)
	e.PATCH("/api/v1/leads/:id/assign", up.assignLead)

	e.GET("/api/v1/analytics/dashboard", func(c echo.Context) error { return c.JSON(http.StatusOK, up.Dashboard) })

	e.GET("/api/v1/notifications", up.queryNotifications)
	e.PATCH("/api/v1/notifications/:id/read", up.markRead)
	e.POST("/api/v1/notifications/mark-all-read", up.markAllRead)

	e.GET("/api/v1/reports/templates", func(c echo.Context) error { return c.JSON(http.StatusOK, up.Templates) })
	e.POST("/api/v1/reports/export", up.export)

	e.GET("/api/v1/admin/users", up.queryUsers)
	e.GET("/api/v1/admin/roles", up.queryRoles)
	e.PATCH("/api/v1/admin/roles/:id", up.updateRole)
	e.GET("/api/v1/admin/audit-logs", up.queryAuditLogs)
	e.GET("/api/v1/admin/integrations", up.queryIntegrations)
	e.GET("/api/v1/admin/integrations/logs", up.queryWebhookLogs)
	e.POST("/api/v1/admin/integrations/:type/connect", up.connectIntegration)
	e.DELETE("/api/v1/admin/integrations/:type/disconnect", up.disconnectIntegration)
	e.GET("/api/v1/admin/health", func(c echo.Context) error { return c.JSON(http.StatusOK, up.Health) })

	up.Server = httptest.NewServer(e)
	t.Cleanup(up.Close)
	return up
}

// Config points an API client at the fake upstream.
func (up *Upstream) Config() *core.Config {
	return &core.Config{
		AppName: "Admissions",
		API:     core.APIConfig{BaseURL: up.URL, RequestTimeout: 5 * time.Second},
	}
}

// Fail makes every request to method+path answer status.
func (up *Upstream) Fail(method, path string, status int) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.failures[method+" "+path] = status
}

func (up *Upstream) Requests() []Request {
	up.mu.Lock()
	defer up.mu.Unlock()
	return append([]Request(nil), up.requests...)
}

// Count is the number of requests to method+path.
func (up *Upstream) Count(method, path string) int {
	var n int
	for _, r := range up.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (up *Upstream) AddNotifications(list ...notification.Notification) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.notifications = append(up.notifications, list...)
}

func (up *Upstream) AddRoles(roles ...user.Role) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.roles = append(up.roles, roles...)
}

// AddAuditLogs appends entries; they are served newest first.
func (up *Upstream) AddAuditLogs(logs ...user.AuditLog) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.auditLogs = append(up.auditLogs, logs...)
}

func (up *Upstream) AddWebhookLogs(logs ...user.IntegrationLog) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.webhookLogs = append(up.webhookLogs, logs...)
}

func (up *Upstream) AddUsers(users ...user.User) {
	up.mu.Lock()
	defer up.mu.Unlock()
	up.users = append(up.users, users...)
}

func (up *Upstream) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		up.mu.Lock()
		up.requests = append(up.requests, Request{
			Method:    req.Method,
			Path:      req.URL.Path,
			Query:     req.URL.RawQuery,
			Auth:      req.Header.Get("Authorization"),
			RequestID: req.Header.Get("X-Request-ID"),
		})
		status, fail := up.failures[req.Method+" "+req.URL.Path]
		up.mu.Unlock()

		if req.Header.Get("Authorization") != "Bearer "+UpstreamToken {
			return detail(c, http.StatusUnauthorized, "Could not validate credentials")
		}
		if fail {
			return detail(c, status, http.StatusText(status))
		}
		return next(c)
	}
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"detail": msg})
}

func (up *Upstream) leadError(c echo.Context, err error) error {
	if errors.Cause(err) == lead.ErrNotFound {
		return detail(c, http.StatusNotFound, "Lead not found")
	}
	if apiErr, ok := errors.Cause(err).(*core.APIError); ok {
		return detail(c, apiErr.StatusCode, apiErr.Message)
	}
	return detail(c, http.StatusInternalServerError, err.Error())
}

func (up *Upstream) queryLeads(c echo.Context) error {
	leads, err := up.Leads.QueryLeads(c.Request().Context(), lead.QueryFilter{
		Status: c.QueryParam("status"),
		Search: c.QueryParam("search"),
	})
	if err != nil {
		return up.leadError(c, err)
	}
	return c.JSON(http.StatusOK, leads)
}

func (up *Upstream) getLead(c echo.Context) error {
	l, err := up.Leads.GetLead(c.Request().Context(), c.Param("id"))
	if err != nil {
		return up.leadError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (up *Upstream) createLead(c echo.Context) error {
	var nl lead.NewLead
	if err := c.Bind(&nl); err != nil {
		return detail(c, http.StatusUnprocessableEntity, err.Error())
	}
	l, err := up.Leads.CreateLead(c.Request().Context(), nl)
	if err != nil {
		return up.leadError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (up *Upstream) updateStatus(c echo.Context) error {
	status := lead.Status(c.QueryParam("status"))
	if !status.Valid() {
		return detail(c, http.StatusBadRequest, "Invalid status")
	}
	if err := up.Leads.UpdateLeadStatus(c.Request().Context(), c.Param("id"), status); err != nil {
		return up.leadError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Status updated"})
}

func (up *Upstream) assignLead(c echo.Context) error {
	l, err := up.Leads.AssignLead(c.Request().Context(), c.Param("id"), c.QueryParam("assigned_to"))
	if err != nil {
		return up.leadError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (up *Upstream) queryNotifications(c echo.Context) error {
	unreadOnly := c.QueryParam("unread_only") == "true"
	up.mu.Lock()
	defer up.mu.Unlock()
	list := make([]notification.Notification, 0, len(up.notifications))
	for _, n := range up.notifications {
		if !unreadOnly || !n.Read {
			list = append(list, n)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return c.JSON(http.StatusOK, list)
}

func (up *Upstream) markRead(c echo.Context) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	for i := range up.notifications {
		if up.notifications[i].ID == c.Param("id") {
			up.notifications[i].Read = true
			return c.JSON(http.StatusOK, up.notifications[i])
		}
	}
	return detail(c, http.StatusNotFound, "Notification not found")
}

func (up *Upstream) markAllRead(c echo.Context) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	for i := range up.notifications {
		up.notifications[i].Read = true
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "All marked as read"})
}

func (up *Upstream) export(c echo.Context) error {
	var req report.ExportRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusUnprocessableEntity, err.Error())
	}
	var found bool
	for _, t := range up.Templates {
		found = found || t.ID == req.ReportID
	}
	if !found && req.ReportConfig == nil {
		return detail(c, http.StatusNotFound, "Report not found")
	}
	filename := req.Format.Filename()
	c.Response().Header().Set("Content-Disposition", "attachment; filename="+filename)
	return c.Blob(http.StatusOK, req.Format.ContentType(), []byte("parent_name,status\n"))
}

func (up *Upstream) queryUsers(c echo.Context) error {
	search := strings.ToLower(c.QueryParam("search"))
	up.mu.Lock()
	defer up.mu.Unlock()
	list := make([]user.User, 0, len(up.users))
	for _, u := range up.users {
		if search == "" || strings.Contains(strings.ToLower(u.FullName+" "+u.Email), search) {
			list = append(list, u)
		}
	}
	return c.JSON(http.StatusOK, user.UserList{Users: list, Total: len(list)})
}

func (up *Upstream) queryRoles(c echo.Context) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	return c.JSON(http.StatusOK, up.roles)
}

func (up *Upstream) updateRole(c echo.Context) error {
	var ur user.UpdateRole
	if err := c.Bind(&ur); err != nil {
		return detail(c, http.StatusUnprocessableEntity, err.Error())
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	for i, r := range up.roles {
		if r.ID != c.Param("id") {
			continue
		}
		if r.IsSystem {
			return detail(c, http.StatusForbidden, "Cannot modify system roles")
		}
		if ur.Permissions != nil {
			up.roles[i].Permissions = ur.Permissions
		}
		up.roles[i].UpdatedAt = time.Now().UTC()
		return c.JSON(http.StatusOK, echo.Map{"id": r.ID, "request_id": uuid.NewString()})
	}
	return detail(c, http.StatusNotFound, "Role not found")
}

func (up *Upstream) queryAuditLogs(c echo.Context) error {
	f := user.AuditLogFilter{Action: c.QueryParam("action"), Resource: c.QueryParam("resource"), UserID: c.QueryParam("user_id")}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if f.Limit <= 0 {
		f.Limit = 50
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	list := make([]user.AuditLog, 0, len(up.auditLogs))
	for _, l := range up.auditLogs {
		if (f.Action == "" || l.Action == f.Action) && (f.Resource == "" || l.Resource == f.Resource) &&
			(f.UserID == "" || l.UserID.String == f.UserID) {
			list = append(list, l)
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	total := len(list)
	if f.Offset > len(list) {
		f.Offset = len(list)
	}
	list = list[f.Offset:]
	if len(list) > f.Limit {
		list = list[:f.Limit]
	}
	return c.JSON(http.StatusOK, user.AuditLogList{Logs: list, Total: total, Page: f.Offset/f.Limit + 1, Limit: f.Limit})
}

func (up *Upstream) queryIntegrations(c echo.Context) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	return c.JSON(http.StatusOK, up.integrations)
}

func (up *Upstream) connectIntegration(c echo.Context) error {
	var ni user.NewIntegration
	if err := c.Bind(&ni); err != nil {
		return detail(c, http.StatusUnprocessableEntity, err.Error())
	}
	typ := c.Param("type")
	now := time.Now().UTC()
	up.mu.Lock()
	defer up.mu.Unlock()
	for i, in := range up.integrations {
		if in.Type == typ {
			up.integrations[i].Name = ni.Name
			up.integrations[i].Status = user.IntegrationConnected
			return c.JSON(http.StatusOK, echo.Map{"message": "Integration connected successfully"})
		}
	}
	up.integrations = append(up.integrations, user.Integration{
		ID:        uuid.NewString(),
		Type:      typ,
		Name:      ni.Name,
		Status:    user.IntegrationConnected,
		CreatedAt: now,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "Integration connected successfully"})
}

func (up *Upstream) disconnectIntegration(c echo.Context) error {
	up.mu.Lock()
	defer up.mu.Unlock()
	for i, in := range up.integrations {
		if in.Type == c.Param("type") {
			up.integrations[i].Status = user.IntegrationDisconnected
			return c.JSON(http.StatusOK, echo.Map{"message": "Integration disconnected successfully"})
		}
	}
	return detail(c, http.StatusNotFound, "Integration not found")
}

func (up *Upstream) queryWebhookLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 10
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	list := append([]user.IntegrationLog(nil), up.webhookLogs...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if len(list) > limit {
		list = list[:limit]
	}
	return c.JSON(http.StatusOK, user.IntegrationLogList{Logs: list, Count: len(list)})
}
