package apisvc

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/admissions/core/user"
)

var _ user.Repository = (*Client)(nil)

func (c *Client) Me(ctx context.Context) (user.Profile, error) {
	var p user.Profile
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/auth/me"}, &p)
	return p, err
}

func (c *Client) QueryUsers(ctx context.Context, filter user.QueryFilter) (user.UserList, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(filter.Limit)},
		"offset": {strconv.Itoa(filter.Offset)},
	}
	for k, v := range map[string]string{"search": filter.Search, "role": filter.Role, "status": filter.Status} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var list user.UserList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/users", query: q}, &list)
	if list.Users == nil {
		list.Users = []user.User{}
	}
	return list, err
}

func (c *Client) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/admin/users", body: nu}, &usr)
	return usr, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) (user.User, error) {
	var usr user.User
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/v1/admin/users/" + url.PathEscape(id), body: uu}, &usr)
	return usr, notFound(err, user.ErrNotFound)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/v1/admin/users/" + url.PathEscape(id)}, nil)
	return notFound(err, user.ErrNotFound)
}

func (c *Client) QueryRoles(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/roles"}, &roles)
	return roles, err
}

func (c *Client) CreateRole(ctx context.Context, nr user.NewRole) (user.Role, error) {
	var r user.Role
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/admin/roles", body: nr}, &r)
	return r, err
}

func (c *Client) UpdateRole(ctx context.Context, id string, ur user.UpdateRole) error {
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/v1/admin/roles/" + url.PathEscape(id), body: ur}, nil)
	return notFound(err, user.ErrRoleNotFound)
}

func (c *Client) DeleteRole(ctx context.Context, id string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/v1/admin/roles/" + url.PathEscape(id)}, nil)
	return notFound(err, user.ErrRoleNotFound)
}

func (c *Client) QueryAuditLogs(ctx context.Context, filter user.AuditLogFilter) (user.AuditLogList, error) {
	q := url.Values{
		"limit":  {strconv.Itoa(filter.Limit)},
		"offset": {strconv.Itoa(filter.Offset)},
	}
	for k, v := range map[string]string{
		"date_from": filter.DateFrom,
		"date_to":   filter.DateTo,
		"user_id":   filter.UserID,
		"action":    filter.Action,
		"resource":  filter.Resource,
		"search":    filter.Search,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var list user.AuditLogList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/audit-logs", query: q}, &list)
	return list, err
}

func (c *Client) QueryIntegrations(ctx context.Context) ([]user.Integration, error) {
	var list []user.Integration
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/integrations"}, &list)
	return list, err
}

func (c *Client) ConnectIntegration(ctx context.Context, ni user.NewIntegration) error {
	path := "/api/v1/admin/integrations/" + url.PathEscape(ni.Type) + "/connect"
	return c.do(ctx, request{method: http.MethodPost, path: path, body: ni}, nil)
}

func (c *Client) DisconnectIntegration(ctx context.Context, typ string) error {
	path := "/api/v1/admin/integrations/" + url.PathEscape(typ) + "/disconnect"
	err := c.do(ctx, request{method: http.MethodDelete, path: path}, nil)
	return notFound(err, user.ErrIntegrationNotFound)
}

func (c *Client) QueryIntegrationLogs(ctx context.Context, limit int) (user.IntegrationLogList, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var list user.IntegrationLogList
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/integrations/logs", query: q}, &list)
	return list, err
}

func (c *Client) SystemHealth(ctx context.Context) (user.SystemHealth, error) {
	var h user.SystemHealth
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/admin/health"}, &h)
	return h, err
}
