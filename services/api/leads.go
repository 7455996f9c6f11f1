package apisvc

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/admissions/core/lead"
)

var _ lead.Repository = (*Client)(nil)

func (c *Client) QueryLeads(ctx context.Context, filter lead.QueryFilter) ([]lead.Lead, error) {
	q := make(url.Values)
	if !filter.AllStatuses() {
		q.Set("status", filter.Status)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	var leads []lead.Lead
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/leads", query: q}, &leads)
	return leads, err
}

func (c *Client) GetLead(ctx context.Context, id string) (lead.Lead, error) {
	var l lead.Lead
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/leads/" + url.PathEscape(id)}, &l)
	return l, notFound(err, lead.ErrNotFound)
}

func (c *Client) CreateLead(ctx context.Context, nl lead.NewLead) (lead.Lead, error) {
	var l lead.Lead
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/leads", body: nl}, &l)
	return l, err
}

func (c *Client) UpdateLeadStatus(ctx context.Context, id string, status lead.Status) error {
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/v1/leads/" + url.PathEscape(id) + "/status",
		query:  url.Values{"status": {string(status)}},
	}, nil)
	return notFound(err, lead.ErrNotFound)
}

func (c *Client) AssignLead(ctx context.Context, id, assignee string) (lead.Lead, error) {
	var l lead.Lead
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   "/api/v1/leads/" + url.PathEscape(id) + "/assign",
		query:  url.Values{"assigned_to": {assignee}},
	}, &l)
	return l, notFound(err, lead.ErrNotFound)
}
