package apisvc

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/admissions/core/notification"
)

var _ notification.Repository = (*Client)(nil)

func (c *Client) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := url.Values{"limit": {strconv.Itoa(filter.Limit)}}
	if filter.UnreadOnly {
		q.Set("unread_only", "true")
	}
	var list []notification.Notification
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/notifications", query: q}, &list)
	return list, err
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPatch, path: "/api/v1/notifications/" + url.PathEscape(id) + "/read"}, nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/api/v1/notifications/mark-all-read"}, nil)
}
