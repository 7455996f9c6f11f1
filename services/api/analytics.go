package apisvc

import (
	"context"
	"net/http"
	"time"

	"github.com/trezcool/admissions/core/analytics"
)

var _ analytics.Repository = (*Client)(nil)

func (c *Client) Dashboard(ctx context.Context, filter analytics.Filter) (analytics.Dashboard, error) {
	var d analytics.Dashboard
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/analytics/dashboard",
		query:  filter.Values(time.Local),
	}, &d)
	return d, err
}
