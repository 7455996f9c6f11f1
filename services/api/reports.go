package apisvc

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/report"
)

const maxExportSize = 64 << 20

var _ report.Repository = (*Client)(nil)

func (c *Client) QueryTemplates(ctx context.Context) ([]report.Template, error) {
	var tmpls []report.Template
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/reports/templates"}, &tmpls)
	return tmpls, err
}

// ExportReport downloads the file, or returns the download link when the API answers with JSON.
func (c *Client) ExportReport(ctx context.Context, req report.ExportRequest) (report.Export, error) {
	resp, err := c.send(ctx, request{method: http.MethodPost, path: "/api/v1/reports/export", body: req})
	if err != nil {
		return report.Export{}, notFound(err, report.ErrNotFound)
	}
	defer resp.Body.Close()

	ctype, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ctype == "application/json" {
		var exp report.Export
		if err := json.NewDecoder(resp.Body).Decode(&exp); err != nil {
			return report.Export{}, &core.TransportError{Err: errors.Wrap(err, "decoding export link")}
		}
		return exp, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportSize))
	if err != nil {
		return report.Export{}, &core.TransportError{Err: errors.Wrap(err, "reading export")}
	}
	exp := report.Export{ContentType: ctype, Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		exp.Filename = params["filename"]
	}
	return exp, nil
}
