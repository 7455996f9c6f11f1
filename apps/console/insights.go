package console

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/report"
)

func (h *handlers) dashboard(c echo.Context) error {
	s := session(c)
	filter := analytics.Filter{
		DateFrom:   c.QueryParam("date_from"),
		DateTo:     c.QueryParam("date_to"),
		Source:     c.QueryParam("source"),
		Status:     c.QueryParam("status"),
		AssignedTo: c.QueryParam("assigned_to"),
	}
	dash, err := s.Analytics.Dashboard(c.Request().Context(), s.Access, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dash)
}

func (h *handlers) notifications(c echo.Context) error {
	s := session(c)
	var filter notification.QueryFilter
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "limit", Error: "must be a number"})
		}
		filter.Limit = limit
	}
	filter.UnreadOnly, _ = strconv.ParseBool(c.QueryParam("unread_only"))

	inbox, err := s.Notifications.Inbox(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inbox)
}

func (h *handlers) markRead(c echo.Context) error {
	s := session(c)
	if err := s.Notifications.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) markAllRead(c echo.Context) error {
	s := session(c)
	if err := s.Notifications.MarkAllRead(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) reportTemplates(c echo.Context) error {
	s := session(c)
	templates, err := s.Reports.Templates(c.Request().Context(), s.Access)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, templates)
}

// exportReport streams the generated file, or returns the link when the API only hands one out.
func (h *handlers) exportReport(c echo.Context) error {
	s := session(c)
	var data report.ExportRequest
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ExportRequest")
	}
	export, err := s.Reports.Export(c.Request().Context(), s.Access, data)
	if err != nil {
		return err
	}
	if export.DownloadURL != "" && len(export.Data) == 0 {
		return c.JSON(http.StatusOK, export)
	}
	name := export.SafeFilename(data.Format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, export.ContentType, export.Data)
}
