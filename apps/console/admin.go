package console

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/user"
)

func (h *handlers) queryUsers(c echo.Context) error {
	s := session(c)
	filter := user.QueryFilter{
		Search: c.QueryParam("search"),
		Role:   c.QueryParam("role"),
		Status: c.QueryParam("status"),
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	users, err := s.Users.QueryUsers(c.Request().Context(), s.Access, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *handlers) createUser(c echo.Context) error {
	s := session(c)
	var data user.NewUser
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := s.Users.CreateUser(c.Request().Context(), s.Access, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, usr)
}

func (h *handlers) updateUser(c echo.Context) error {
	s := session(c)
	var data user.UpdateUser
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	usr, err := s.Users.UpdateUser(c.Request().Context(), s.Access, c.Param("id"), data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usr)
}

func (h *handlers) deleteUser(c echo.Context) error {
	s := session(c)
	if err := s.Users.DeleteUser(c.Request().Context(), s.Access, s.Profile.ID, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) queryRoles(c echo.Context) error {
	s := session(c)
	roles, err := s.Users.Roles(c.Request().Context(), s.Access)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *handlers) createRole(c echo.Context) error {
	s := session(c)
	var data user.NewRole
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRole")
	}
	role, err := s.Users.CreateRole(c.Request().Context(), s.Access, data)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

func (h *handlers) updateRole(c echo.Context) error {
	s := session(c)
	var data user.UpdateRole
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRole")
	}
	ctx := c.Request().Context()
	role, err := s.Users.Role(ctx, s.Access, c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.Users.UpdateRole(ctx, s.Access, role, data); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteRole(c echo.Context) error {
	s := session(c)
	ctx := c.Request().Context()
	role, err := s.Users.Role(ctx, s.Access, c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.Users.DeleteRole(ctx, s.Access, role); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) togglePermission(c echo.Context) error {
	s := session(c)
	ctx := c.Request().Context()
	role, err := s.Users.Role(ctx, s.Access, c.Param("id"))
	if err != nil {
		return err
	}
	role, err = s.Users.TogglePermission(ctx, s.Access, role, access.Capability(c.Param("capability")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

type auditLogResponse struct {
	user.AuditLog
	Actor   string `json:"actor"`
	Summary string `json:"summary"`
}

func (h *handlers) queryAuditLogs(c echo.Context) error {
	s := session(c)
	filter := user.AuditLogFilter{
		DateFrom: c.QueryParam("date_from"),
		DateTo:   c.QueryParam("date_to"),
		UserID:   c.QueryParam("user_id"),
		Action:   c.QueryParam("action"),
		Resource: c.QueryParam("resource"),
		Search:   c.QueryParam("search"),
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	list, err := s.Users.AuditLogs(c.Request().Context(), s.Access, filter)
	if err != nil {
		return err
	}
	logs := make([]auditLogResponse, len(list.Logs))
	for i, l := range list.Logs {
		logs[i] = auditLogResponse{AuditLog: l, Actor: l.Actor(), Summary: l.Summary()}
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": logs, "total": list.Total, "page": list.Page, "limit": list.Limit})
}

func (h *handlers) queryIntegrations(c echo.Context) error {
	s := session(c)
	list, err := s.Users.Integrations(c.Request().Context(), s.Access)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *handlers) connectIntegration(c echo.Context) error {
	s := session(c)
	var data user.NewIntegration
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewIntegration")
	}
	data.Type = c.Param("type")
	if err := s.Users.ConnectIntegration(c.Request().Context(), s.Access, data); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) disconnectIntegration(c echo.Context) error {
	s := session(c)
	if err := s.Users.DisconnectIntegration(c.Request().Context(), s.Access, c.Param("type")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) queryIntegrationLogs(c echo.Context) error {
	s := session(c)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := s.Users.IntegrationLogs(c.Request().Context(), s.Access, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *handlers) systemHealth(c echo.Context) error {
	s := session(c)
	health, err := s.Users.Health(c.Request().Context(), s.Access)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"health": health, "healthy": health.Healthy()})
}
