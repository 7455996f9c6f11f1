package console

import (
	"math"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/leadlist"
	"github.com/trezcool/admissions/core/pipeline"
	"github.com/trezcool/admissions/core/report"
)

type (
	ListResponse struct {
		Status   string      `json:"status"`
		Search   string      `json:"search"`
		Ordering string      `json:"ordering"`
		Rows     []lead.Lead `json:"rows"`
		Total    int         `json:"total"`
		Visible  int         `json:"visible"`
		HasMore  bool        `json:"has_more"`
		Loading  bool        `json:"loading"`
		Error    string      `json:"error,omitempty"`
	}

	// ListViewRequest changes the list view. Status and search changes are debounced.
	ListViewRequest struct {
		Status   *string `json:"status"`
		Search   *string `json:"search"`
		SortBy   string  `json:"sort_by"`
		Ordering string  `json:"ordering"`
	}
)

func listResponse(snap leadlist.Snapshot) ListResponse {
	resp := ListResponse{
		Status:   snap.Filter.Status,
		Search:   snap.Filter.Search,
		Ordering: snap.Ordering.String(),
		Rows:     snap.Rows,
		Total:    snap.Total,
		Visible:  snap.Visible,
		HasMore:  snap.HasMore(),
		Loading:  snap.Loading,
	}
	if resp.Status == "" {
		resp.Status = lead.StatusAll
	}
	if resp.Rows == nil {
		resp.Rows = []lead.Lead{}
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

// listResult renders snap. A debounced fetch that failed with 401 or 403 is surfaced like any
// other request would be: sign-out or the denied state.
func listResult(c echo.Context, snap leadlist.Snapshot) error {
	if core.IsSessionExpired(snap.Err) || core.IsForbidden(snap.Err) {
		return snap.Err
	}
	return c.JSON(http.StatusOK, listResponse(snap))
}

func (h *handlers) listLeads(c echo.Context) error {
	s := session(c)
	if s.listLoaded.Load() && c.QueryParam("refresh") == "" {
		return listResult(c, s.List.Snapshot())
	}
	snap, err := s.List.Load(c.Request().Context())
	if err != nil {
		return err
	}
	s.listLoaded.Store(true)
	return listResult(c, snap)
}

func (h *handlers) updateListView(c echo.Context) error {
	s := session(c)
	var data ListViewRequest
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ListViewRequest")
	}
	if data.Status != nil {
		if err := s.List.SetStatus(*data.Status); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "status", Error: "invalid lead status"})
		}
	}
	if data.Search != nil {
		s.List.SetSearch(*data.Search)
	}
	if data.Ordering != "" {
		if err := s.List.SetOrdering(core.ParseOrdering(data.Ordering)); err != nil {
			return err
		}
	} else if data.SortBy != "" {
		if err := s.List.SortBy(data.SortBy); err != nil {
			return err
		}
	}
	s.listLoaded.Store(true)
	return listResult(c, s.List.Snapshot())
}

func (h *handlers) moreLeads(c echo.Context) error {
	s := session(c)
	s.List.ShowMore()
	return listResult(c, s.List.Snapshot())
}

// exportLeads writes every loaded row of the list, in its current order, as CSV.
func (h *handlers) exportLeads(c echo.Context) error {
	s := session(c)
	if err := s.Access.Require(access.LeadsExport); err != nil {
		return err
	}
	var fields []string
	for _, f := range strings.Split(c.QueryParam("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="leads.csv"`)
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return report.WriteLeadsCSV(c.Response(), fields, s.List.All())
}

func (h *handlers) getLead(c echo.Context) error {
	s := session(c)
	l, err := s.Leads.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	now := h.deps.Now()
	return c.JSON(http.StatusOK, pipeline.Card{
		Lead:           l,
		Stalled:        l.IsStalled(now),
		HoursInStage:   math.Floor(lead.HoursInStage(l.UpdatedAt, now)),
		StudentSummary: l.StudentSummary(),
	})
}

func (h *handlers) createLead(c echo.Context) error {
	s := session(c)
	if err := s.Access.Require(access.LeadsCreate); err != nil {
		return err
	}
	var data lead.NewLead
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	l, err := s.Leads.Create(c.Request().Context(), data)
	if err != nil {
		return err
	}
	h.leadsChanged(s)
	return c.JSON(http.StatusCreated, l)
}

func (h *handlers) assignLead(c echo.Context) error {
	s := session(c)
	if err := s.Access.Require(access.LeadsAssign); err != nil {
		return err
	}
	l, err := s.Leads.Assign(c.Request().Context(), c.Param("id"), c.QueryParam("assigned_to"))
	if err != nil {
		return err
	}
	h.leadsChanged(s)
	return c.JSON(http.StatusOK, l)
}

func (h *handlers) leadsChanged(s *Session) {
	s.MarkBoardStale()
	s.listLoaded.Store(false)
}
