package console

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/pipeline"
)

// BoardResponse is the board as rendered now, plus the toasts raised since the last response.
// Error is set when a move failed and the board was recovered.
type BoardResponse struct {
	View   pipeline.View `json:"view"`
	Toasts []core.Toast  `json:"toasts"`
	Error  string        `json:"error,omitempty"`
}

func (h *handlers) boardResponse(s *Session) BoardResponse {
	return BoardResponse{View: s.Board.View(h.deps.Now()), Toasts: s.toasts.drain()}
}

func (h *handlers) board(c echo.Context) error {
	s := session(c)
	if err := h.ensureBoard(c.Request().Context(), s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.boardResponse(s))
}

func (h *handlers) refreshBoard(c echo.Context) error {
	s := session(c)
	s.MarkBoardStale()
	return h.board(c)
}

// move applies a drop. Failures the board recovered from (transport, non-success responses)
// are reported in the body with the recovered view; auth failures go to the error handler.
func (h *handlers) move(c echo.Context) error {
	s := session(c)
	if err := s.Access.Require(access.LeadsEdit); err != nil {
		return err
	}
	var drop pipeline.Drop
	if err := c.Bind(&drop); err != nil {
		return errors.Wrap(err, "binding to Drop")
	}

	err := s.Board.Move(c.Request().Context(), drop)
	cause := errors.Cause(err)
	switch {
	case err == nil:
	case cause == pipeline.ErrUnknownColumn, cause == pipeline.ErrLeadNotFound:
		return err
	case core.IsSessionExpired(err), core.IsForbidden(err):
		return err
	default:
		resp := h.boardResponse(s)
		resp.Error = err.Error()
		return c.JSON(http.StatusOK, resp)
	}
	s.listLoaded.Store(false)
	return c.JSON(http.StatusOK, h.boardResponse(s))
}

func (h *handlers) moreCards(c echo.Context) error {
	s := session(c)
	status, err := lead.ParseStatus(c.Param("status"))
	if err != nil {
		return err
	}
	if err := s.Board.LoadMore(status); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.boardResponse(s))
}

func (h *handlers) summary(c echo.Context) error {
	s := session(c)
	if err := h.ensureBoard(c.Request().Context(), s); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Board.Summary(h.deps.Now()))
}
