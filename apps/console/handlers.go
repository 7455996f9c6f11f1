package console

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/user"
)

var errInvalidToken = errors.New("invalid or expired token")

type handlers struct {
	deps     *Deps
	sessions *SessionStore
}

func newRequestID() string { return uuid.NewString() }

type (
	LoginRequest struct {
		Token string `json:"token" form:"token" validate:"required"`
	}

	MeResponse struct {
		Profile      user.Profile        `json:"profile"`
		IsAdmin      bool                `json:"is_admin"`
		Capabilities []access.Capability `json:"capabilities"`
	}

	OverviewResponse struct {
		Unread        int                         `json:"unread"`
		Notifications []notification.Notification `json:"notifications"`
		Summary       []lead.StageSummary         `json:"summary"`
		Dashboard     *analytics.Dashboard        `json:"dashboard"`
	}
)

func meResponse(s *Session) MeResponse {
	return MeResponse{Profile: s.Profile, IsAdmin: s.Access.IsAdmin(), Capabilities: s.Access.List()}
}

func (h *handlers) home(c echo.Context) error {
	return c.String(http.StatusOK, "Welcome to the "+h.deps.Conf.AppName+" console!")
}

const loginHTML = `<!doctype html>
<html><head><title>Sign in</title></head>
<body>
<form method="post" action="/login">
  <label>Access token <input type="password" name="token" autocomplete="off"></label>
  <button type="submit">Sign in</button>
</form>
</body></html>`

func (h *handlers) loginPage(c echo.Context) error {
	return c.HTML(http.StatusOK, loginHTML)
}

func (h *handlers) login(c echo.Context) error {
	var data LoginRequest
	if err := c.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := h.deps.Validate.Struct(data); err != nil {
		return err
	}

	s, err := h.sessions.Create(c.Request().Context(), data.Token)
	if err != nil {
		if core.IsSessionExpired(err) {
			return core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})
		}
		return err
	}
	ck, err := h.sessions.cookie(s)
	if err != nil {
		h.sessions.Delete(s.ID)
		return err
	}
	c.SetCookie(ck)

	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.JSON(http.StatusOK, meResponse(s))
}

func (h *handlers) logout(c echo.Context) error {
	signOut(c, h.sessions)
	if wantsHTML(c) {
		return c.Redirect(http.StatusSeeOther, "/login")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) me(c echo.Context) error {
	return c.JSON(http.StatusOK, meResponse(session(c)))
}

func (h *handlers) toasts(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).toasts.drain())
}

// overview loads the landing page widgets in parallel. The dashboard is only fetched with finance.view.
func (h *handlers) overview(c echo.Context) error {
	s := session(c)
	var resp OverviewResponse

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		inbox, err := s.Notifications.Inbox(ctx, notification.QueryFilter{Limit: 5})
		resp.Unread, resp.Notifications = inbox.Unread, inbox.Notifications
		return err
	})
	g.Go(func() error {
		if err := h.ensureBoard(ctx, s); err != nil {
			return err
		}
		resp.Summary = s.Board.Summary(h.deps.Now())
		return nil
	})
	if s.Access.Has(access.FinanceView) {
		g.Go(func() error {
			d, err := s.Analytics.Dashboard(ctx, s.Access, analytics.Filter{})
			if err != nil {
				return err
			}
			resp.Dashboard = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ensureBoard resyncs the board when it was never loaded or a mutation elsewhere made it stale.
func (h *handlers) ensureBoard(ctx context.Context, s *Session) error {
	if !s.boardStale.Swap(false) {
		return nil
	}
	s.Board.Warm(ctx)
	if _, err := s.Board.Resync(ctx); err != nil {
		s.MarkBoardStale()
		return err
	}
	return nil
}
