package console

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/admissions/core"
	apisvc "github.com/trezcool/admissions/services/api"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Cache      core.Cache
		API        *apisvc.Client
		Validate   *validator.Validate
		Translator ut.Translator
		Now        func() time.Time
	}

	Options struct {
		Address        string
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
		Sessions() *SessionStore
	}

	server struct {
		opts     *Options
		deps     *Deps
		app      *echo.Echo
		sessions *SessionStore
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options, deps *Deps) Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &server{
		opts:     opts,
		deps:     deps,
		app:      echo.New(),
		sessions: NewSessionStore(deps),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: newRequestID}))
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.HTTPErrorHandler = newHTTPErrorHandler(s.deps, s.sessions)
	s.app.Debug = conf.Debug

	h := &handlers{deps: s.deps, sessions: s.sessions}

	s.app.GET("/", h.home)
	s.app.GET("/login", h.loginPage)
	s.app.POST("/login", h.login)
	s.app.POST("/logout", h.logout)

	api := s.app.Group("/api", sessionMiddleware(s.sessions))
	api.GET("/me", h.me)
	api.GET("/home", h.overview)
	api.GET("/toasts", h.toasts)

	pg := api.Group("/pipeline")
	pg.GET("", h.board)
	pg.POST("/move", h.move)
	pg.POST("/refresh", h.refreshBoard)
	pg.POST("/:status/more", h.moreCards)
	pg.GET("/summary", h.summary)

	lg := api.Group("/leads")
	lg.GET("", h.listLeads)
	lg.PATCH("/view", h.updateListView)
	lg.POST("/view/more", h.moreLeads)
	lg.GET("/export.csv", h.exportLeads)
	lg.POST("", h.createLead)
	lg.GET("/:id", h.getLead)
	lg.PATCH("/:id/assign", h.assignLead)

	api.GET("/dashboard", h.dashboard)

	ng := api.Group("/notifications")
	ng.GET("", h.notifications)
	ng.POST("/mark-all-read", h.markAllRead)
	ng.POST("/:id/read", h.markRead)

	rg := api.Group("/reports")
	rg.GET("/templates", h.reportTemplates)
	rg.POST("/export", h.exportReport)

	ag := api.Group("/admin", adminMiddleware)
	ag.GET("/users", h.queryUsers)
	ag.POST("/users", h.createUser)
	ag.PATCH("/users/:id", h.updateUser)
	ag.DELETE("/users/:id", h.deleteUser)
	ag.GET("/roles", h.queryRoles)
	ag.POST("/roles", h.createRole)
	ag.PATCH("/roles/:id", h.updateRole)
	ag.DELETE("/roles/:id", h.deleteRole)
	ag.POST("/roles/:id/permissions/:capability", h.togglePermission)
	ag.GET("/audit-logs", h.queryAuditLogs)
	ag.GET("/integrations", h.queryIntegrations)
	ag.GET("/integrations/logs", h.queryIntegrationLogs)
	ag.POST("/integrations/:type/connect", h.connectIntegration)
	ag.DELETE("/integrations/:type/disconnect", h.disconnectIntegration)
	ag.GET("/health", h.systemHealth)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	defer s.sessions.CloseAll()
	return s.app.Shutdown(ctx)
}

func (s *server) Sessions() *SessionStore { return s.sessions }

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
