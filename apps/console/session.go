package console

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/leadlist"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/pipeline"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/user"
	cachesvc "github.com/trezcool/admissions/services/cache"
)

const (
	cookieName        = "admissions_session"
	contextSessionKey = "session"
)

// Claims is the content of the session cookie. The bearer token never leaves the server.
type Claims struct {
	jwt.StandardClaims
	SessionID string `json:"sid"`
}

// Session is one signed-in browser: its token, capabilities and stateful views.
type Session struct {
	ID      string
	Profile user.Profile
	Access  access.Set

	Leads         *lead.Service
	Users         *user.Service
	Analytics     *analytics.Service
	Notifications *notification.Service
	Reports       *report.Service
	Board         *pipeline.Board
	List          *leadlist.View

	toasts     toastQueue
	boardStale atomic.Bool
	listLoaded atomic.Bool
	expiresAt  time.Time
}

// MarkBoardStale makes the next board read resync from the API.
func (s *Session) MarkBoardStale() { s.boardStale.Store(true) }

func (s *Session) close() { s.List.Close() }

type toastQueue struct {
	mu   sync.Mutex
	list []core.Toast
}

func (q *toastQueue) Notify(t core.Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.list = append(q.list, t)
}

func (q *toastQueue) drain() []core.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.list
	q.list = nil
	if list == nil {
		list = []core.Toast{}
	}
	return list
}

// SessionStore keeps sessions in memory. Sessions die with the process.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	deps     *Deps
	now      func() time.Time
}

func NewSessionStore(deps *Deps) *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session), deps: deps, now: deps.Now}
}

// Create signs token in: the profile is fetched once and turned into the session's capability set.
func (st *SessionStore) Create(ctx context.Context, token string) (*Session, error) {
	d := st.deps
	client := d.API.WithToken(token)
	users := user.NewService(client, d.Validate, d.Logger)
	profile, err := users.Me(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "signing in")
	}

	s := &Session{
		ID:            uuid.NewString(),
		Profile:       profile,
		Access:        profile.Access(),
		Users:         users,
		Analytics:     analytics.NewService(client, d.Validate),
		Notifications: notification.NewService(client, d.Logger),
		Reports:       report.NewService(client, d.Validate, d.Logger),
		expiresAt:     st.now().Add(d.Conf.Server.SessionExpirationDelta),
	}
	cache := cachesvc.NewScoped(d.Cache, "user:"+profile.ID+":")
	s.Leads = lead.NewService(client, cache, d.Conf.Cache.TTL, d.Validate, d.Logger)
	s.Board = pipeline.NewBoard(s.Leads, pipeline.Options{
		Cache:    cache,
		TTL:      d.Conf.Cache.TTL,
		Notifier: &s.toasts,
		Logger:   d.Logger,
		Now:      st.now,
	})
	s.List = leadlist.NewView(s.Leads, leadlist.Options{
		Debounce: d.Conf.SearchDebounce,
		Logger:   d.Logger,
	})
	s.MarkBoardStale()

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	d.Logger.Info("session started", profile)
	return s, nil
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if st.now().After(s.expiresAt) {
		delete(st.sessions, id)
		go s.close()
		return nil, false
	}
	return s, true
}

func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.close()
	}
}

// Len is the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// CloseAll ends every session; used on shutdown.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

func (st *SessionStore) cookie(s *Session) (*http.Cookie, error) {
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    st.deps.Conf.AppName,
			Subject:   s.Profile.ID,
			IssuedAt:  st.now().Unix(),
			ExpiresAt: s.expiresAt.Unix(),
		},
		SessionID: s.ID,
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(st.deps.Conf.Server.SecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "signing session cookie")
	}
	return &http.Cookie{
		Name:     cookieName,
		Value:    ss,
		Path:     "/",
		Expires:  s.expiresAt,
		HttpOnly: true,
		Secure:   !st.deps.Conf.Debug,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// sessionID verifies the cookie signature and expiry.
func (st *SessionStore) sessionID(value string) (string, error) {
	claims := &Claims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	_, err := parser.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(st.deps.Conf.Server.SecretKey), nil
	})
	if err != nil || claims.SessionID == "" {
		return "", core.ErrSessionExpired
	}
	return claims.SessionID, nil
}

func clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// sessionMiddleware loads the session named by the cookie, or fails with core.ErrSessionExpired.
func sessionMiddleware(st *SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(cookieName)
			if err != nil {
				return core.ErrSessionExpired
			}
			id, err := st.sessionID(ck.Value)
			if err != nil {
				return err
			}
			s, ok := st.Get(id)
			if !ok {
				return core.ErrSessionExpired
			}
			c.Set(contextSessionKey, s)
			return next(c)
		}
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := session(c).Access.RequireAdmin(); err != nil {
			return err
		}
		return next(c)
	}
}

func session(c echo.Context) *Session {
	s, _ := c.Get(contextSessionKey).(*Session)
	return s
}
