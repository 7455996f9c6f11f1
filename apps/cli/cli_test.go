package cli

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/pipeline"
	"github.com/trezcool/admissions/core/user"
	cachesvc "github.com/trezcool/admissions/services/cache"
	emailsvc "github.com/trezcool/admissions/services/email"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
	testutil "github.com/trezcool/admissions/tests"
)

type fixture struct {
	cli    *commandLine
	up     *testutil.Upstream
	repo   *testutil.LeadRepository
	mailer *emailsvc.ConsoleService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(tokenEnv, "")

	now := time.Now()
	overdue := testutil.NewLead(t, "l-3", "Ann Lee", lead.StatusNew, now, 30)
	overdue.AssignedTo = null.StringFrom("u-2")
	repo := testutil.NewLeadRepository(
		testutil.NewLead(t, "l-1", "John Smith", lead.StatusNew, now, 2),
		testutil.NewLead(t, "l-2", "Mary Jones", lead.StatusConnected, now, 30),
		overdue,
	)
	up := testutil.NewUpstream(t, repo)
	conf := up.Config()
	conf.Cache.TTL = time.Minute
	mailer := emailsvc.NewConsoleService(conf, nil)

	return &fixture{
		cli: &commandLine{
			conf:   conf,
			logger: testutil.NewLogger(),
			cache:  cachesvc.NewMemoryCache(),
			mailer: mailer,
			tokens: &tokenStore{path: filepath.Join(t.TempDir(), "admissions", "token")},
			now:    time.Now,
		},
		up:     up,
		repo:   repo,
		mailer: mailer,
	}
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(f.cli)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.run(t, "login", "--token", testutil.UpstreamToken)
	require.NoError(t, err)
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantOutput []string
}

func Test_commandLine_login(t *testing.T) {
	f := setup(t)

	_, err := f.run(t, "whoami")
	assert.Equal(t, errNotSignedIn, err)

	_, err = f.run(t, "login", "--token", "nope")
	assert.True(t, core.IsSessionExpired(err))
	_, statErr := os.Stat(f.cli.tokens.path)
	assert.True(t, os.IsNotExist(statErr), "a rejected token is not kept")

	readPassword := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(testutil.UpstreamToken), nil }
	defer func() { readPasswordFunc = readPassword }()
	out, err := f.run(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Jane Doe (manager)")

	tok, err := f.cli.tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, testutil.UpstreamToken, tok)

	out, err = f.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Jane Doe <jane@example.com>")
	assert.Contains(t, out, "leads.edit")

	_, err = f.run(t, "logout")
	require.NoError(t, err)
	_, err = f.run(t, "whoami")
	assert.Equal(t, errNotSignedIn, err)
}

func Test_commandLine_leads(t *testing.T) {
	f := setup(t)
	f.login(t)

	tests := []cliTest{
		{name: "list", args: []string{"leads", "list"}, wantOutput: []string{"John Smith", "Mary Jones", "Ann Lee"}},
		{name: "list by status", args: []string{"leads", "list", "--status", "connected"}, wantOutput: []string{"Mary Jones"}},
		{name: "list with unknown status", args: []string{"leads", "list", "--status", "limbo"}, wantErr: lead.ErrInvalidStatus},
		{name: "show", args: []string{"leads", "show", "l-2"}, wantOutput: []string{"Mary Jones", "Connected, 30h in stage"}},
		{name: "show unknown", args: []string{"leads", "show", "l-404"}, wantErr: lead.ErrNotFound},
		{name: "move to unknown status", args: []string{"leads", "move", "l-1", "limbo"}, wantErr: lead.ErrInvalidStatus},
		{name: "move unknown lead", args: []string{"leads", "move", "l-404", "connected"}, wantErr: pipeline.ErrLeadNotFound},
		{name: "move in place", args: []string{"leads", "move", "l-2", "connected"}, wantOutput: []string{"Already in Connected"}},
		{name: "export needs leads.export", args: []string{"leads", "export"}, wantErr: core.ErrForbidden},
		{name: "assign needs leads.assign", args: []string{"leads", "assign", "l-1", "u-2"}, wantErr: core.ErrForbidden},
		{name: "summary", args: []string{"pipeline", "summary"}, wantOutput: []string{"New Lead", "Connected"}},
		{name: "board", args: []string{"pipeline", "board"}, wantOutput: []string{"== New Lead (2, 1 overdue)", "[l-1]"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := f.run(t, tc.args...)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			for _, want := range tc.wantOutput {
				assert.Contains(t, out, want)
			}
		})
	}
}

func Test_commandLine_leadsMove(t *testing.T) {
	f := setup(t)
	f.login(t)

	out, err := f.run(t, "leads", "move", "l-1", "visit_scheduled")
	require.NoError(t, err)
	assert.Contains(t, out, "[success] Moved to Visit Scheduled")
	assert.Contains(t, out, "[info] Task created: Prepare for Visit")
	l, err := f.repo.GetLead(context.Background(), "l-1")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusVisitScheduled, l.Status)

	f.up.Fail(http.MethodPatch, "/api/v1/leads/l-2/status", http.StatusInternalServerError)
	out, err = f.run(t, "leads", "move", "l-2", "enrolled")
	require.Error(t, err)
	assert.Contains(t, out, "[error] Failed to move lead")
	l, err = f.repo.GetLead(context.Background(), "l-2")
	require.NoError(t, err)
	assert.Equal(t, lead.StatusConnected, l.Status)
}

func Test_commandLine_leadsCreate(t *testing.T) {
	f := setup(t)
	f.login(t)

	out, err := f.run(t, "leads", "create", "--email", "nope")
	require.Error(t, err)
	assert.Contains(t, out, "parent_name: this field is required")
	assert.Zero(t, f.up.Count(http.MethodPost, "/api/v1/leads"))

	out, err = f.run(t, "leads", "create", "--parent", "Kim Park", "--student", "Jo:Grade 3", "--student", "Al")
	require.NoError(t, err)
	assert.Contains(t, out, "Created lead ")
	assert.Equal(t, 1, f.up.Count(http.MethodPost, "/api/v1/leads"))
}

func Test_commandLine_export(t *testing.T) {
	f := setup(t)
	f.up.Profile.Permissions["leads.export"] = true
	f.login(t)

	out, err := f.run(t, "leads", "export", "--fields", "parent_name,status", "--sort", "parent_name")
	require.NoError(t, err)
	assert.Equal(t, "parent_name,status\nAnn Lee,new\nJohn Smith,new\nMary Jones,connected\n", out)

	path := filepath.Join(t.TempDir(), "report.csv")
	_, err = f.run(t, "reports", "export", "leads_overview", "-o", path)
	require.NoError(t, err)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "parent_name,status\n", string(b))
}

func Test_commandLine_slaCheck(t *testing.T) {
	f := setup(t)
	f.up.Profile.Role = "admin"
	f.up.AddUsers(user.User{ID: "u-2", FullName: "Sam Counselor", Email: "sam@example.com", Status: user.StatusActive})
	f.login(t)

	out, err := f.run(t, "sla", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Sam Counselor (1 overdue)")
	assert.Contains(t, out, "Ann Lee  New Lead  30h  [l-3]")
	assert.Empty(t, f.mailer.Sent())

	out, err = f.run(t, "sla", "check", "--notify")
	require.NoError(t, err)
	assert.Contains(t, out, "Notified 1 of 1 counselors.")
	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "sam@example.com", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "Ann Lee")
}

func Test_commandLine_cacheClear(t *testing.T) {
	f := setup(t)
	f.login(t)

	_, err := f.run(t, "leads", "list")
	require.NoError(t, err)
	assert.NotZero(t, f.cli.cache.(*cachesvc.MemoryCache).Len())

	out, err := f.run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared.")
	assert.Zero(t, f.cli.cache.(*cachesvc.MemoryCache).Len())
}

func Test_commandLine_cacheMigrate(t *testing.T) {
	f := setup(t)
	f.cli.conf.Cache.Driver = cachesvc.DriverSQLite
	f.cli.conf.Cache.DBPath = filepath.Join(t.TempDir(), "cache.db")

	db, err := database.Open(f.cli.conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	snaps := sqlxrepos.NewSnapshotRepository(db)
	past := time.Now().Add(-time.Hour).UnixNano()
	require.NoError(t, snaps.SaveSnapshot(context.Background(), sqlxrepos.Snapshot{Key: "stale", Value: "1", ExpiresAt: past, UpdatedAt: past}))
	require.NoError(t, snaps.SaveSnapshot(context.Background(), sqlxrepos.Snapshot{Key: "fresh", Value: "2", UpdatedAt: past}))
	require.NoError(t, db.Close())

	out, err := f.run(t, "cache", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 expired entries removed)")

	out, err = f.run(t, "cache", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 expired entries removed)")
}
