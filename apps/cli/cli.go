// Package cli is the admissions command line: the same views as the console, in a terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/user"
	apisvc "github.com/trezcool/admissions/services/api"
	cachesvc "github.com/trezcool/admissions/services/cache"
	emailsvc "github.com/trezcool/admissions/services/email"
	logsvc "github.com/trezcool/admissions/services/logger"
)

var readPasswordFunc = term.ReadPassword // mockable

var errNotSignedIn = errors.New("not signed in, run `admissions login`")

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	cache      cachesvc.Store
	validate   *validator.Validate
	translator ut.Translator
	mailer     core.EmailService
	tokens     *tokenStore
	now        func() time.Time
	stdin      int // fd the token prompt reads from

	zap     *logsvc.ZapLogger
	closers []io.Closer

	verbose   bool
	tokenFile string
}

// Execute runs the command line until ctx is done.
func Execute(ctx context.Context) error {
	cli := &commandLine{now: time.Now, stdin: int(os.Stdin.Fd())}
	root := newRootCmd(cli)
	err := root.ExecuteContext(ctx)
	if core.IsSessionExpired(err) {
		if cli.tokens != nil {
			_ = cli.tokens.Clear()
		}
		fmt.Fprintln(root.ErrOrStderr(), "session expired, run `admissions login`")
	}
	return err
}

func newRootCmd(cli *commandLine) *cobra.Command {
	root := &cobra.Command{
		Use:           "admissions",
		Short:         "School admissions pipeline from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cli.teardown()
		},
	}
	root.PersistentFlags().BoolVarP(&cli.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&cli.tokenFile, "token-file", "", "where the access token is kept (default: user config dir)")

	root.AddCommand(
		newLoginCmd(cli),
		newLogoutCmd(cli),
		newWhoamiCmd(cli),
		newLeadsCmd(cli),
		newPipelineCmd(cli),
		newSLACmd(cli),
		newDashboardCmd(cli),
		newNotificationsCmd(cli),
		newReportsCmd(cli),
		newCacheCmd(cli),
		newServeCmd(cli),
	)
	return root
}

// setup fills whatever the caller did not inject.
func (cli *commandLine) setup(cmd *cobra.Command) error {
	if cli.now == nil {
		cli.now = time.Now
	}
	if cli.conf == nil {
		conf, err := core.LoadConfig()
		if err != nil {
			return err
		}
		cli.conf = conf
	}
	if cli.verbose {
		cli.conf.Debug = true
	}
	if cli.logger == nil {
		zl, err := logsvc.NewZap(cli.conf.Debug)
		if err != nil {
			return err
		}
		cli.zap = logsvc.NewZapLogger(zl)
		cli.logger = logsvc.New(cli.conf, cli.zap)
	}
	if cli.cache == nil {
		store, closer, err := cachesvc.New(cli.conf)
		if err != nil {
			return err
		}
		cli.cache = store
		cli.closers = append(cli.closers, closer)
	}
	if cli.validate == nil {
		cli.validate, cli.translator = core.NewValidator()
		lead.RegisterValidators(cli.validate, cli.translator)
		user.RegisterValidators(cli.validate, cli.translator)
	}
	if cli.mailer == nil {
		cli.mailer = emailsvc.New(cli.conf, cmd.OutOrStdout(), cli.logger)
	}
	if cli.tokens == nil {
		tokens, err := newTokenStore(cli.tokenFile)
		if err != nil {
			return err
		}
		cli.tokens = tokens
	}
	return nil
}

func (cli *commandLine) teardown() {
	for _, c := range cli.closers {
		if err := c.Close(); err != nil {
			cli.logger.Warn("closing", err)
		}
	}
	cli.closers = nil
	if cli.zap != nil {
		_ = cli.zap.Sync()
	}
}

// session is the signed-in user and the services bound to their token.
type session struct {
	client  *apisvc.Client
	profile user.Profile
	access  access.Set
	users   *user.Service
	leads   *lead.Service
	cache   core.Cache
}

func (cli *commandLine) session(ctx context.Context) (*session, error) {
	token, err := cli.tokens.Load()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errNotSignedIn
	}
	return cli.signIn(ctx, token)
}

func (cli *commandLine) signIn(ctx context.Context, token string) (*session, error) {
	client := apisvc.New(cli.conf, cli.logger).WithToken(token)
	users := user.NewService(client, cli.validate, cli.logger)
	profile, err := users.Me(ctx)
	if err != nil {
		return nil, err
	}
	cache := cachesvc.NewScoped(cli.cache, "user:"+profile.ID+":")
	return &session{
		client:  client,
		profile: profile,
		access:  profile.Access(),
		users:   users,
		leads:   lead.NewService(client, cache, cli.conf.Cache.TTL, cli.validate, cli.logger),
		cache:   cache,
	}, nil
}

// fieldErrors prints validation failures one per line and returns err unchanged.
func (cli *commandLine) fieldErrors(w io.Writer, err error) error {
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for fld, msg := range core.TranslateErrors(e, cli.translator) {
			fmt.Fprintf(w, "  %s: %s\n", fld, msg)
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Error)
		}
	}
	return err
}
