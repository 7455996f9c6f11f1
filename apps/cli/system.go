package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admissions/apps/console"
	apisvc "github.com/trezcool/admissions/services/api"
	cachesvc "github.com/trezcool/admissions/services/cache"
	"github.com/trezcool/admissions/storage/database"
	sqlxrepos "github.com/trezcool/admissions/storage/database/sqlx"
)

const shutdownTimeout = 10 * time.Second

func newCacheCmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or upgrade the SQLite cache schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if cli.conf.Cache.Driver != cachesvc.DriverSQLite {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing to migrate for the %q cache.\n", cli.conf.Cache.Driver)
					return nil
				}
				db, err := database.Open(cli.conf)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := database.Migrate(db); err != nil {
					return err
				}
				swept, err := cachesvc.NewSQLiteCache(sqlxrepos.NewSnapshotRepository(db)).Sweep(cmd.Context())
				if err != nil {
					return errors.Wrap(err, "sweeping expired cache entries")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s (%d expired entries removed)\n", cli.conf.Cache.DBPath, swept)
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached lead list and board",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := cli.cache.Clear(cmd.Context()); err != nil {
					return errors.Wrap(err, "clearing cache")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			},
		},
	)
	return cmd
}

func newServeCmd(cli *commandLine) *cobra.Command {
	var (
		addr    string
		quietly bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cli.conf.Server.Address
			}
			srv := console.NewServer(
				&console.Options{Address: addr, DisableReqLogs: quietly},
				&console.Deps{
					Conf:       cli.conf,
					Logger:     cli.logger,
					Cache:      cli.cache,
					API:        apisvc.New(cli.conf, cli.logger),
					Validate:   cli.validate,
					Translator: cli.translator,
					Now:        cli.now,
				},
			)

			cli.logger.Info(fmt.Sprintf("console starting : version %q on %s", cli.conf.Build, addr))
			defer cli.logger.Info("console stopped")

			errs := make(chan error, 1)
			go func() { errs <- srv.Start() }()

			select {
			case err := <-errs:
				if err != nil && err != http.ErrServerClosed {
					return errors.Wrap(err, "console server")
				}
				return nil
			case <-cmd.Context().Done():
				cli.logger.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return errors.Wrap(srv.Stop(ctx), "stopping console")
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.address)")
	cmd.Flags().BoolVar(&quietly, "quiet", false, "no request logs")
	return cmd
}
