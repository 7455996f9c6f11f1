package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trezcool/admissions/apps/cli/tui"
	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/pipeline"
)

func (cli *commandLine) board(s *session, notifier core.Notifier) *pipeline.Board {
	return pipeline.NewBoard(s.leads, pipeline.Options{
		Cache:    s.cache,
		TTL:      cli.conf.Cache.TTL,
		Notifier: notifier,
		Logger:   cli.logger,
		Now:      cli.now,
	})
}

func printToasts(w io.Writer) core.Notifier {
	return core.NotifierFunc(func(t core.Toast) {
		if t.Description != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", t.Level, t.Title, t.Description)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", t.Level, t.Title)
	})
}

func newLeadsMoveCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "move ID STATUS",
		Short: "Move a lead to another pipeline stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := lead.ParseStatus(args[1])
			if err != nil {
				return err
			}
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.access.Require(access.LeadsEdit); err != nil {
				return err
			}

			board := cli.board(s, printToasts(cmd.OutOrStdout()))
			cols, err := board.Resync(cmd.Context())
			if err != nil {
				return err
			}
			from, idx, ok := cols.Find(args[0])
			if !ok {
				return pipeline.ErrLeadNotFound
			}
			if from == to {
				fmt.Fprintf(cmd.OutOrStdout(), "Already in %s\n", to.Label())
				return nil
			}
			return board.Move(cmd.Context(), pipeline.Drop{
				LeadID:      args[0],
				Source:      pipeline.Location{Status: from, Index: idx},
				Destination: &pipeline.Location{Status: to},
			})
		},
	}
}

func newPipelineCmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "The admissions pipeline board",
	}
	cmd.AddCommand(newBoardCmd(cli), newSummaryCmd(cli))
	return cmd
}

func newBoardCmd(cli *commandLine) *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board, or browse and move cards with -i",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			if interactive {
				notifier := tui.NewToastQueue()
				board := cli.board(s, notifier)
				return tui.Run(cmd.Context(), tui.Options{
					Board:   board,
					Toasts:  notifier,
					CanEdit: s.access.Has(access.LeadsEdit),
					Now:     cli.now,
					Logger:  cli.logger,
				})
			}

			board := cli.board(s, printToasts(cmd.ErrOrStderr()))
			if _, err := board.Resync(cmd.Context()); err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), board.View(cli.now()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "interactive terminal board")
	return cmd
}

func printBoard(w io.Writer, v pipeline.View) {
	for _, col := range v.Columns {
		fmt.Fprintf(w, "== %s (%d", col.Label, col.Count)
		if col.Stalled > 0 {
			fmt.Fprintf(w, ", %d overdue", col.Stalled)
		}
		fmt.Fprintln(w, ")")
		for _, c := range col.Cards {
			mark := " "
			if c.Stalled {
				mark = "!"
			}
			fmt.Fprintf(w, " %s %s  %s  %.0fh  [%s]\n", mark, c.ParentName, c.StudentSummary, c.HoursInStage, c.ID)
		}
		if col.HasMore() {
			fmt.Fprintf(w, "   … %d more\n", col.Hidden)
		}
	}
}

func newSummaryCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Leads per stage and how many are past their SLA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			leads, err := s.leads.Query(cmd.Context(), lead.QueryFilter{})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "STAGE\tLEADS\tOVERDUE\t")
			for _, st := range lead.Summarize(leads, cli.now()) {
				fmt.Fprintf(tw, "%s\t%d\t%d\t\n", st.Label, st.Count, st.OverdueCount)
			}
			return tw.Flush()
		},
	}
}
