package cli

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/access"
	"github.com/trezcool/admissions/core/lead"
	"github.com/trezcool/admissions/core/leadlist"
	"github.com/trezcool/admissions/core/report"
)

func newLeadsCmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List, inspect and update leads",
	}
	cmd.AddCommand(
		newLeadsListCmd(cli),
		newLeadsShowCmd(cli),
		newLeadsCreateCmd(cli),
		newLeadsMoveCmd(cli),
		newLeadsAssignCmd(cli),
		newLeadsExportCmd(cli),
	)
	return cmd
}

type listFlags struct {
	status string
	search string
	sort   string
	all    bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.status, "status", lead.StatusAll, "status filter, or \"all\"")
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "search name, email or phone")
	cmd.Flags().StringVar(&f.sort, "sort", leadlist.DefaultOrdering.String(), "sort field, \"-\" prefix for descending")
}

// load fetches the filtered list once, the way the interactive view does on submit.
func (f *listFlags) load(cmd *cobra.Command, s *session, cli *commandLine) (*leadlist.View, error) {
	qf := lead.QueryFilter{Status: f.status, Search: f.search}
	qf.Clean()
	if !qf.AllStatuses() && !lead.Status(qf.Status).Valid() {
		return nil, lead.ErrInvalidStatus
	}
	view := leadlist.NewView(s.leads, leadlist.Options{Logger: cli.logger, Context: cmd.Context()})
	if err := view.SetOrdering(core.ParseOrdering(f.sort)); err != nil {
		view.Close()
		return nil, err
	}
	if _, err := view.Refresh(cmd.Context(), qf); err != nil {
		view.Close()
		return nil, err
	}
	return view, nil
}

func newLeadsListCmd(cli *commandLine) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			view, err := flags.load(cmd, s, cli)
			if err != nil {
				return err
			}
			defer view.Close()

			snap := view.Snapshot()
			rows := snap.Rows
			if flags.all {
				rows = view.All()
			}
			printLeads(cmd.OutOrStdout(), rows)
			if len(rows) < snap.Total {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d leads, --all to show every one\n", len(rows), snap.Total)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.all, "all", false, "show every row instead of the first page")
	return cmd
}

func printLeads(w io.Writer, leads []lead.Lead) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPARENT\tSTATUS\tSTUDENTS\tUPDATED\t")
	for _, l := range leads {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			l.ID, l.ParentName, l.Status.Label(), l.StudentSummary(), l.UpdatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

func newLeadsShowCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			l, err := s.leads.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLead(cmd.OutOrStdout(), l, cli)
			return nil
		},
	}
}

func printLead(w io.Writer, l lead.Lead, cli *commandLine) {
	now := cli.now()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", l.ID)
	fmt.Fprintf(tw, "parent:\t%s\n", l.ParentName)
	fmt.Fprintf(tw, "email:\t%s\n", l.Email.String)
	fmt.Fprintf(tw, "phone:\t%s\n", l.Phone.String)
	fmt.Fprintf(tw, "source:\t%s\n", l.Source)
	fmt.Fprintf(tw, "assigned to:\t%s\n", l.AssignedTo.String)
	status := l.Status.Label()
	if l.IsStalled(now) {
		status += " (overdue)"
	}
	fmt.Fprintf(tw, "status:\t%s, %.0fh in stage\n", status, math.Floor(lead.HoursInStage(l.UpdatedAt, now)))
	for _, st := range l.Students {
		fmt.Fprintf(tw, "student:\t%s\t%s\n", st.Name, st.GradeApplyingFor.String)
	}
	_ = tw.Flush()
}

func newLeadsCreateCmd(cli *commandLine) *cobra.Command {
	var (
		nl       lead.NewLead
		students []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a lead from the intake form fields",
		Example: `  admissions leads create --parent "Jane Doe" --email jane@example.com \
    --student "Tom:Grade 3" --student "Ann"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.access.Require(access.LeadsCreate); err != nil {
				return err
			}
			for _, st := range students {
				name, grade, _ := strings.Cut(st, ":")
				nl.Students = append(nl.Students, lead.NewStudent{Name: name, GradeApplyingFor: grade})
			}
			l, err := s.leads.Create(cmd.Context(), nl)
			if err != nil {
				return cli.fieldErrors(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created lead %s\n", l.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&nl.ParentName, "parent", "", "parent name")
	cmd.Flags().StringVar(&nl.Email, "email", "", "parent email")
	cmd.Flags().StringVar(&nl.Phone, "phone", "", "parent phone")
	cmd.Flags().StringVar((*string)(&nl.Source), "source", "", "website, walk_in, referral or social")
	cmd.Flags().StringVar(&nl.AssignedTo, "assign", "", "counselor user id")
	cmd.Flags().StringArrayVar(&students, "student", nil, "student as NAME[:GRADE], repeatable")
	return cmd
}

func newLeadsAssignCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID USER_ID",
		Short: "Assign a lead to a counselor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.access.Require(access.LeadsAssign); err != nil {
				return err
			}
			l, err := s.leads.Assign(cmd.Context(), args[0], args[1])
			if err != nil {
				return cli.fieldErrors(cmd.ErrOrStderr(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now assigned to %s\n", l.ParentName, l.AssignedTo.String)
			return nil
		},
	}
}

func newLeadsExportCmd(cli *commandLine) *cobra.Command {
	var (
		flags  listFlags
		fields []string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered leads as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.access.Require(access.LeadsExport); err != nil {
				return err
			}
			view, err := flags.load(cmd, s, cli)
			if err != nil {
				return err
			}
			defer view.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrap(err, "creating export file")
				}
				defer f.Close()
				w = f
			}
			return report.WriteLeadsCSV(w, fields, view.All())
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "columns to export (default: all)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "file to write, - for stdout")
	return cmd
}
