package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/admissions/core/analytics"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/core/report"
	"github.com/trezcool/admissions/core/sla"
)

func newSLACmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "Leads past their stage SLA",
	}

	var notify bool
	check := &cobra.Command{
		Use:   "check",
		Short: "List overdue leads per counselor, and email them with --notify",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			checker := sla.NewChecker(s.leads, s.users, cli.mailer, cli.logger)
			reports, err := checker.Check(cmd.Context(), s.access)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintln(out, "No overdue leads.")
				return nil
			}
			for _, r := range reports {
				name := r.Owner.FullName
				if name == "" {
					name = r.Owner.ID
				}
				fmt.Fprintf(out, "%s (%d overdue)\n", name, len(r.Leads))
				for _, l := range r.Leads {
					fmt.Fprintf(out, "  %s  %s  %.0fh  [%s]\n", l.ParentName, l.StatusLabel, l.HoursInStage, l.ID)
				}
			}
			if !notify {
				return nil
			}
			sent, err := checker.Notify(cmd.Context(), reports)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Notified %d of %d counselors.\n", sent, len(reports))
			return nil
		},
	}
	check.Flags().BoolVar(&notify, "notify", false, "email each counselor their overdue leads")
	cmd.AddCommand(check)
	return cmd
}

func newDashboardCmd(cli *commandLine) *cobra.Command {
	var filter analytics.Filter
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Admissions KPIs, funnel and counselor performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			dash, err := analytics.NewService(s.client, cli.validate).Dashboard(cmd.Context(), s.access, filter)
			if err != nil {
				return cli.fieldErrors(cmd.ErrOrStderr(), err)
			}

			out := cmd.OutOrStdout()
			k := dash.KPIs
			fmt.Fprintf(out, "Leads: %d  Enrollments: %d  Conversion: %.1f%%  Active: %d\n",
				k.TotalLeads, k.TotalEnrollments, k.ConversionRate, k.ActivePipeline)
			if k.AvgTimeToConvert.Valid {
				fmt.Fprintf(out, "Average time to convert: %.1f days\n", k.AvgTimeToConvert.Float64)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nSTAGE\tLEADS\t%\tDROP-OFF\t")
			for _, st := range dash.Funnel {
				fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t\n", st.StageLabel(), st.Count, st.Percentage, st.DropOffRate)
			}
			fmt.Fprintln(tw, "\nSOURCE\tLEADS\tENROLLED\tCONVERSION\t")
			for _, sc := range dash.ConversionBySource {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t\n", sc.Source, sc.TotalLeads, sc.Enrolled, sc.ConversionRate)
			}
			fmt.Fprintln(tw, "\nCOUNSELOR\tLEADS\tINTERACTIONS\tENROLLED\t")
			for _, cp := range dash.CounselorPerformance {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t\n", cp.CounselorName, cp.TotalLeads, cp.InteractionsCount, cp.Enrollments)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, a := range dash.Alerts {
				fmt.Fprintf(out, "\n[%s] %s: %s", a.Severity, a.Title, a.Description)
			}
			if len(dash.Alerts) > 0 {
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.DateFrom, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.DateTo, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&filter.Source, "source", "", "lead source")
	cmd.Flags().StringVar(&filter.Status, "status", "", "lead status")
	cmd.Flags().StringVar(&filter.AssignedTo, "assigned-to", "", "counselor user id")
	return cmd
}

func newNotificationsCmd(cli *commandLine) *cobra.Command {
	var filter notification.QueryFilter
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Show your notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			inbox, err := notification.NewService(s.client, cli.logger).Inbox(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d unread\n", inbox.Unread)
			for _, n := range inbox.Notifications {
				mark := " "
				if !n.Read {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s  %s: %s  [%s]\n", mark, n.CreatedAt.Local().Format("Jan 02 15:04"), n.Title, n.Message, n.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", notification.DefaultLimit, "how many to show")
	cmd.Flags().BoolVar(&filter.UnreadOnly, "unread", false, "only unread notifications")

	var all bool
	read := &cobra.Command{
		Use:   "read [ID]",
		Short: "Mark a notification, or all of them with --all, as read",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("give a notification id or --all")
			}
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			svc := notification.NewService(s.client, cli.logger)
			if all {
				return svc.MarkAllRead(cmd.Context())
			}
			return svc.MarkRead(cmd.Context(), args[0])
		},
	}
	read.Flags().BoolVar(&all, "all", false, "mark every notification as read")
	cmd.AddCommand(read)
	return cmd
}

func newReportsCmd(cli *commandLine) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Report templates and exports",
	}

	templates := &cobra.Command{
		Use:   "templates",
		Short: "List report templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			list, err := report.NewService(s.client, cli.validate, cli.logger).Templates(cmd.Context(), s.access)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION\t")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", t.ID, t.Name, t.Description)
			}
			return tw.Flush()
		},
	}

	var (
		format string
		output string
	)
	export := &cobra.Command{
		Use:   "export REPORT_ID",
		Short: "Export a report to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			req := report.ExportRequest{ReportID: args[0], Format: report.Format(format)}
			export, err := report.NewService(s.client, cli.validate, cli.logger).Export(cmd.Context(), s.access, req)
			if err != nil {
				return cli.fieldErrors(cmd.ErrOrStderr(), err)
			}
			if len(export.Data) == 0 && export.DownloadURL != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Download: %s\n", export.DownloadURL)
				return nil
			}
			if output == "" {
				output = export.SafeFilename(req.Format)
			}
			if err := os.WriteFile(output, export.Data, 0o644); err != nil {
				return errors.Wrap(err, "writing report")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, len(export.Data))
			return nil
		},
	}
	export.Flags().StringVarP(&format, "format", "f", string(report.FormatCSV), "csv, xlsx or pdf")
	export.Flags().StringVarP(&output, "output", "o", "", "file to write (default: the server's file name)")

	cmd.AddCommand(templates, export)
	return cmd
}
