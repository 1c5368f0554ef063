package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/sessionlog"
	"github.com/roach88/rtn/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Session  string // show one session's records
}

// Report is the archive overview.
type Report struct {
	Sessions []store.Session `json:"sessions"`
	Stats    store.Stats     `json:"stats"`
}

// SessionReport is one archived session with its records.
type SessionReport struct {
	Session store.Session  `json:"session"`
	Records []ir.LogRecord `json:"records"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report on archived sessions",
		Long: `List archived sessions with their outcomes and aggregate statistics.

With --session, print one session's records instead.

Example:
  rtn report --db ./rtn.db
  rtn report --db ./rtn.db --session 0190a5c8-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID to show")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openArchive(opts.Database, nil)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)

	if opts.Session != "" {
		sess, err := st.GetSession(ctx, opts.Session)
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("session %s not found", opts.Session), nil)
			return WrapExitError(ExitFailure, "report failed", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		records, err := st.ReadRecords(ctx, opts.Session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read records", err)
		}
		if formatter.JSON() {
			return formatter.Success(SessionReport{Session: sess, Records: records})
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s  %s  %s  %s\n", sess.ID, sess.Name,
			sess.StartedAt.Local().Format("2006-01-02 15:04:05"), sessionlog.OutcomeString(sess.Summary.Outcome))
		for _, rec := range records {
			fmt.Fprint(w, rec.Line())
		}
		return nil
	}

	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compute stats", err)
	}

	if formatter.JSON() {
		return formatter.Success(Report{Sessions: sessions, Stats: stats})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions archived.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tOUTCOME\tCALLS\tFACES\tDURATION")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%ss\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			sessionlog.OutcomeString(s.Summary.Outcome),
			s.Summary.Calls+s.Summary.Phrases,
			s.Summary.Faces,
			ir.FormatElapsed(s.Summary.Duration),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d session(s): %d responded, %d no response, %d incomplete\n",
		stats.Sessions, stats.Responded, stats.NoResponse, stats.Incomplete)
	fmt.Fprintf(w, "mean stimuli %.1f, mean response latency %ss\n",
		stats.MeanCalls, ir.FormatElapsed(stats.MeanLatency))
	return nil
}
