package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rtn/internal/ir"
	"github.com/roach88/rtn/internal/sessionlog"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Records bool // print every record after the summary
}

// LogReport is the inspection result for one session log.
type LogReport struct {
	Path    string             `json:"path"`
	Valid   bool               `json:"valid"`
	Error   string             `json:"error,omitempty"`
	Summary sessionlog.Summary `json:"summary"`
	Records []ir.LogRecord     `json:"records,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <log>...",
		Short: "Summarize session logs",
		Long: `Read session logs, check that they are well formed, and summarize them.

A log is well formed when every line parses as "tag<TAB>value<TAB>seconds"
and the stamps strictly increase.

Example:
  rtn inspect ./2014_4_2_103000_ResponseToName.txt
  rtn inspect --records --format json ./logs/*.txt`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Records, "records", false, "print every record")

	return cmd
}

func runInspect(opts *InspectOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reports := make([]LogReport, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		formatter.VerboseLog("Reading %s", path)
		report := inspectLog(path, opts.Records)
		if !report.Valid {
			invalid++
		}
		reports = append(reports, report)
	}

	if formatter.JSON() {
		if invalid > 0 {
			if err := formatter.Error(ErrCodeLog, fmt.Sprintf("%d log(s) invalid", invalid), reports); err != nil {
				return err
			}
		} else if err := formatter.Success(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			writeLogReport(formatter, r)
		}
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d log(s) invalid", invalid, len(paths)))
	}
	return nil
}

func inspectLog(path string, withRecords bool) LogReport {
	report := LogReport{Path: path}

	records, err := sessionlog.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Summary = sessionlog.Summarize(records)
	if withRecords {
		report.Records = records
	}

	if err := sessionlog.Validate(records); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Valid = true
	return report
}

func writeLogReport(f *OutputFormatter, r LogReport) {
	f.Check(r.Valid, "%s", filepath.Base(r.Path))
	if !r.Valid {
		f.Detail("%s", r.Error)
		if r.Summary.Records == 0 {
			return
		}
	}

	s := r.Summary
	f.Detail("outcome:         %s", sessionlog.OutcomeString(s.Outcome))
	f.Detail("calls:           %d name, %d phrase, %d completed", s.Calls, s.Phrases, s.Completed)
	f.Detail("faces:           %d", s.Faces)
	f.Detail("classifications: %d (%d articulated)", s.Classifications, s.Articulated)
	f.Detail("duration:        %ss", ir.FormatElapsed(s.Duration))
	if s.Outcome == ir.OutcomeSuccess {
		f.Detail("latency:         %ss", ir.FormatElapsed(s.ResponseLatency))
	}
	for _, rec := range r.Records {
		fmt.Fprint(f.Writer, "  ", rec.Line())
	}
}
