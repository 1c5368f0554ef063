package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/rtn/internal/config"
	"github.com/roach88/rtn/internal/store"
)

// ArchiveOptions holds flags for the archive command.
type ArchiveOptions struct {
	*RootOptions
	Database string

	// IDGenerator overrides the archive ID generator (for testing).
	// If nil, the store default (UUIDv7) is used.
	IDGenerator store.IDGenerator
}

// ArchivedLog is the archive result for one log file.
type ArchivedLog struct {
	Path     string `json:"path"`
	ID       string `json:"id,omitempty"`
	Inserted bool   `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// NewArchiveCommand creates the archive command.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ArchiveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "archive <log|dir>...",
		Short: "Import session logs into the archive",
		Long: `Import session logs into the SQLite archive.

Directories are scanned for *.txt logs. A log whose content is already
archived is skipped, so archiving the same directory twice is safe.
Without --db the store.db setting (RTN_STORE_DB) is used.

Example:
  rtn archive --db ./rtn.db ./logs
  rtn archive --db ./rtn.db ./2014_4_2_103000_ResponseToName.txt`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite archive")

	return cmd
}

func runArchive(opts *ArchiveOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openArchive(opts.Database, opts.IDGenerator)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer st.Close()

	files, err := collectLogs(paths)
	if err != nil {
		_ = formatter.Error(ErrCodeLog, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to collect logs", err)
	}

	ctx := commandContext(cmd)
	results := make([]ArchivedLog, 0, len(files))
	failed := 0
	for _, file := range files {
		formatter.VerboseLog("Importing %s", file)
		imp, err := st.ImportSession(ctx, file)
		if err != nil {
			failed++
			results = append(results, ArchivedLog{Path: file, Error: err.Error()})
			continue
		}
		results = append(results, ArchivedLog{Path: file, ID: imp.ID, Inserted: imp.Inserted})
	}

	if formatter.JSON() {
		if failed > 0 {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("%d log(s) not archived", failed), results)
		} else if err := formatter.Success(results); err != nil {
			return err
		}
	}
	for _, r := range results {
		name := filepath.Base(r.Path)
		switch {
		case r.Error != "":
			formatter.Check(false, "%s", name)
			formatter.Detail("%s", r.Error)
		case r.Inserted:
			formatter.Check(true, "%s archived as %s", name, r.ID)
		default:
			formatter.Check(true, "%s already archived as %s", name, r.ID)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d log(s) not archived", failed, len(files)))
	}
	return nil
}

// openArchive opens the archive at path, falling back to the configured
// store.db when path is empty.
func openArchive(path string, ids store.IDGenerator) (*store.Store, error) {
	if path == "" {
		cfg, err := config.Load("")
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		path = cfg.Store.DB
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no archive: pass --db or set RTN_STORE_DB")
	}

	var storeOpts []store.Option
	if ids != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(ids))
	}
	st, err := store.Open(path, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open archive", err)
	}
	return st, nil
}

// collectLogs expands directories into their *.txt files, sorted by name.
func collectLogs(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.txt"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
