package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rtn/internal/bus"
	"github.com/roach88/rtn/internal/clock"
	"github.com/roach88/rtn/internal/config"
	"github.com/roach88/rtn/internal/effector"
	"github.com/roach88/rtn/internal/presenter"
	"github.com/roach88/rtn/internal/scheduler"
	"github.com/roach88/rtn/internal/sessionlog"
	"github.com/roach88/rtn/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Database   string

	// Input overrides the signal source (for testing).
	// If nil, stdin is used.
	Input io.Reader
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the routine",
		Long: `Run the response-to-name routine on this host.

The routine waits for a touch, then calls the child by name every few
seconds, switches to the special phrase, and ends when a face is seen or
the calls run out. Signals are read from stdin, one per line:

  touch                       start a session
  face                        a face was detected
  face-invalid                a malformed detection
  sound <label> [feature...]  a sound classification
  quit                        stop

With --db every closed session log is imported into the archive.

Example:
  rtn run --config ./rtn.yaml
  rtn run --db ./rtn.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "archive closed sessions into this SQLite database")

	return cmd
}

func runHost(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	policy, err := cfg.Policy()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.DB
	}
	var st *store.Store
	if dbPath != "" {
		slog.Info("opening archive", "path", dbPath)
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open archive", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing archive", "error", closeErr)
			}
		}()
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := commandContext(cmd)
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	b := bus.New()
	if err := policy.Events.Declare(b); err != nil {
		return WrapExitError(ExitCommandError, "failed to declare events", err)
	}
	busDone := make(chan error, 1)
	go func() {
		busDone <- b.Run(ctx)
	}()

	out := cmd.OutOrStdout()
	sched := scheduler.New(b, &effector.LogClassifier{},
		scheduler.WithPolicy(policy),
		scheduler.WithCloseHook(func(info scheduler.SessionInfo) {
			fmt.Fprintf(out, "session %d closed: %s (%s)\n",
				info.Number, sessionlog.OutcomeString(info.Outcome), info.LogPath)
			if st != nil {
				archiveClosed(context.WithoutCancel(ctx), st, info)
			}
		}),
	)
	player := effector.NewPlayer(cfg.Effector.Command, cfg.Assets())
	pres := presenter.New(b, player, sched, policy.Events, presenter.WithFade(cfg.Fade()))

	if err := pres.Arm(ctx); err != nil {
		cancel()
		<-busDone
		return WrapExitError(ExitFailure, "failed to arm", err)
	}

	slog.Info("routine armed", "trigger", policy.Events.Trigger, "log_dir", policy.LogDir)
	fmt.Fprintln(out, "Armed. Type 'touch' to start a session, 'quit' to stop.")

	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	lines := readLines(ctx, input)

	readErr := hostLoop(ctx, b, policy.Events, lines, clock.System{})

	// Shutdown: no new sessions, drain in-flight deliveries, then stop
	// whatever session is still running
	if err := pres.Disarm(); err != nil {
		slog.Debug("disarm", "error", err)
	}
	cancel()
	if err := <-busDone; err != nil && err != context.Canceled {
		slog.Error("bus error", "error", err)
	}
	if err := sched.Stop(); err != nil {
		slog.Error("error stopping session", "error", err)
	}

	slog.Info("routine stopped", "sessions", sched.Sessions())
	if readErr != nil {
		return WrapExitError(ExitCommandError, "failed to read input", readErr)
	}
	return nil
}

// hostLoop publishes input lines until quit, end of input or cancellation.
func hostLoop(ctx context.Context, b bus.PubSub, events scheduler.Events, lines <-chan lineOrErr, clk clock.Clock) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return l.err
			}
			in, err := parseInput(events, l.line, clk.Now())
			if err != nil {
				slog.Warn("ignoring input", "error", err)
				continue
			}
			if in.Quit {
				return nil
			}
			if in.Event == "" {
				continue
			}
			if err := b.Publish(in.Event, in.Payload); err != nil {
				slog.Error("publish failed", "event", in.Event, "error", err)
			}
		}
	}
}

type lineOrErr struct {
	line string
	err  error
}

// readLines scans r on its own goroutine. The channel closes at end of input.
func readLines(ctx context.Context, r io.Reader) <-chan lineOrErr {
	ch := make(chan lineOrErr)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- lineOrErr{line: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case ch <- lineOrErr{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// archiveClosed imports a closed session log. Failures are logged only;
// the log file stays on disk for a later archive run.
func archiveClosed(ctx context.Context, st *store.Store, info scheduler.SessionInfo) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	imp, err := st.ImportSession(ctx, info.LogPath)
	if err != nil {
		slog.Error("archive session failed", "session", info.Number, "path", info.LogPath, "error", err)
		return
	}
	slog.Info("session archived", "session", info.Number, "id", imp.ID, "inserted", imp.Inserted)
}
