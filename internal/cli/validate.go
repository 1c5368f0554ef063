package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rtn/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Schema bool // print the CUE schema instead of validating
	Env    bool // apply RTN_* overrides before validating
	Print  bool // print the effective config on success
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Path   string         `json:"path,omitempty"`
	Config *config.Config `json:"config,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [config.yaml]",
		Short: "Validate a configuration file",
		Long: `Validate an rtn configuration file against the embedded CUE schema.

Without a file the built-in defaults are validated. Unknown keys are
rejected. With --env, RTN_* environment overrides are applied first.

Example:
  rtn validate ./rtn.yaml
  rtn validate --env --print ./rtn.yaml
  rtn validate --schema`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Schema, "schema", false, "print the config schema and exit")
	cmd.Flags().BoolVar(&opts.Env, "env", false, "apply RTN_* environment overrides")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "print the effective config as YAML")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Schema {
		if formatter.JSON() {
			return formatter.Success(map[string]string{"schema": config.Schema()})
		}
		fmt.Fprint(cmd.OutOrStdout(), config.Schema())
		return nil
	}

	formatter.VerboseLog("Validating config: %s", displayPath(path))

	var (
		cfg *config.Config
		err error
	)
	if opts.Env {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFile(path)
	}
	if err != nil {
		var vErr *config.ValidationError
		if errors.As(err, &vErr) {
			_ = formatter.Error(ErrCodeConfig, "config failed schema validation", vErr.Details)
			return NewExitError(ExitFailure, "validation failed")
		}
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	if formatter.JSON() {
		result := ValidationResult{Valid: true, Path: path}
		if opts.Print {
			result.Config = cfg
		}
		return formatter.Success(result)
	}

	formatter.Check(true, "config valid: %s", displayPath(path))
	if opts.Print {
		data, err := cfg.YAML()
		if err != nil {
			return WrapExitError(ExitCommandError, "render config", err)
		}
		cmd.OutOrStdout().Write(data)
	}
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
