// Package cli provides the sqlforge command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlforge/internal/config"
	"github.com/leapstack-labs/sqlforge/internal/engine"
	"github.com/leapstack-labs/sqlforge/internal/loader"
	"github.com/leapstack-labs/sqlforge/pkg/adapter"
	"github.com/leapstack-labs/sqlforge/pkg/core"
)

// app carries per-invocation state shared by all subcommands.
type app struct {
	projectDir   string
	profilesPath string
	target       string
	logLevel     string

	cfg     *core.RuntimeConfig
	project *config.Project
	logger  *slog.Logger
}

// NewRootCmd builds the root command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "sqlforge",
		Short: "sqlforge - SQL model compiler",
		Long: `sqlforge compiles templated SQL models into executable SQL.

Models live in a project directory described by sqlforge.yml; connection
targets come from profiles.yml. Templates may call macros, reference other
models with ref(), and read declared sources with source().`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "help", "version", "completion", "__complete":
				return nil
			}
			return a.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.projectDir, "project-dir", ".", "Directory containing sqlforge.yml")
	rootCmd.PersistentFlags().StringVar(&a.profilesPath, "profiles", "", "Path to profiles.yml (default: ~/.sqlforge/profiles.yml)")
	rootCmd.PersistentFlags().StringVarP(&a.target, "target", "t", "", "Profile output to use instead of the default")
	rootCmd.PersistentFlags().String("vars", "", "YAML mapping of variable overrides, e.g. '{start_date: 2026-01-01}'")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newCompileCmd(a))
	rootCmd.AddCommand(newRenderCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newRunOperationCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))

	return rootCmd
}

// Execute runs the CLI and returns a process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", a.logLevel)
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, project, err := config.Load(a.projectDir, a.profilesPath, a.target, cmd.Root().PersistentFlags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.project = project
	return nil
}

// manifest discovers the project's nodes.
func (a *app) manifest() (*core.StaticManifest, error) {
	return loader.New(a.projectDir, a.project, a.logger).Load()
}

// connect opens a live adapter connection for the configured target. The
// caller owns the returned close function.
func (a *app) connect(cmd *cobra.Command) (adapter.Adapter, func(), error) {
	ad, err := adapter.New(a.cfg.Credentials.Type, a.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := ad.Connect(cmd.Context(), a.cfg.Credentials); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", a.cfg.TargetName, err)
	}
	cleanup := func() {
		if err := ad.Close(); err != nil {
			a.logger.Warn("closing adapter", "error", err)
		}
	}
	return ad, cleanup, nil
}

// engineFor builds an engine over the manifest. withAdapter controls whether
// a live connection is opened; the returned close function is always safe to
// call.
func (a *app) engineFor(cmd *cobra.Command, manifest core.Manifest, withAdapter bool) (*engine.Engine, func(), error) {
	if !withAdapter {
		return engine.New(a.cfg, manifest, nil, a.logger), func() {}, nil
	}
	ad, cleanup, err := a.connect(cmd)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(a.cfg, manifest, ad, a.logger), cleanup, nil
}
