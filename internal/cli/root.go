package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"expensedash/internal/config"
	"expensedash/internal/core"
	"expensedash/internal/log"

	"github.com/spf13/cobra"
)

// state is filled by the root command before any subcommand runs.
type state struct {
	backend    string
	collection string

	app *app
}

// NewRootCommand builds the expensedash command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}

	rootCmd := &cobra.Command{
		Use:           "expensedash",
		Short:         "Personal expense dashboard",
		Long:          "expensedash records expenses into a document store and serves filtered summaries of them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&st.backend, "backend", "", "data backend (overrides DATA_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&st.collection, "collection", "", "collection name (overrides COLLECTION)")

	rootCmd.AddCommand(
		newServeCommand(st),
		newAddCommand(st),
		newRemoveCommand(st),
		newListCommand(st),
		newSummaryCommand(st),
		newExportCommand(st),
		newMigrateCommand(st),
	)
	return rootCmd
}

// run hands fn the configured app and releases its resources afterwards.
func (st *state) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	defer st.app.close()
	return fn(cmd.Context(), st.app)
}

func (st *state) setup(cmd *cobra.Command) error {
	LoadEnvFile()

	cfg := config.Load()
	if st.backend != "" {
		cfg.DataBackend = st.backend
	}
	if st.collection != "" {
		cfg.Collection = st.collection
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := SetupLogger(cfg)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	st.app = a
	logger.Debug("Configuration loaded",
		"operation", log.OpStartup,
		"command", cmd.Name(),
		"backend", cfg.DataBackend,
		"collection", cfg.Collection)
	return nil
}

// Execute runs the command tree against os.Args and returns the process exit
// code.
func Execute() int {
	ctx, stop := ShutdownContext(context.Background())
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return exitCode(err)
	}
	return 0
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	switch core.KindOf(err) {
	case core.KindConfiguration, core.KindConnection:
		return 1
	default:
		return 2
	}
}
