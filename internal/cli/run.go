package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"boardflow/internal/config"
	"boardflow/internal/engine"
	"boardflow/internal/schedule"
	"boardflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the rule engine and scheduler",
		Long: `Start the boardflow rule engine.

The engine opens the SQLite database (creating it if it doesn't exist),
loads the stored automation rules, and starts the schedule evaluator.

Example:
  boardflow run --db ./boardflow.db
  boardflow run --config ./config.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runService(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	setupLogging(cfg.Log.Level, cfg.Log.Format, opts.Verbose)

	slog.Info("opening database", "path", cfg.Database.Path)
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	clock := engine.SystemClock{}
	eng := engine.New(db.Tasks(), db.Sections(), db.Rules(), clock)
	sched := schedule.NewScheduler(db.Rules(), db.Tasks(), clock, eng.FireRule,
		schedule.WithTickPeriod(cfg.Scheduler.TickPeriodMs),
		schedule.WithTickSummary(func(ts schedule.TickSummary) {
			if ts.RulesFired > 0 {
				slog.Info("schedule pass",
					"rules_evaluated", ts.RulesEvaluated,
					"rules_fired", ts.RulesFired,
					"tasks_affected", ts.TasksAffected,
				)
			}
		}),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	slog.Info("scheduler starting", "tick_period_ms", cfg.Scheduler.TickPeriodMs)
	sched.Start()
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")

	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)
	sched.Stop()
	slog.Info("scheduler stopped gracefully")
	return nil
}
