package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"boardflow/internal/rule"
	"boardflow/internal/store"
)

// RulesOptions holds flags for the rules command group.
type RulesOptions struct {
	*RootOptions
	Database string
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect stored automation rules",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newRulesListCommand(opts))

	return cmd
}

func newRulesListCommand(opts *RulesOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List stored rules with their status and execution history",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(opts.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer db.Close()

			rules, err := db.Rules().FindAll()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load rules", err)
			}

			if opts.Format == "json" {
				f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
				return f.Success(rules)
			}
			renderRulesTable(cmd, rules)
			return nil
		},
	}
}

func renderRulesTable(cmd *cobra.Command, rules []*rule.Rule) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"NAME", "WHEN", "THEN", "STATUS", "RUNS", "LAST RUN"})
	for _, r := range rules {
		t.AppendRow(table.Row{
			r.Name,
			describeTrigger(r.Trigger),
			r.Action.Label(),
			ruleStatus(r),
			r.ExecutionCount,
			lastRun(r),
		})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// describeTrigger renders a trigger for table output, expanding cron
// schedules into their human description.
func describeTrigger(t rule.Trigger) string {
	if t.Kind == rule.TriggerScheduledCron && t.Schedule != nil && t.Schedule.Cron != nil {
		return t.Schedule.Cron.Describe()
	}
	if t.Kind == rule.TriggerScheduledInterval && t.Schedule != nil {
		return fmt.Sprintf("Every %d minutes", t.Schedule.IntervalMinutes)
	}
	return t.Label()
}

func ruleStatus(r *rule.Rule) string {
	switch {
	case r.BrokenReason != "":
		return "broken: " + r.BrokenReason
	case !r.Enabled:
		return "disabled"
	default:
		return "enabled"
	}
}

func lastRun(r *rule.Rule) string {
	if r.LastExecutedAt == nil {
		return "never"
	}
	return time.UnixMilli(*r.LastExecutedAt).UTC().Format(time.RFC3339)
}
