package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"boardflow/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <rule-file>",
		Short: "Import a YAML rule file into the database",
		Long: `Validate and import the rules from a YAML file.

The import is all-or-nothing: if any rule fails validation, nothing is
written.

Example:
  boardflow import --db ./boardflow.db ./rules.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return importRules(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func importRules(opts *ImportOptions, path string, cmd *cobra.Command) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	rules, errs := LoadRules(path)
	if len(errs) > 0 {
		details := make([]string, 0, len(errs))
		for _, err := range errs {
			details = append(details, err.Error())
		}
		_ = f.Error("E_INVALID_RULES", fmt.Sprintf("%d invalid rule(s), nothing imported", len(errs)), details)
		return NewExitError(ExitFailure, "import aborted")
	}

	db, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer db.Close()

	for _, r := range rules {
		if err := db.Rules().Create(r); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to import rule %s", r.Name), err)
		}
	}
	return f.Success(fmt.Sprintf("%d rule(s) imported", len(rules)))
}
