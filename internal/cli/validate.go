package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rule-file>",
		Short: "Validate a YAML rule file without importing it",
		Long: `Validate a YAML rule file.

Every rule in the file is checked: trigger/filter/action kinds must be
known, scheduled triggers must carry a usable schedule, and cron
expressions must parse. All problems are reported, not just the first.

Example:
  boardflow validate ./rules.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), Verbose: rootOpts.Verbose}

			rules, errs := LoadRules(args[0])
			if len(errs) > 0 {
				details := make([]string, 0, len(errs))
				for _, err := range errs {
					details = append(details, err.Error())
				}
				_ = f.Error("E_INVALID_RULES", fmt.Sprintf("%d invalid rule(s)", len(errs)), details)
				return NewExitError(ExitFailure, "validation failed")
			}
			return f.Success(fmt.Sprintf("%d rule(s) valid", len(rules)))
		},
	}
}
