// Package cli wires the reconciliation pipeline into the sync-team
// command: load desired state, diff each platform, gate on approval,
// apply, journal.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Services that can be synchronized, in execution order.
var ValidServices = []string{"github", "zulip"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Live                bool
	TeamRepo            string
	OnlyPrintPlan       bool
	RequireConfirmation bool
	Database            string
	Verbose             bool
}

// NewRootCommand creates the root command for the sync-team CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sync-team [service]...",
		Short: "Synchronize the team repository to external services",
		Long: `Synchronize the declarative team repository to GitHub and Zulip.

Without --live the run is a dry-run: the plan is computed and printed
but nothing is written. Pass --live to actually apply the changes.

Credentials and confirmation settings come from the environment:
  GITHUB_TOKEN, GITHUB_IGNORED_ORGS
  ZULIP_USERNAME, ZULIP_API_TOKEN
  CONFIRMATION_STREAM, CONFIRMATION_TOPIC, CONFIRMATION_BASE_URL,
  CONFIRMATION_APPROVED_HASH, CONFIRMATION_APPROVER
  TEAM_API_URL

Example:
  sync-team --team-repo ../team github
  sync-team --live --require-confirmation`,
		Args:          cobra.OnlyValidArgs,
		ValidArgs:     ValidServices,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.OnlyPrintPlan && opts.RequireConfirmation {
				return NewExitError(ExitCommandError, "--only-print-plan and --require-confirmation are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			services := args
			if len(services) == 0 {
				services = ValidServices
			} else {
				services = dedupe(services)
			}
			return runSync(opts, services, cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the run journal database (optional)")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "apply the plan instead of dry-running")
	cmd.Flags().StringVar(&opts.TeamRepo, "team-repo", "", "path to a local team repo checkout (defaults to the team API)")
	cmd.Flags().BoolVar(&opts.OnlyPrintPlan, "only-print-plan", false, "compute and print the plan, skip the apply phase entirely")
	cmd.Flags().BoolVar(&opts.RequireConfirmation, "require-confirmation", false, "gate the apply on an out-of-band approval of the plan hash")

	bindEnv()

	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// bindEnv maps the environment contract onto viper keys. Env names are
// bare, not prefixed, because they are shared with the deployment that
// runs the original tool.
func bindEnv() {
	for key, env := range map[string]string{
		"github-token":               "GITHUB_TOKEN",
		"github-ignored-orgs":        "GITHUB_IGNORED_ORGS",
		"zulip-username":             "ZULIP_USERNAME",
		"zulip-api-token":            "ZULIP_API_TOKEN",
		"confirmation-stream":        "CONFIRMATION_STREAM",
		"confirmation-topic":         "CONFIRMATION_TOPIC",
		"confirmation-base-url":      "CONFIRMATION_BASE_URL",
		"confirmation-approved-hash": "CONFIRMATION_APPROVED_HASH",
		"confirmation-approver":      "CONFIRMATION_APPROVER",
		"team-api-url":               "TEAM_API_URL",
	} {
		_ = viper.BindEnv(key, env)
	}
}

func dedupe(services []string) []string {
	var out []string
	for _, s := range services {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// requireEnv fetches a bound credential, failing with a command error
// naming the missing variable.
func requireEnv(key, env string) (string, error) {
	v := viper.GetString(key)
	if v == "" {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("%s is not set", env))
	}
	return v, nil
}
