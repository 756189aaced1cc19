package client

import (
	"github.com/spf13/cobra"
)

// NewSettingsCommand constructs the `settings` command group and subcommands.
func NewSettingsCommand(baseURL BaseURLFunc) *cobra.Command {
	settingsCmd := &cobra.Command{Use: "settings", Short: "Persisted settings operations"}

	settingsCmd.AddCommand(
		newSettingsListCommand(baseURL),
		newSettingsResetCommand(baseURL),
	)

	return settingsCmd
}

// newSettingsListCommand constructs the `settings list` subcommand.
func newSettingsListCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List settings with defaults and stored values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return getJSON(cmd, baseURL()+"/v1/settings")
		},
	}
}

// newSettingsResetCommand constructs the `settings reset` subcommand.
func newSettingsResetCommand(baseURL BaseURLFunc) *cobra.Command {
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset settings back to their defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			url := baseURL() + "/v1/settings/reset"
			if all {
				url += "?all=true"
			}
			return postStatus(cmd, url)
		},
	}
	resetCmd.Flags().Bool("all", false, "Reset non-resettable settings too")
	return resetCmd
}
