package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"tradepilot/internal/cli/client"
)

// RegisterCommands adds all available commands to the root command
func RegisterCommands(rootCmd *cobra.Command, c *client.Client) {
	rootCmd.AddCommand(NewLoginCommand(c))
	rootCmd.AddCommand(NewListCommand(c))
	rootCmd.AddCommand(NewCreateCommand(c))
	rootCmd.AddCommand(NewTriggerCommand(c))
	rootCmd.AddCommand(NewHistoryCommand(c))
	rootCmd.AddCommand(NewPlansCommand(c))
	rootCmd.AddCommand(NewPauseCommand(c))
	rootCmd.AddCommand(NewResumeCommand(c))
	rootCmd.AddCommand(NewDeleteCommand(c))
}

func printJSON(cmd *cobra.Command, v any) error {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
	return nil
}

func pipelineID(cmd *cobra.Command) (string, error) {
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("pipeline id is required")
	}
	return id, nil
}

func addIDFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("id", "i", "", usage)
	cmd.MarkFlagRequired("id")
}
