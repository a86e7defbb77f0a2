package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"tradepilot/internal/cli/client"
	"tradepilot/pkg/flow"
)

// NewTriggerCommand runs a pipeline once and prints the recorded result.
func NewTriggerCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Trigger a pipeline execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pipelineID(cmd)
			if err != nil {
				return err
			}
			var entry flow.HistoryEntry
			if err := c.Do(http.MethodPost, "/pipelines/"+id+"/trigger", "", nil, &entry); err != nil {
				return fmt.Errorf("trigger failed: %w", err)
			}
			if entry.Status == flow.RunError {
				fmt.Fprintf(cmd.OutOrStdout(), "Run failed: %s\n", entry.Error)
			}
			return printJSON(cmd, entry)
		},
	}
	addIDFlag(cmd, "Pipeline ID to trigger (required)")
	return cmd
}

func NewHistoryCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show pipeline execution history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pipelineID(cmd)
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			var history []flow.HistoryEntry
			path := fmt.Sprintf("/pipelines/%s/history?limit=%d", id, limit)
			if err := c.Do(http.MethodGet, path, "", nil, &history); err != nil {
				return err
			}
			for _, entry := range history {
				line := fmt.Sprintf("%s  %-7s", entry.Timestamp.Local().Format("2006-01-02 15:04:05"), entry.Status)
				if entry.Result != nil {
					line += fmt.Sprintf("  events=%v actions=%d", entry.Result.TriggeredEvents, len(entry.Result.Actions))
				}
				if entry.Error != "" {
					line += "  error=" + entry.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	addIDFlag(cmd, "Pipeline ID to show history for (required)")
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	return cmd
}

func NewPlansCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Show the latest strategy plans of a pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pipelineID(cmd)
			if err != nil {
				return err
			}
			var plans any
			if err := c.Do(http.MethodGet, "/pipelines/"+id+"/plans", "", nil, &plans); err != nil {
				return err
			}
			return printJSON(cmd, plans)
		},
	}
	addIDFlag(cmd, "Pipeline ID (required)")
	return cmd
}
