package cmd

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"tradepilot/internal/cli/client"
	"tradepilot/internal/common"
)

// NewListCommand lists pipelines, or shows one pipeline with --id.
func NewListCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipelines or get specific pipeline details",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := cmd.Flags().GetString("id")
			if err != nil {
				return err
			}
			path := "/pipelines"
			if id != "" {
				path = "/pipelines/" + id
			}
			var result any
			if err := c.Do(http.MethodGet, path, "", nil, &result); err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringP("id", "i", "", "Specific pipeline ID to list")
	return cmd
}

func NewCreateCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new pipeline from a YAML or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := cmd.Flags().GetString("file")
			if err != nil {
				return err
			}
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read pipeline file: %w", err)
			}
			contentType := "application/yaml"
			if filepath.Ext(file) == ".json" {
				contentType = "application/json"
			}

			var created common.CreatePipelineResponse
			if err := c.Do(http.MethodPost, "/pipelines", contentType, bytes.NewReader(content), &created); err != nil {
				return fmt.Errorf("create pipeline failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created pipeline %s (job %s)\n", created.ID, created.JobID)
			return nil
		},
	}
	cmd.Flags().StringP("file", "f", "", "Pipeline definition file (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

func NewPauseCommand(c *client.Client) *cobra.Command {
	return statusCommand(c, "pause", "Pause a pipeline's schedule", "Paused")
}

func NewResumeCommand(c *client.Client) *cobra.Command {
	return statusCommand(c, "resume", "Resume a paused pipeline", "Resumed")
}

func statusCommand(c *client.Client, verb, short, done string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   verb,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pipelineID(cmd)
			if err != nil {
				return err
			}
			if err := c.Do(http.MethodPost, "/pipelines/"+id+"/"+verb, "", nil, nil); err != nil {
				return fmt.Errorf("%s failed: %w", verb, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s pipeline %s\n", done, id)
			return nil
		},
	}
	addIDFlag(cmd, "Pipeline ID (required)")
	return cmd
}

func NewDeleteCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a pipeline and cancel its schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := pipelineID(cmd)
			if err != nil {
				return err
			}
			if err := c.Do(http.MethodDelete, "/pipelines/"+id, "", nil, nil); err != nil {
				return fmt.Errorf("delete failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted pipeline %s\n", id)
			return nil
		},
	}
	addIDFlag(cmd, "Pipeline ID (required)")
	return cmd
}
