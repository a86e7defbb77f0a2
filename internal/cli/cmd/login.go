package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"tradepilot/internal/cli/client"
	"tradepilot/internal/common"
)

func NewLoginCommand(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the pipeline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, c)
		},
	}

	cmd.Flags().StringP("username", "u", "", "Username for login (required)")
	cmd.Flags().StringP("password", "p", "", "Password for login (required)")
	cmd.Flags().Bool("register", false, "Create the account before logging in")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")

	return cmd
}

func runLogin(cmd *cobra.Command, c *client.Client) error {
	username, err := cmd.Flags().GetString("username")
	if err != nil {
		return err
	}
	password, err := cmd.Flags().GetString("password")
	if err != nil {
		return err
	}
	register, err := cmd.Flags().GetBool("register")
	if err != nil {
		return err
	}
	jsonData, err := json.Marshal(common.LoginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to serialize data: %w", err)
	}

	if register {
		if err := c.Do(http.MethodPost, "/register", "application/json", bytes.NewReader(jsonData), nil); err != nil {
			return fmt.Errorf("register failed: %w", err)
		}
	}

	var loginResp common.LoginResponse
	if err := c.Do(http.MethodPost, "/login", "application/json", bytes.NewReader(jsonData), &loginResp); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	c.SaveToken(loginResp.Token)
	fmt.Fprintf(cmd.OutOrStdout(), "Login successful, token expires at %s\n",
		time.Unix(loginResp.ExpiresAt, 0).Format("2006-01-02 15:04:05"))
	return nil
}
