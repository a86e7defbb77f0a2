package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"tradepilot/internal/cli/client"
	"tradepilot/internal/cli/cmd"
)

func main() {
	c := client.FromEnv()
	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Manage trading automation pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.RegisterCommands(rootCmd, c)

	// 带参数时执行单条命令，否则进入交互模式（token 只在交互会话内保留）
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	startInteractiveMode(rootCmd)
}

func startInteractiveMode(rootCmd *cobra.Command) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Pipeline CLI - Type 'help' to show help, 'exit' or 'quit' to quit")
	fmt.Print(">> ")

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input == "" {
			fmt.Print(">> ")
			continue
		}

		if input == "help" {
			rootCmd.Help()
			fmt.Print(">> ")
			continue
		}

		args := strings.Fields(input)
		found, _, err := rootCmd.Find(args)
		if err != nil || found == rootCmd {
			if err := executeShellCommand(args[0], args[1:]); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			fmt.Print(">> ")
			continue
		}
		resetFlags(found)
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Print(">> ")
	}
}

// resetFlags clears values left over from the previous invocation of the same command.
func resetFlags(c *cobra.Command) {
	for _, name := range []string{"id", "file", "username", "password"} {
		if f := c.Flags().Lookup(name); f != nil {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
}

func executeShellCommand(cmdName string, cmdArgs []string) error {
	cmd := exec.Command(cmdName, cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
