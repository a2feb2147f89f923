// Package main is the entry point for the adwflow CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "adwflow",
		Short: "Drive agentic development workflows from issue to commit",
		Long: `adwflow orchestrates a multi-step software-change workflow: classify an
issue, create a branch, plan the change, implement it, and commit the
result, driving an external code-generation agent for each step.

Progress is checkpointed after every step, so an interrupted workflow
resumes from its last completed step when re-run with the same workflow id.`,
		Version: "0.1.0",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		runCmd(),
		stateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
