// Package cmd wires the CLI commands. main.go stays a minimal entry point.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lecd",
	Short: "lecd - tutoring dashboard assistant server",
	Long: `lecd serves the tutoring dashboard assistant: an HTTP API that turns
free-text messages into bounded tool-using turns over students,
schedules, attendance, assessments, and payments, streamed as SSE.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
