// Package cmd provides the CLI commands for spall.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the spall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spall",
		Short: "A local, single-user semantic note store",
		Long: `spall ingests plain-text notes into a local daemon, chunks and
embeds them with a local GGUF model, and answers keyword and semantic
search over them through a small HTTP API.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
