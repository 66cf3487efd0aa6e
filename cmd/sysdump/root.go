package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sysdump.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sysdump",
		Short: "Collect a diagnostic snapshot of a Linux host",
		Long: `sysdump collects a diagnostic snapshot of a Linux host.

Each requested section (cpu, memory, processes, network, storage, IPC,
systemd units, crash logs, environment, commands, files) is produced as
rows, optionally filtered, and flushed to stdout, a file or a zip archive.
Large sections are produced in chunks so memory stays bounded.

Every run is recorded in a local history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewDumpCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
