// Package main provides the entry point for the sysdump CLI.
//
// sysdump collects a diagnostic snapshot of a Linux host: CPU, memory,
// processes, network, storage, IPC tables, systemd units, crash logs,
// environment, command output and arbitrary files. Every section is a
// pipeline of stages that produce, filter and flush rows.
//
// Usage:
//
//	sysdump dump --cpu --mem
//	sysdump dump --all --zip
//	sysdump dump --preset triage
//	sysdump history
//
// See --help for all available options.
package main

// main is the entry point for sysdump.
func main() {
	Execute()
}
