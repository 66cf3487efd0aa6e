// Package dumper provides the concrete pipeline stages of sysdump.
//
// Producers read system state (procfs, sysfs, systemd over D-Bus, crash
// logs, files and commands) and append rows to the run's ResultBuffer.
// Transformers rewrite the rows already in the buffer. The group marker
// separates unit blocks, and the two Sinks write the buffer either to the
// run's output or into a zip archive.
//
// NewRegistry returns a pipeline.Registry with every stage registered
// under the names listed in this package's Name constants.
package dumper
