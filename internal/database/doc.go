// Package database provides SQLite-based run history for sysdump.
//
// Every dump invocation leaves one row in the runs table: what was asked,
// which sections ran, where the output went, how the run ended and the
// per-position stage counters. The `sysdump history` command reads it back.
//
// The store uses modernc.org/sqlite, so the binary stays CGO-free and the
// database is a single file under the XDG data directory.
package database
