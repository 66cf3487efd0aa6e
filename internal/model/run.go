package model

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Params holds the run-scoped parameters stages may read in PreExecute.
// The option parser fills it once per invocation.
type Params struct {
	// Pid selects a single process. Zero or negative means "all processes".
	Pid int

	// TimeInterval enables periodic memory sampling when positive.
	TimeInterval time.Duration

	// Samples is the number of periodic memory samples to take.
	Samples int

	// ChunkSize is the number of rows a chunked Producer emits per pass.
	ChunkSize int

	// Compress selects the archiving Sink.
	Compress bool

	// Format is the output format name: "text", "markdown" or "json".
	Format string

	// ZipDir is the directory archives are written to.
	ZipDir string

	// FaultLogDir is the directory crash logs are read from.
	FaultLogDir string

	// ProcMount is the procfs mount point, normally "/proc".
	ProcMount string

	// SysMount is the sysfs mount point, normally "/sys".
	SysMount string

	// CmdTimeout bounds every command run by the cmd Producer.
	CmdTimeout time.Duration

	// Version is the tool version printed by the version Producer.
	Version string
}

// RunContext is the explicit per-run value threaded through the driver and
// every PreExecute call. It carries the parameters, the output destination,
// the logger and the usage record stages report into.
type RunContext struct {
	// ID uniquely identifies the run.
	ID string

	// Params are the run-scoped parameters.
	Params Params

	// Output is the destination of the direct-write Sink.
	Output io.Writer

	// Logger is the run logger.
	Logger *slog.Logger

	// Usage collects what happened during the run.
	Usage *UsageRecord
}

// NewRunContext creates a RunContext with a fresh ID and usage record.
// A nil logger falls back to slog.Default().
func NewRunContext(params Params, output io.Writer, logger *slog.Logger) *RunContext {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &RunContext{
		ID:     id,
		Params: params,
		Output: output,
		Logger: logger.With("run", id),
		Usage:  NewUsageRecord(id),
	}
}
