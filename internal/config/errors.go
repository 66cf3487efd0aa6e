package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and File lookups; callers
// use errors.Is() to tell them apart.
var (
	// ErrNothingToDump is returned when no section flag and no preset is given.
	ErrNothingToDump = errors.New("nothing to dump: select at least one section or use --all or --preset")

	// ErrInvalidFormat is returned for an unsupported --format value.
	ErrInvalidFormat = errors.New("invalid format: must be text, markdown or json")

	// ErrInvalidChunkSize is returned when the chunk size is negative.
	// Use 0 to disable chunking.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be non-negative")

	// ErrInvalidInterval is returned when the sampling interval is negative.
	ErrInvalidInterval = errors.New("invalid interval: must be non-negative")

	// ErrInvalidSamples is returned when the sample count is negative.
	ErrInvalidSamples = errors.New("invalid samples: must be non-negative")

	// ErrInvalidTimeout is returned when the command timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid command timeout: must be positive")

	// ErrConflictingOutput is returned when both --zip and --output are given.
	// An archive is always written to the archive directory.
	ErrConflictingOutput = errors.New("conflicting output: --zip and --output cannot be used together")

	// ErrPresetNotFound is returned when --preset names a preset that is not
	// in the config file, or no config file was loaded.
	ErrPresetNotFound = errors.New("preset not found")

	// ErrEmptyPreset is returned for a preset without stages.
	ErrEmptyPreset = errors.New("preset has no stages")
)
