package pipeline

import "errors"

// Construction errors.
// Run itself never fails; these are returned by Registry and Driver.Build.
var (
	// ErrUnknownStage is returned when a StageConfig names a stage type that
	// is not registered.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNilFactory is returned when registering a nil factory.
	ErrNilFactory = errors.New("nil stage factory")

	// ErrDuplicateStage is returned when a stage name is registered twice.
	ErrDuplicateStage = errors.New("stage already registered")

	// ErrNoSink is returned when a configuration contains a Sink but no
	// Sink factory is registered for the requested compress mode.
	ErrNoSink = errors.New("no sink registered")
)
