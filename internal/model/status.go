package model

import (
	"fmt"
	"strings"
)

// Status is the result of a stage lifecycle call.
type Status int

const (
	// StatusOk means the call completed and the pipeline may continue.
	StatusOk Status = iota

	// StatusMoreData means a Producer has additional pending output.
	// The driver only acts on it for loop-eligible Producers; for every
	// other stage it is treated like StatusOk.
	StatusMoreData

	// StatusFail means the call failed. The driver skips the rest of the
	// stage for the current pass.
	StatusFail
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusMoreData:
		return "more-data"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Kind is the role of a stage inside the pipeline.
// It is only used for construction-time routing and for the driver's
// loop and title decisions, never for runtime type inspection.
type Kind int

const (
	// KindProducer generates report content, optionally across multiple chunks.
	KindProducer Kind = iota

	// KindTransformer reshapes or filters already-produced content.
	KindTransformer

	// KindSink writes accumulated content to the output destination.
	// At most one Sink instance exists per run.
	KindSink

	// KindGroupMarker denotes a structural grouping boundary.
	KindGroupMarker
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindProducer:
		return "producer"
	case KindTransformer:
		return "transformer"
	case KindSink:
		return "sink"
	case KindGroupMarker:
		return "group"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name into a Kind.
// Matching is case-insensitive; "filter" is accepted as an alias of
// "transformer" and "output" as an alias of "sink".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "producer", "dumper":
		return KindProducer, nil
	case "transformer", "filter":
		return KindTransformer, nil
	case "sink", "output":
		return KindSink, nil
	case "group", "groupmarker", "group_marker":
		return KindGroupMarker, nil
	default:
		return 0, fmt.Errorf("unknown stage kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// It lets preset files spell kinds as plain strings.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
