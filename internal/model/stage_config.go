package model

// StageConfig describes one position of the pipeline.
// A slice of StageConfig is produced once per invocation by the option
// parser (or a preset file) and must not be modified during a run.
// The position in the slice is the execution order.
type StageConfig struct {
	// Name is the registry key of the concrete stage type (e.g. "memory", "fd").
	// Sink configs may leave it empty; the sink type is chosen by the
	// compress flag at construction.
	Name string `yaml:"name" json:"name"`

	// Kind is the role of the stage.
	Kind Kind `yaml:"kind" json:"kind"`

	// Section identifies a logical report section such as "memory" or
	// "ability". It may be empty.
	Section string `yaml:"section,omitempty" json:"section,omitempty"`

	// LoopEligible marks a Producer whose MoreData signal rewinds the
	// pipeline. It is ignored for every other kind.
	LoopEligible bool `yaml:"loop,omitempty" json:"loop,omitempty"`

	// Target is the stage-specific subject, e.g. a file path, a command
	// line or a unit name.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// Args holds optional stage-specific parameters.
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Arg returns the named argument or an empty string.
func (c StageConfig) Arg(key string) string {
	if c.Args == nil {
		return ""
	}
	return c.Args[key]
}

// IsLoopPoint reports whether the driver may rewind to this position.
func (c StageConfig) IsLoopPoint() bool {
	return c.Kind == KindProducer && c.LoopEligible
}

// EndsSegment reports whether finishing this stage closes a loop segment.
func (c StageConfig) EndsSegment() bool {
	return c.Kind == KindSink || c.Kind == KindGroupMarker
}

// Producer is a shorthand for a Producer StageConfig.
func Producer(name, section string, loop bool) StageConfig {
	return StageConfig{Name: name, Kind: KindProducer, Section: section, LoopEligible: loop}
}

// Transformer is a shorthand for a Transformer StageConfig.
func Transformer(name string, args map[string]string) StageConfig {
	return StageConfig{Name: name, Kind: KindTransformer, Args: args}
}

// Sink is a shorthand for a Sink StageConfig.
func Sink() StageConfig {
	return StageConfig{Kind: KindSink}
}

// GroupMarker is a shorthand for a GroupMarker StageConfig.
func GroupMarker() StageConfig {
	return StageConfig{Name: "group", Kind: KindGroupMarker}
}
