package pipeline

import (
	"fmt"
	"sort"
)

// Registry maps stage names to factories.
// It is built once by the caller and injected into the Driver, so two
// drivers can use different stage sets in the same process.
type Registry struct {
	factories map[string]Factory

	// directSink writes straight to the run's output.
	directSink Factory

	// archiveSink writes into a compressed archive.
	archiveSink Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, name)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStage, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
// It is meant for static registration tables.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// RegisterSinks sets the direct-write and archiving Sink factories.
// Either may be nil if the mode is unsupported.
func (r *Registry) RegisterSinks(direct, archive Factory) {
	r.directSink = direct
	r.archiveSink = archive
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// SinkFactory returns the Sink factory for the given compress mode.
func (r *Registry) SinkFactory(compress bool) (Factory, error) {
	f := r.directSink
	mode := "direct"
	if compress {
		f = r.archiveSink
		mode = "archive"
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s mode", ErrNoSink, mode)
	}
	return f, nil
}

// Names returns the registered stage names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
