package pipeline

import (
	"github.com/nao1215/sysdump/internal/model"
)

// slot binds one configuration position to its stage instance.
// Sink positions share the same instance.
type slot struct {
	config model.StageConfig
	stage  Stage
}

// Plan is the instantiated stage list of one run.
// A Plan is single-use: its stages are Reset at the end of Driver.Run.
type Plan struct {
	slots []slot

	// instances lists every distinct stage once, in creation order.
	instances []Stage
}

// Len returns the number of positions in the plan.
func (p *Plan) Len() int {
	return len(p.slots)
}

// InstanceCount returns the number of distinct stage instances.
func (p *Plan) InstanceCount() int {
	return len(p.instances)
}

// Configs returns the configuration of every position in order.
func (p *Plan) Configs() []model.StageConfig {
	configs := make([]model.StageConfig, len(p.slots))
	for i, s := range p.slots {
		configs[i] = s.config
	}
	return configs
}

// Names returns a display name for every position in order.
func (p *Plan) Names() []string {
	names := make([]string, len(p.slots))
	for i, s := range p.slots {
		names[i] = displayName(s.config)
	}
	return names
}

// resetAll calls Reset once on every distinct instance.
func (p *Plan) resetAll() {
	for _, st := range p.instances {
		st.Reset()
	}
}

// displayName returns the stage name, or the kind for unnamed positions.
func displayName(cfg model.StageConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return cfg.Kind.String()
}
