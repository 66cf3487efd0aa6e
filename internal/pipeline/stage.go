package pipeline

import (
	"context"

	"github.com/nao1215/sysdump/internal/model"
)

// Stage is the contract every Producer, Transformer, Sink and GroupMarker
// implements. The driver calls PreExecute, Execute and AfterExecute in that
// order for each pass over the stage, and Reset once after the run.
type Stage interface {
	// PreExecute binds the stage to the run and the shared buffer.
	// It is called again on every repeat pass and must be idempotent.
	// Any status other than StatusOk skips the stage for this pass.
	PreExecute(ctx context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status

	// Execute does the stage's work. StatusFail skips AfterExecute.
	// A stage may start goroutines internally but must return only once
	// its result is complete.
	Execute(ctx context.Context) model.Status

	// AfterExecute reports whether a Producer has more data pending.
	// The driver only consults it for loop-eligible Producers.
	AfterExecute() model.Status

	// Reset releases per-run state. It is called exactly once per instance.
	Reset()
}

// Factory creates a fresh Stage for a run.
type Factory interface {
	CreateExecutor() Stage
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func() Stage

// CreateExecutor implements Factory.
func (f FactoryFunc) CreateExecutor() Stage {
	return f()
}

// Configurable is implemented by stages that read a target or arguments
// from their StageConfig. Build calls Configure once, right after the
// stage is created.
type Configurable interface {
	Configure(cfg model.StageConfig) error
}
