package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sysdump/internal/model"
)

// Observer receives a callback for every stage visit and for the end of a run.
// It is used for metrics; the driver never depends on its behavior.
type Observer interface {
	// ObserveStage is called after a stage visit.
	ObserveStage(cfg model.StageConfig, result VisitResult, elapsed time.Duration)

	// ObserveRun is called once when the run ends.
	ObserveRun(canceled bool)
}

// nopObserver discards all observations.
type nopObserver struct{}

func (nopObserver) ObserveStage(model.StageConfig, VisitResult, time.Duration) {}
func (nopObserver) ObserveRun(bool)                                            {}

// Driver builds stage plans from configurations and runs them.
type Driver struct {
	// registry resolves stage names to factories.
	registry *Registry

	// titler inserts section titles.
	titler *GroupTitler

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// observer is notified of every stage visit.
	observer Observer
}

// Option is a function that configures a Driver.
type Option func(*Driver)

// WithLogger sets a custom logger for the driver.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithObserver sets an observer notified of every stage visit.
func WithObserver(observer Observer) Option {
	return func(d *Driver) {
		d.observer = observer
	}
}

// New creates a Driver that resolves stages from registry.
func New(registry *Registry, opts ...Option) *Driver {
	d := &Driver{
		registry: registry,
		titler:   NewGroupTitler(),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.observer == nil {
		d.observer = nopObserver{}
	}

	return d
}

// Build instantiates one stage per configuration position.
// The Sink factory is chosen once from compress; the first Sink position
// creates the instance and every later Sink position reuses it.
func (d *Driver) Build(configs []model.StageConfig, compress bool) (*Plan, error) {
	sinkFactory, sinkErr := d.registry.SinkFactory(compress)

	plan := &Plan{
		slots:     make([]slot, 0, len(configs)),
		instances: make([]Stage, 0, len(configs)),
	}

	var sink Stage
	for i, cfg := range configs {
		if cfg.Kind == model.KindSink {
			if sink == nil {
				if sinkErr != nil {
					return nil, sinkErr
				}
				sink = sinkFactory.CreateExecutor()
				plan.instances = append(plan.instances, sink)
			}
			plan.slots = append(plan.slots, slot{config: cfg, stage: sink})
			continue
		}

		factory, ok := d.registry.Lookup(cfg.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownStage, cfg.Name, i)
		}
		stage := factory.CreateExecutor()
		if c, ok := stage.(Configurable); ok {
			if err := c.Configure(cfg); err != nil {
				return nil, fmt.Errorf("failed to configure %q at position %d: %w", cfg.Name, i, err)
			}
		}
		plan.slots = append(plan.slots, slot{config: cfg, stage: stage})
		plan.instances = append(plan.instances, stage)
	}

	return plan, nil
}

// Execute builds a plan from configs and runs it.
func (d *Driver) Execute(ctx context.Context, configs []model.StageConfig, run *model.RunContext, progress Progress) (model.Status, error) {
	plan, err := d.Build(configs, run.Params.Compress)
	if err != nil {
		return model.StatusFail, err
	}
	return d.Run(ctx, plan, run, progress), nil
}

// runState is the mutable state of one run.
type runState struct {
	index   int
	section string
	stack   []int
}

// Run executes the plan and always returns model.StatusOk.
// Individual stage failures are logged, counted in run.Usage and skipped.
// Cancellation is polled once per position through progress; on cancel the
// driver stops advancing. Every stage instance is Reset exactly once before
// Run returns.
func (d *Driver) Run(ctx context.Context, plan *Plan, run *model.RunContext, progress Progress) model.Status {
	if progress == nil {
		progress = nopProgress{}
	}

	n := plan.Len()
	buf := model.NewResultBuffer()
	stats := newStageStats(plan)
	st := &runState{}
	canceled := false

	d.logger.Debug("pipeline started", "run", run.ID, "positions", n, "instances", plan.InstanceCount())

loop:
	for st.index < n {
		decision := d.step(ctx, plan, run, buf, progress, stats, st)
		switch decision.Action {
		case ActionStop:
			canceled = true
			break loop
		case ActionRepeatFrom:
			st.index = decision.Position
		default:
			st.index++
		}
	}

	plan.resetAll()
	progress.UpdateProgress(n, n)

	if run.Usage != nil {
		run.Usage.Stages = stats
		run.Usage.Canceled = canceled
	}
	d.observer.ObserveRun(canceled)

	d.logger.Debug("pipeline finished", "run", run.ID, "canceled", canceled)
	return model.StatusOk
}

// step runs the position at st.index and decides where to go next.
func (d *Driver) step(ctx context.Context, plan *Plan, run *model.RunContext, buf *model.ResultBuffer, progress Progress, stats []model.StageStat, st *runState) Decision {
	n := plan.Len()
	progress.UpdateProgress(n, st.index)
	if progress.IsCanceled() {
		d.logger.Warn("pipeline cancelled", "position", st.index, "stage", displayName(plan.slots[st.index].config))
		return Stop()
	}

	s := plan.slots[st.index]
	cfg := s.config

	if cfg.Kind == model.KindProducer && cfg.Section != "" && cfg.Section != st.section {
		d.titler.MaybeInsertTitle(cfg.Section, buf, run.Params)
		st.section = cfg.Section
	}

	start := time.Now()
	visit := d.visit(ctx, s, run, buf)
	d.observer.ObserveStage(cfg, visit.Result, time.Since(start))
	recordVisit(&stats[st.index], visit)

	var decision Decision
	decision, st.stack = decide(st.stack, st.index, cfg, visit)
	if decision.Action == ActionRepeatFrom {
		d.logger.Debug("rewinding to loop point",
			"from", st.index,
			"to", decision.Position,
			"stage", displayName(plan.slots[decision.Position].config),
		)
	}
	return decision
}

// visit runs the lifecycle of one stage for one pass.
func (d *Driver) visit(ctx context.Context, s slot, run *model.RunContext, buf *model.ResultBuffer) Visit {
	name := displayName(s.config)

	if status := s.stage.PreExecute(ctx, run, buf); status != model.StatusOk {
		d.logger.Warn("stage skipped", "stage", name, "phase", "pre-execute", "status", status)
		return Visit{Result: VisitPreFailed}
	}

	status := s.stage.Execute(ctx)
	if status != model.StatusOk && status != model.StatusMoreData {
		d.logger.Warn("stage skipped", "stage", name, "phase", "execute", "status", status)
		return Visit{Result: VisitExecFailed}
	}

	after := s.stage.AfterExecute()
	d.logger.Debug("stage completed", "stage", name, "execute", status, "after", after)
	return Visit{Result: VisitCompleted, After: after}
}

// newStageStats creates one zeroed counter per plan position.
func newStageStats(plan *Plan) []model.StageStat {
	stats := make([]model.StageStat, plan.Len())
	for i, s := range plan.slots {
		stats[i] = model.StageStat{
			Position: i,
			Name:     displayName(s.config),
			Kind:     s.config.Kind.String(),
			Section:  s.config.Section,
		}
	}
	return stats
}

// recordVisit adds the outcome of one visit to its position's counters.
func recordVisit(stat *model.StageStat, v Visit) {
	stat.Visits++
	switch v.Result {
	case VisitPreFailed:
		stat.PreFails++
	case VisitExecFailed:
		stat.ExecFails++
	case VisitCompleted:
		stat.Completed++
		if v.After == model.StatusMoreData {
			stat.MoreData++
		}
	}
}
