package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/sysdump/internal/model"
)

// mockStage is a test helper that implements the Stage interface.
// The status funcs receive the zero-based call number of that method.
type mockStage struct {
	pre   func(call int) model.Status
	exec  func(call int) model.Status
	after func(call int) model.Status

	// emit is appended to the buffer on every Execute when set.
	emit string

	// drain makes Execute behave like a Sink and empty the buffer.
	drain bool

	buf     *model.ResultBuffer
	flushed [][]model.Row

	preCalls   int
	execCalls  int
	afterCalls int
	resetCalls int
}

// PreExecute implements Stage.PreExecute.
func (m *mockStage) PreExecute(_ context.Context, _ *model.RunContext, buf *model.ResultBuffer) model.Status {
	call := m.preCalls
	m.preCalls++
	m.buf = buf
	if m.pre != nil {
		return m.pre(call)
	}
	return model.StatusOk
}

// Execute implements Stage.Execute.
func (m *mockStage) Execute(_ context.Context) model.Status {
	call := m.execCalls
	m.execCalls++
	if m.emit != "" {
		m.buf.Append(m.emit)
	}
	if m.drain {
		m.flushed = append(m.flushed, m.buf.Drain())
	}
	if m.exec != nil {
		return m.exec(call)
	}
	return model.StatusOk
}

// AfterExecute implements Stage.AfterExecute.
func (m *mockStage) AfterExecute() model.Status {
	call := m.afterCalls
	m.afterCalls++
	if m.after != nil {
		return m.after(call)
	}
	return model.StatusOk
}

// Reset implements Stage.Reset.
func (m *mockStage) Reset() {
	m.resetCalls++
}

// moreDataTimes returns an after func that reports MoreData for the first n calls.
func moreDataTimes(n int) func(int) model.Status {
	return func(call int) model.Status {
		if call < n {
			return model.StatusMoreData
		}
		return model.StatusOk
	}
}

// always returns a status func that always returns s.
func always(s model.Status) func(int) model.Status {
	return func(int) model.Status { return s }
}

// testHarness wires mock stages into a registry.
type testHarness struct {
	registry     *Registry
	stages       map[string]*mockStage
	sink         *mockStage
	archive      *mockStage
	sinkCreated  int
	archCreated  int
	createdByKey map[string]int
}

// newTestHarness registers every named mock plus a direct and archive sink.
func newTestHarness(t *testing.T, stages map[string]*mockStage) *testHarness {
	t.Helper()

	h := &testHarness{
		registry:     NewRegistry(),
		stages:       stages,
		sink:         &mockStage{drain: true},
		archive:      &mockStage{drain: true},
		createdByKey: make(map[string]int),
	}
	for name, stage := range stages {
		h.registry.MustRegister(name, FactoryFunc(func() Stage {
			h.createdByKey[name]++
			return stage
		}))
	}
	h.registry.RegisterSinks(
		FactoryFunc(func() Stage {
			h.sinkCreated++
			return h.sink
		}),
		FactoryFunc(func() Stage {
			h.archCreated++
			return h.archive
		}),
	)
	return h
}

// run builds and runs configs with the given params and progress.
func (h *testHarness) run(t *testing.T, configs []model.StageConfig, params model.Params, progress Progress) (*model.RunContext, model.Status) {
	t.Helper()

	d := New(h.registry)
	run := model.NewRunContext(params, nil, nil)
	status, err := d.Execute(context.Background(), configs, run, progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return run, status
}

// recordingProgress records updates and cancels from a given position on.
type recordingProgress struct {
	updates  [][2]int
	cancelAt int
	current  int
}

// UpdateProgress implements Progress.
func (p *recordingProgress) UpdateProgress(total, current int) {
	p.updates = append(p.updates, [2]int{total, current})
	p.current = current
}

// IsCanceled implements Progress.
func (p *recordingProgress) IsCanceled() bool {
	return p.cancelAt >= 0 && p.current >= p.cancelAt
}

// TestDriverResetAlways tests that every instance is reset exactly once.
func TestDriverResetAlways(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a        *mockStage
		cancelAt int
	}{
		{name: "normal completion", a: &mockStage{}, cancelAt: -1},
		{name: "pre-execute failure", a: &mockStage{pre: always(model.StatusFail)}, cancelAt: -1},
		{name: "execute failure", a: &mockStage{exec: always(model.StatusFail)}, cancelAt: -1},
		{name: "cancel before first stage", a: &mockStage{}, cancelAt: 0},
		{name: "cancel mid-run", a: &mockStage{}, cancelAt: 2},
		{name: "cancel before last stage", a: &mockStage{}, cancelAt: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := &mockStage{after: moreDataTimes(2)}
			c := &mockStage{}
			h := newTestHarness(t, map[string]*mockStage{"a": tt.a, "b": b, "c": c})
			configs := []model.StageConfig{
				model.Producer("a", "x", false),
				model.Producer("b", "x", true),
				model.Sink(),
				model.Transformer("c", nil),
				model.Sink(),
			}

			_, status := h.run(t, configs, model.Params{}, &recordingProgress{cancelAt: tt.cancelAt})

			if status != model.StatusOk {
				t.Errorf("expected StatusOk, got %v", status)
			}
			for name, stage := range map[string]*mockStage{"a": tt.a, "b": b, "c": c, "sink": h.sink} {
				if stage.resetCalls != 1 {
					t.Errorf("%s: expected 1 reset, got %d", name, stage.resetCalls)
				}
			}
		})
	}
}

// TestDriverChunkedFlush tests that a segment runs k+1 times for k MoreData signals.
func TestDriverChunkedFlush(t *testing.T) {
	t.Parallel()

	for _, k := range []int{0, 1, 3} {
		t.Run("k="+string(rune('0'+k)), func(t *testing.T) {
			t.Parallel()

			before := &mockStage{}
			producer := &mockStage{after: moreDataTimes(k), emit: "chunk"}
			filter := &mockStage{}
			tail := &mockStage{}
			h := newTestHarness(t, map[string]*mockStage{
				"before": before, "producer": producer, "filter": filter, "tail": tail,
			})
			configs := []model.StageConfig{
				model.Producer("before", "a", false),
				model.Producer("producer", "b", true),
				model.Transformer("filter", nil),
				model.Sink(),
				model.Producer("tail", "c", false),
			}

			h.run(t, configs, model.Params{}, nil)

			if producer.execCalls != k+1 {
				t.Errorf("producer: expected %d executions, got %d", k+1, producer.execCalls)
			}
			if filter.execCalls != k+1 {
				t.Errorf("filter: expected %d executions, got %d", k+1, filter.execCalls)
			}
			if h.sink.execCalls != k+1 {
				t.Errorf("sink: expected %d executions, got %d", k+1, h.sink.execCalls)
			}
			if before.execCalls != 1 {
				t.Errorf("stage before the loop point must run once, got %d", before.execCalls)
			}
			if tail.execCalls != 1 {
				t.Errorf("stage after the sink must run once, got %d", tail.execCalls)
			}
		})
	}

	t.Run("sink clears the buffer on every flush", func(t *testing.T) {
		t.Parallel()

		producer := &mockStage{after: moreDataTimes(2), emit: "chunk"}
		h := newTestHarness(t, map[string]*mockStage{"producer": producer})
		configs := []model.StageConfig{
			model.Producer("producer", "", true),
			model.Sink(),
		}

		h.run(t, configs, model.Params{}, nil)

		if len(h.sink.flushed) != 3 {
			t.Fatalf("expected 3 flushes, got %d", len(h.sink.flushed))
		}
		for i, rows := range h.sink.flushed {
			if len(rows) != 1 {
				t.Errorf("flush %d: expected exactly one chunk row, got %d", i, len(rows))
			}
		}
	})

	t.Run("group marker also ends a segment", func(t *testing.T) {
		t.Parallel()

		producer := &mockStage{after: moreDataTimes(2)}
		group := &mockStage{}
		h := newTestHarness(t, map[string]*mockStage{"producer": producer, "group": group})
		configs := []model.StageConfig{
			model.Producer("producer", "", true),
			model.GroupMarker(),
			model.Sink(),
		}

		h.run(t, configs, model.Params{}, nil)

		if group.execCalls != 3 {
			t.Errorf("expected group marker to run 3 times, got %d", group.execCalls)
		}
		if h.sink.execCalls != 1 {
			t.Errorf("expected sink after the group marker to run once, got %d", h.sink.execCalls)
		}
	})

	t.Run("not loop-eligible producer never rewinds", func(t *testing.T) {
		t.Parallel()

		producer := &mockStage{after: always(model.StatusMoreData)}
		h := newTestHarness(t, map[string]*mockStage{"producer": producer})
		configs := []model.StageConfig{
			model.Producer("producer", "", false),
			model.Sink(),
		}

		h.run(t, configs, model.Params{}, nil)

		if h.sink.execCalls != 1 {
			t.Errorf("expected 1 sink execution, got %d", h.sink.execCalls)
		}
	})
}

// TestDriverTieBreak tests that only the last loop point of a pass is honored.
func TestDriverTieBreak(t *testing.T) {
	t.Parallel()

	p1 := &mockStage{after: moreDataTimes(1)}
	p2 := &mockStage{after: moreDataTimes(2)}
	h := newTestHarness(t, map[string]*mockStage{"p1": p1, "p2": p2})
	configs := []model.StageConfig{
		model.Producer("p1", "A", true),
		model.Producer("p2", "A", true),
		model.Sink(),
	}

	h.run(t, configs, model.Params{}, nil)

	if h.sink.execCalls != 3 {
		t.Errorf("expected 3 sink invocations, got %d", h.sink.execCalls)
	}
	if p1.execCalls != 1 {
		t.Errorf("expected p1 pending data to be discarded after one run, got %d runs", p1.execCalls)
	}
	if p2.execCalls != 3 {
		t.Errorf("expected p2 to run 3 times, got %d", p2.execCalls)
	}
}

// TestDriverGroupTitles tests section titles through the driver.
func TestDriverGroupTitles(t *testing.T) {
	t.Parallel()

	countTitles := func(rows []model.Row) []string {
		titles := make([]string, 0)
		for _, row := range rows {
			if section, ok := row.TitleSection(); ok {
				titles = append(titles, section)
			}
		}
		return titles
	}

	tests := []struct {
		name     string
		sections []string
		params   model.Params
		want     []string
	}{
		{name: "plain sections", sections: []string{"cpu", "net"}, want: []string{"cpu", "net"}},
		{name: "no duplicate on repeat", sections: []string{"cpu", "cpu"}, want: []string{"cpu"}},
		{name: "re-entered section", sections: []string{"cpu", "net", "cpu"}, want: []string{"cpu", "net", "cpu"}},
		{name: "ipc never titled", sections: []string{"ipc"}, want: []string{}},
		{name: "ability never titled", sections: []string{"ability", "ability"}, want: []string{}},
		{name: "memory without pid", sections: []string{"memory"}, params: model.Params{Pid: 0}, want: []string{}},
		{name: "memory with interval", sections: []string{"memory"}, params: model.Params{Pid: 7, TimeInterval: time.Second}, want: []string{}},
		{name: "memory with pid", sections: []string{"memory", "memory"}, params: model.Params{Pid: 7}, want: []string{"memory"}},
		{name: "empty section", sections: []string{""}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stages := make(map[string]*mockStage)
			configs := make([]model.StageConfig, 0)
			for i, section := range tt.sections {
				name := "p" + string(rune('0'+i))
				stages[name] = &mockStage{}
				configs = append(configs, model.Producer(name, section, false))
			}
			configs = append(configs, model.Sink())
			h := newTestHarness(t, stages)

			h.run(t, configs, tt.params, nil)

			if len(h.sink.flushed) != 1 {
				t.Fatalf("expected 1 flush, got %d", len(h.sink.flushed))
			}
			got := countTitles(h.sink.flushed[0])
			if len(got) != len(tt.want) {
				t.Fatalf("got titles %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("title %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	t.Run("transformer sections are ignored", func(t *testing.T) {
		t.Parallel()

		f := &mockStage{}
		h := newTestHarness(t, map[string]*mockStage{"f": f})
		configs := []model.StageConfig{
			{Name: "f", Kind: model.KindTransformer, Section: "cpu"},
			model.Sink(),
		}

		h.run(t, configs, model.Params{}, nil)

		if got := countTitles(h.sink.flushed[0]); len(got) != 0 {
			t.Errorf("expected no titles, got %v", got)
		}
	})
}

// TestDriverFailureIsolation tests that a broken stage does not stop the run.
func TestDriverFailureIsolation(t *testing.T) {
	t.Parallel()

	t.Run("transformer pre-execute failure", func(t *testing.T) {
		t.Parallel()

		tr := &mockStage{pre: always(model.StatusFail)}
		h := newTestHarness(t, map[string]*mockStage{"t": tr})
		configs := []model.StageConfig{
			model.Transformer("t", nil),
			model.Sink(),
		}

		run, status := h.run(t, configs, model.Params{}, nil)

		if status != model.StatusOk {
			t.Errorf("expected StatusOk, got %v", status)
		}
		if tr.execCalls != 0 || tr.afterCalls != 0 {
			t.Errorf("expected failed stage to be skipped, got exec=%d after=%d", tr.execCalls, tr.afterCalls)
		}
		if h.sink.execCalls != 1 {
			t.Errorf("expected sink to run once, got %d", h.sink.execCalls)
		}
		if run.Usage.Stages[0].PreFails != 1 {
			t.Errorf("expected pre-failure to be counted, got %+v", run.Usage.Stages[0])
		}
	})

	t.Run("execute failure skips after-execute and loop accounting", func(t *testing.T) {
		t.Parallel()

		p := &mockStage{exec: always(model.StatusFail), after: always(model.StatusMoreData)}
		h := newTestHarness(t, map[string]*mockStage{"p": p})
		configs := []model.StageConfig{
			model.Producer("p", "", true),
			model.Sink(),
		}

		run, _ := h.run(t, configs, model.Params{}, nil)

		if p.afterCalls != 0 {
			t.Errorf("expected AfterExecute to be skipped, got %d calls", p.afterCalls)
		}
		if h.sink.execCalls != 1 {
			t.Errorf("expected no rewind, got %d sink executions", h.sink.execCalls)
		}
		if run.Usage.StageFailures() != 1 {
			t.Errorf("expected 1 failure, got %d", run.Usage.StageFailures())
		}
	})

	t.Run("execute MoreData on non-producer is treated as ok", func(t *testing.T) {
		t.Parallel()

		tr := &mockStage{exec: always(model.StatusMoreData)}
		h := newTestHarness(t, map[string]*mockStage{"t": tr})
		configs := []model.StageConfig{
			model.Transformer("t", nil),
			model.Sink(),
		}

		h.run(t, configs, model.Params{}, nil)

		if tr.afterCalls != 1 {
			t.Errorf("expected AfterExecute to run, got %d", tr.afterCalls)
		}
	})
}

// TestDriverCancellation tests cancellation before position 2 of 5.
func TestDriverCancellation(t *testing.T) {
	t.Parallel()

	stages := map[string]*mockStage{
		"s0": {}, "s1": {}, "s2": {}, "s3": {}, "s4": {},
	}
	h := newTestHarness(t, stages)
	configs := []model.StageConfig{
		model.Producer("s0", "a", false),
		model.Producer("s1", "a", false),
		model.Producer("s2", "b", false),
		model.Transformer("s3", nil),
		model.Producer("s4", "c", false),
	}
	progress := &recordingProgress{cancelAt: 2}

	run, status := h.run(t, configs, model.Params{}, progress)

	if status != model.StatusOk {
		t.Errorf("expected StatusOk, got %v", status)
	}
	for _, name := range []string{"s0", "s1"} {
		if stages[name].execCalls != 1 || stages[name].afterCalls != 1 {
			t.Errorf("%s: expected full execution, got exec=%d after=%d", name, stages[name].execCalls, stages[name].afterCalls)
		}
	}
	for _, name := range []string{"s2", "s3", "s4"} {
		if stages[name].preCalls != 0 || stages[name].execCalls != 0 {
			t.Errorf("%s: expected no execution, got pre=%d exec=%d", name, stages[name].preCalls, stages[name].execCalls)
		}
	}
	for name, stage := range stages {
		if stage.resetCalls != 1 {
			t.Errorf("%s: expected 1 reset, got %d", name, stage.resetCalls)
		}
	}
	if !run.Usage.Canceled {
		t.Error("expected usage record to be marked canceled")
	}
	last := progress.updates[len(progress.updates)-1]
	if last != [2]int{5, 5} {
		t.Errorf("expected final progress (5, 5), got %v", last)
	}
}

// TestDriverProgress tests progress reporting on a normal run.
func TestDriverProgress(t *testing.T) {
	t.Parallel()

	p := &mockStage{after: moreDataTimes(1)}
	h := newTestHarness(t, map[string]*mockStage{"p": p})
	configs := []model.StageConfig{
		model.Producer("p", "", true),
		model.Sink(),
	}
	progress := &recordingProgress{cancelAt: -1}

	h.run(t, configs, model.Params{}, progress)

	want := [][2]int{{2, 0}, {2, 1}, {2, 0}, {2, 1}, {2, 2}}
	if len(progress.updates) != len(want) {
		t.Fatalf("got updates %v, want %v", progress.updates, want)
	}
	for i := range want {
		if progress.updates[i] != want[i] {
			t.Errorf("update %d: got %v, want %v", i, progress.updates[i], want[i])
		}
	}
}

// TestDriverBuild tests plan construction.
func TestDriverBuild(t *testing.T) {
	t.Parallel()

	t.Run("creates one sink instance for many sink configs", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, map[string]*mockStage{"a": {}, "b": {}})
		d := New(h.registry)
		configs := []model.StageConfig{
			model.Producer("a", "", false),
			model.Sink(),
			model.Producer("b", "", false),
			model.Sink(),
			model.Sink(),
		}

		plan, err := d.Build(configs, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if plan.Len() != 5 {
			t.Errorf("expected 5 positions, got %d", plan.Len())
		}
		if plan.InstanceCount() != 3 {
			t.Errorf("expected 3 instances, got %d", plan.InstanceCount())
		}
		if h.sinkCreated != 1 {
			t.Errorf("expected sink factory to be called once, got %d", h.sinkCreated)
		}

		d.Run(context.Background(), plan, model.NewRunContext(model.Params{}, nil, nil), nil)
		if h.sink.resetCalls != 1 {
			t.Errorf("expected shared sink to be reset once, got %d", h.sink.resetCalls)
		}
		if h.sink.execCalls != 3 {
			t.Errorf("expected shared sink to execute 3 times, got %d", h.sink.execCalls)
		}
	})

	t.Run("compress selects the archive sink", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, map[string]*mockStage{})
		d := New(h.registry)

		if _, err := d.Build([]model.StageConfig{model.Sink(), model.Sink()}, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.archCreated != 1 || h.sinkCreated != 0 {
			t.Errorf("expected archive sink only, got archive=%d direct=%d", h.archCreated, h.sinkCreated)
		}
	})

	t.Run("unknown stage", func(t *testing.T) {
		t.Parallel()

		d := New(NewRegistry())
		_, err := d.Build([]model.StageConfig{model.Producer("nope", "", false)}, false)
		if !errors.Is(err, ErrUnknownStage) {
			t.Errorf("expected ErrUnknownStage, got %v", err)
		}
	})

	t.Run("sink without registered factory", func(t *testing.T) {
		t.Parallel()

		d := New(NewRegistry())
		_, err := d.Build([]model.StageConfig{model.Sink()}, true)
		if !errors.Is(err, ErrNoSink) {
			t.Errorf("expected ErrNoSink, got %v", err)
		}
	})

	t.Run("no sink needed without sink configs", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, map[string]*mockStage{"a": {}})
		h.registry.RegisterSinks(nil, nil)
		d := New(h.registry)
		if _, err := d.Build([]model.StageConfig{model.Producer("a", "", false)}, false); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("plan names", func(t *testing.T) {
		t.Parallel()

		h := newTestHarness(t, map[string]*mockStage{"a": {}})
		plan, err := New(h.registry).Build([]model.StageConfig{model.Producer("a", "", false), model.Sink()}, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names := plan.Names()
		if names[0] != "a" || names[1] != "sink" {
			t.Errorf("unexpected names %v", names)
		}
		if len(plan.Configs()) != 2 {
			t.Errorf("expected 2 configs, got %d", len(plan.Configs()))
		}
	})
}

// recordingObserver counts observations.
type recordingObserver struct {
	visits   map[VisitResult]int
	runs     int
	canceled bool
}

func (o *recordingObserver) ObserveStage(_ model.StageConfig, result VisitResult, _ time.Duration) {
	o.visits[result]++
}

func (o *recordingObserver) ObserveRun(canceled bool) {
	o.runs++
	o.canceled = canceled
}

// TestDriverObserver tests observer notifications.
func TestDriverObserver(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t, map[string]*mockStage{
		"ok":   {},
		"fail": {pre: always(model.StatusFail)},
	})
	obs := &recordingObserver{visits: make(map[VisitResult]int)}
	d := New(h.registry, WithObserver(obs))
	configs := []model.StageConfig{
		model.Producer("ok", "", false),
		model.Producer("fail", "", false),
		model.Sink(),
	}

	if _, err := d.Execute(context.Background(), configs, model.NewRunContext(model.Params{}, nil, nil), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if obs.visits[VisitCompleted] != 2 || obs.visits[VisitPreFailed] != 1 {
		t.Errorf("unexpected visits %v", obs.visits)
	}
	if obs.runs != 1 || obs.canceled {
		t.Errorf("unexpected run observation runs=%d canceled=%v", obs.runs, obs.canceled)
	}
}

// configurableStage records the StageConfig passed to Configure.
type configurableStage struct {
	mockStage
	got model.StageConfig
	err error
}

// Configure implements Configurable.
func (c *configurableStage) Configure(cfg model.StageConfig) error {
	c.got = cfg
	return c.err
}

func TestDriverBuildConfigures(t *testing.T) {
	t.Parallel()

	t.Run("target and args reach the stage", func(t *testing.T) {
		t.Parallel()

		stage := &configurableStage{}
		reg := NewRegistry()
		reg.MustRegister("file", FactoryFunc(func() Stage { return stage }))

		cfg := model.StageConfig{Name: "file", Kind: model.KindProducer, Target: "/etc/hostname", Args: map[string]string{"max": "10"}}
		if _, err := New(reg).Build([]model.StageConfig{cfg}, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stage.got.Target != "/etc/hostname" || stage.got.Arg("max") != "10" {
			t.Errorf("Configure got %+v", stage.got)
		}
	})

	t.Run("configure error fails the build", func(t *testing.T) {
		t.Parallel()

		errBad := errors.New("bad target")
		reg := NewRegistry()
		reg.MustRegister("file", FactoryFunc(func() Stage { return &configurableStage{err: errBad} }))

		_, err := New(reg).Build([]model.StageConfig{model.Producer("file", "file", false)}, false)
		if !errors.Is(err, errBad) {
			t.Errorf("expected %v, got %v", errBad, err)
		}
	})
}
