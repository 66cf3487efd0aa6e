package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nao1215/sysdump/internal/model"
	"github.com/nao1215/sysdump/internal/pipeline"
)

const namespace = "sysdump"

// Outcome label values of sysdump_stage_runs_total.
const (
	OutcomeCompleted  = "completed"
	OutcomePreFailed  = "pre_failed"
	OutcomeExecFailed = "exec_failed"
)

// Recorder collects stage and run metrics into its own registry.
// It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	// stageRuns counts stage visits.
	// Labels: stage, kind, outcome (completed, pre_failed, exec_failed)
	stageRuns *prometheus.CounterVec

	// stageDuration measures how long a single visit took.
	// Labels: stage
	stageDuration *prometheus.HistogramVec

	// sinkFlushes counts completed Sink visits.
	sinkFlushes prometheus.Counter

	// runCanceled is 1 when the last run stopped early.
	runCanceled prometheus.Gauge

	mu   sync.Mutex
	runs int
}

var _ pipeline.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_runs_total",
			Help:      "Total pipeline stage visits by outcome",
		}, []string{"stage", "kind", "outcome"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one pipeline stage visit in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"stage"}),
		sinkFlushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_flushes_total",
			Help:      "Total completed sink flushes",
		}),
		runCanceled: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_canceled",
			Help:      "1 if the last run was canceled, 0 otherwise",
		}),
	}
}

// Registry returns the registry holding the recorder's metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage implements pipeline.Observer.
func (r *Recorder) ObserveStage(cfg model.StageConfig, result pipeline.VisitResult, elapsed time.Duration) {
	stage := stageLabel(cfg)
	r.stageRuns.WithLabelValues(stage, cfg.Kind.String(), outcome(result)).Inc()
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if cfg.Kind == model.KindSink && result == pipeline.VisitCompleted {
		r.sinkFlushes.Inc()
	}
}

// ObserveRun implements pipeline.Observer.
func (r *Recorder) ObserveRun(canceled bool) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	if canceled {
		r.runCanceled.Set(1)
		return
	}
	r.runCanceled.Set(0)
}

// Runs returns how many runs have been observed.
func (r *Recorder) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func stageLabel(cfg model.StageConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return cfg.Kind.String()
}

func outcome(result pipeline.VisitResult) string {
	switch result {
	case pipeline.VisitPreFailed:
		return OutcomePreFailed
	case pipeline.VisitExecFailed:
		return OutcomeExecFailed
	default:
		return OutcomeCompleted
	}
}
