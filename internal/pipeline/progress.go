package pipeline

import (
	"context"
	"log/slog"
)

// Progress is supplied by the caller. The driver reports progress and polls
// for cancellation once per stage position.
type Progress interface {
	// UpdateProgress reports that current of total positions have been reached.
	UpdateProgress(total, current int)

	// IsCanceled reports whether the run should stop.
	IsCanceled() bool
}

// ContextProgress cancels when its context is done and forwards progress
// updates to an optional callback and logger.
type ContextProgress struct {
	ctx    context.Context
	logger *slog.Logger
	report func(total, current int)
}

// ProgressOption configures a ContextProgress.
type ProgressOption func(*ContextProgress)

// WithProgressLogger logs every progress update at debug level.
func WithProgressLogger(logger *slog.Logger) ProgressOption {
	return func(p *ContextProgress) {
		p.logger = logger
	}
}

// WithProgressFunc calls fn on every progress update.
func WithProgressFunc(fn func(total, current int)) ProgressOption {
	return func(p *ContextProgress) {
		p.report = fn
	}
}

// NewContextProgress creates a Progress that is canceled together with ctx.
func NewContextProgress(ctx context.Context, opts ...ProgressOption) *ContextProgress {
	p := &ContextProgress{ctx: ctx}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpdateProgress implements Progress.
func (p *ContextProgress) UpdateProgress(total, current int) {
	if p.logger != nil {
		p.logger.Debug("progress", "current", current, "total", total)
	}
	if p.report != nil {
		p.report(total, current)
	}
}

// IsCanceled implements Progress.
func (p *ContextProgress) IsCanceled() bool {
	return p.ctx.Err() != nil
}

// nopProgress never cancels and ignores updates.
type nopProgress struct{}

func (nopProgress) UpdateProgress(int, int) {}
func (nopProgress) IsCanceled() bool        { return false }
