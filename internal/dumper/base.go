package dumper

import (
	"log/slog"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// base holds the per-run bindings shared by every stage.
// Stages embed it and call bind from PreExecute.
type base struct {
	name   string
	run    *model.RunContext
	buf    *model.ResultBuffer
	logger *slog.Logger
}

// bind stores the run and buffer. It is safe to call on every pass.
func (b *base) bind(run *model.RunContext, buf *model.ResultBuffer) {
	b.run = run
	b.buf = buf
	logger := slog.Default()
	if run != nil && run.Logger != nil {
		logger = run.Logger
	}
	b.logger = logger.With("stage", b.name)
}

// params returns the run parameters, or zero values before bind.
func (b *base) params() model.Params {
	if b.run == nil {
		return model.Params{}
	}
	return b.run.Params
}

// AfterExecute reports that nothing is pending.
func (b *base) AfterExecute() model.Status {
	return model.StatusOk
}

// debug logs at debug level once the stage has been bound.
func (b *base) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

// Reset drops the run bindings.
func (b *base) Reset() {
	b.run = nil
	b.buf = nil
}

// procFS opens the procfs mount configured for the run.
func (b *base) procFS() (procfs.FS, error) {
	mount := b.params().ProcMount
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	return procfs.NewFS(mount)
}

// fail logs err and returns StatusFail.
func (b *base) fail(msg string, err error) model.Status {
	b.logger.Warn(msg, "error", err)
	return model.StatusFail
}

// window walks n items in chunks.
type window struct {
	next  int
	total int
}

// take returns the bounds of the next chunk of at most size items.
// A size of zero or less takes everything that is left.
func (w *window) take(size int) (int, int) {
	start := w.next
	end := w.total
	if size > 0 && start+size < end {
		end = start + size
	}
	w.next = end
	return start, end
}

// remaining reports whether items are left.
func (w *window) remaining() bool {
	return w.next < w.total
}

// moreIf returns StatusMoreData when cond holds.
func moreIf(cond bool) model.Status {
	if cond {
		return model.StatusMoreData
	}
	return model.StatusOk
}
