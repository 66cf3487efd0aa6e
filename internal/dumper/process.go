package dumper

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sysdump/internal/model"
)

// statWorkers bounds the goroutines reading /proc/<pid>/stat per chunk.
const statWorkers = 8

// processHeader is the first row of every process table chunk.
var processHeader = []string{"PID", "PPID", "STATE", "COMM", "THREADS", "UTIME", "STIME"}

// processDumper writes the process table in chunks of Params.ChunkSize.
// With Params.Pid set it writes the detail of that one process instead.
type processDumper struct {
	base
	procs  procfs.Procs
	win    window
	loaded bool
}

func newProcessDumper() *processDumper {
	return &processDumper{base: base{name: NameProcess}}
}

// PreExecute implements pipeline.Stage.
func (d *processDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *processDumper) Execute(ctx context.Context) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	if pid := d.params().Pid; pid > 0 {
		return d.single(fs, pid)
	}

	if !d.loaded {
		procs, err := listProcs(fs)
		if err != nil {
			return d.fail("failed to list processes", err)
		}
		d.procs = procs
		d.win = window{total: len(procs)}
		d.loaded = true
	}
	if !d.win.remaining() {
		return model.StatusOk
	}

	start, end := d.win.take(d.params().ChunkSize)
	stats, err := readStats(ctx, d.procs[start:end])
	if err != nil {
		return d.fail("failed to read process stats", err)
	}

	d.buf.Append(processHeader...)
	for _, s := range stats {
		if s == nil {
			continue
		}
		d.buf.Append(
			strconv.Itoa(s.PID),
			strconv.Itoa(s.PPID),
			s.State,
			s.Comm,
			strconv.Itoa(s.NumThreads),
			strconv.FormatUint(uint64(s.UTime), 10),
			strconv.FormatUint(uint64(s.STime), 10),
		)
	}
	d.logger.Debug("process chunk written", "from", start, "to", end, "total", d.win.total)
	return model.StatusOk
}

// single writes the detail of one process.
func (d *processDumper) single(fs procfs.FS, pid int) model.Status {
	p, err := fs.Proc(pid)
	if err != nil {
		return d.fail("failed to open process", err)
	}
	s, err := p.Stat()
	if err != nil {
		return d.fail("failed to read process stat", err)
	}
	cmdline, err := p.CmdLine()
	if err != nil {
		d.logger.Debug("failed to read cmdline", "pid", pid, "error", err)
	}

	d.buf.Append("FIELD", "VALUE")
	d.buf.Append("pid", strconv.Itoa(s.PID))
	d.buf.Append("ppid", strconv.Itoa(s.PPID))
	d.buf.Append("state", s.State)
	d.buf.Append("comm", s.Comm)
	d.buf.Append("cmdline", strings.Join(cmdline, " "))
	d.buf.Append("threads", strconv.Itoa(s.NumThreads))
	d.buf.Append("cpu_seconds", seconds(s.CPUTime()))
	d.buf.Append("vsize_kb", count(kib(uint64(s.VirtualMemory()))))
	return model.StatusOk
}

// AfterExecute implements pipeline.Stage.
func (d *processDumper) AfterExecute() model.Status {
	return moreIf(d.loaded && d.win.remaining())
}

// Reset implements pipeline.Stage.
func (d *processDumper) Reset() {
	d.procs = nil
	d.win = window{}
	d.loaded = false
	d.base.Reset()
}

// listProcs returns every process sorted by PID.
func listProcs(fs procfs.FS) (procfs.Procs, error) {
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, err
	}
	sort.Sort(procs)
	return procs, nil
}

// readStats reads /proc/<pid>/stat for every process concurrently.
// Entries for processes that exited meanwhile are nil.
func readStats(ctx context.Context, procs []procfs.Proc) ([]*procfs.ProcStat, error) {
	stats := make([]*procfs.ProcStat, len(procs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(statWorkers)
	for i, p := range procs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := p.Stat()
			if err != nil {
				return nil
			}
			stats[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
