package dumper

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// memoryMode selects what the memory Producer writes.
type memoryMode int

const (
	memorySystem memoryMode = iota
	memoryProcess
	memorySampling
)

// memoryDumper writes memory usage.
//
// In system mode the first pass writes /proc/meminfo and later passes
// write per-process RSS in chunks. In process mode (Params.Pid > 0) it
// writes one /proc/<pid>/status breakdown followed by the PSS totals of
// /proc/<pid>/smaps_rollup. When Params.TimeInterval is
// positive it takes one sample per pass, Params.Samples times, sleeping
// the interval between samples.
type memoryDumper struct {
	base
	mode memoryMode

	summarized bool
	procs      procfs.Procs
	win        window

	taken int
}

func newMemoryDumper() *memoryDumper {
	return &memoryDumper{base: base{name: NameMemory}}
}

// PreExecute implements pipeline.Stage.
func (d *memoryDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	p := d.params()
	switch {
	case p.TimeInterval > 0:
		d.mode = memorySampling
	case p.Pid > 0:
		d.mode = memoryProcess
	default:
		d.mode = memorySystem
	}
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *memoryDumper) Execute(ctx context.Context) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	switch d.mode {
	case memorySampling:
		return d.sample(ctx, fs)
	case memoryProcess:
		return d.process(fs, d.params().Pid)
	default:
		return d.system(ctx, fs)
	}
}

// AfterExecute implements pipeline.Stage.
func (d *memoryDumper) AfterExecute() model.Status {
	switch d.mode {
	case memorySampling:
		return moreIf(d.taken < d.samples())
	case memorySystem:
		return moreIf(d.summarized && d.win.remaining())
	default:
		return model.StatusOk
	}
}

// Reset implements pipeline.Stage.
func (d *memoryDumper) Reset() {
	d.summarized = false
	d.procs = nil
	d.win = window{}
	d.taken = 0
	d.base.Reset()
}

func (d *memoryDumper) samples() int {
	if n := d.params().Samples; n > 0 {
		return n
	}
	return 1
}

// system writes meminfo on the first pass and RSS chunks afterwards.
func (d *memoryDumper) system(ctx context.Context, fs procfs.FS) model.Status {
	if !d.summarized {
		info, err := fs.Meminfo()
		if err != nil {
			return d.fail("failed to read meminfo", err)
		}
		d.buf.Append("FIELD", "KB")
		for _, f := range meminfoFields(info) {
			d.buf.Append(f.name, count(f.value))
		}

		procs, err := listProcs(fs)
		if err != nil {
			d.logger.Debug("failed to list processes", "error", err)
		}
		d.procs = procs
		d.win = window{total: len(procs)}
		d.summarized = true
		return model.StatusOk
	}
	if !d.win.remaining() {
		return model.StatusOk
	}

	start, end := d.win.take(d.params().ChunkSize)
	stats, err := readStats(ctx, d.procs[start:end])
	if err != nil {
		return d.fail("failed to read process stats", err)
	}
	d.buf.Append("PID", "COMM", "RSS_KB", "VSIZE_KB")
	for _, s := range stats {
		if s == nil {
			continue
		}
		d.buf.Append(
			strconv.Itoa(s.PID),
			s.Comm,
			count(kib(uint64(max(s.ResidentMemory(), 0)))),
			count(kib(uint64(s.VirtualMemory()))),
		)
	}
	return model.StatusOk
}

// process writes the memory breakdown of one process.
func (d *memoryDumper) process(fs procfs.FS, pid int) model.Status {
	status, err := readStatus(fs, pid)
	if err != nil {
		return d.fail("failed to read process status", err)
	}
	d.buf.Append("FIELD", "KB")
	d.buf.Append("pid", strconv.Itoa(status.PID))
	d.buf.Append("name", status.Name)
	for _, f := range statusFields(status) {
		d.buf.Append(f.name, count(f.value))
	}

	rollup, err := readSMapsRollup(fs, pid)
	if err != nil {
		// smaps needs ptrace access; the status rows stand on their own.
		d.logger.Debug("failed to read smaps rollup", "pid", pid, "error", err)
		return model.StatusOk
	}
	for _, f := range smapsFields(rollup) {
		d.buf.Append(f.name, count(f.value))
	}
	return model.StatusOk
}

// sample writes one timestamped sample with its header, sleeping the
// interval first on every pass but the first.
func (d *memoryDumper) sample(ctx context.Context, fs procfs.FS) model.Status {
	if d.taken > 0 {
		timer := time.NewTimer(d.params().TimeInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return d.fail("sampling interrupted", ctx.Err())
		case <-timer.C:
		}
	}
	d.taken++
	now := time.Now().Format(time.RFC3339)

	if pid := d.params().Pid; pid > 0 {
		status, err := readStatus(fs, pid)
		if err != nil {
			return d.fail("failed to read process status", err)
		}
		d.buf.Append("TIME", "PID", "RSS_KB", "SWAP_KB", "VMSIZE_KB")
		d.buf.Append(now, strconv.Itoa(pid), count(kib(status.VmRSS)), count(kib(status.VmSwap)), count(kib(status.VmSize)))
		return model.StatusOk
	}

	info, err := fs.Meminfo()
	if err != nil {
		return d.fail("failed to read meminfo", err)
	}
	d.buf.Append("TIME", "TOTAL_KB", "FREE_KB", "AVAILABLE_KB", "SWAP_FREE_KB")
	d.buf.Append(now, count(deref(info.MemTotal)), count(deref(info.MemFree)), count(deref(info.MemAvailable)), count(deref(info.SwapFree)))
	return model.StatusOk
}

// memField is one named kB value.
type memField struct {
	name  string
	value uint64
}

func meminfoFields(m procfs.Meminfo) []memField {
	return []memField{
		{"MemTotal", deref(m.MemTotal)},
		{"MemFree", deref(m.MemFree)},
		{"MemAvailable", deref(m.MemAvailable)},
		{"Buffers", deref(m.Buffers)},
		{"Cached", deref(m.Cached)},
		{"SwapCached", deref(m.SwapCached)},
		{"SwapTotal", deref(m.SwapTotal)},
		{"SwapFree", deref(m.SwapFree)},
		{"Shmem", deref(m.Shmem)},
	}
}

func statusFields(s procfs.ProcStatus) []memField {
	return []memField{
		{"VmPeak", kib(s.VmPeak)},
		{"VmSize", kib(s.VmSize)},
		{"VmHWM", kib(s.VmHWM)},
		{"VmRSS", kib(s.VmRSS)},
		{"RssAnon", kib(s.RssAnon)},
		{"RssFile", kib(s.RssFile)},
		{"RssShmem", kib(s.RssShmem)},
		{"VmData", kib(s.VmData)},
		{"VmStk", kib(s.VmStk)},
		{"VmSwap", kib(s.VmSwap)},
	}
}

func smapsFields(s procfs.ProcSMapsRollup) []memField {
	return []memField{
		{"Pss", kib(s.Pss)},
		{"SharedClean", kib(s.SharedClean)},
		{"SharedDirty", kib(s.SharedDirty)},
		{"PrivateClean", kib(s.PrivateClean)},
		{"PrivateDirty", kib(s.PrivateDirty)},
		{"Swap", kib(s.Swap)},
		{"SwapPss", kib(s.SwapPss)},
	}
}

func readSMapsRollup(fs procfs.FS, pid int) (procfs.ProcSMapsRollup, error) {
	p, err := fs.Proc(pid)
	if err != nil {
		return procfs.ProcSMapsRollup{}, err
	}
	return p.ProcSMapsRollup()
}

func readStatus(fs procfs.FS, pid int) (procfs.ProcStatus, error) {
	p, err := fs.Proc(pid)
	if err != nil {
		return procfs.ProcStatus{}, err
	}
	return p.NewStatus()
}
