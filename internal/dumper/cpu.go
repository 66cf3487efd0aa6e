package dumper

import (
	"context"
	"sort"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// cpuDumper writes the /proc/stat CPU time table.
type cpuDumper struct {
	base
}

func newCPUDumper() *cpuDumper {
	return &cpuDumper{base: base{name: NameCPU}}
}

// PreExecute implements pipeline.Stage.
func (d *cpuDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *cpuDumper) Execute(_ context.Context) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	stat, err := fs.Stat()
	if err != nil {
		return d.fail("failed to read cpu stat", err)
	}

	d.buf.Append("CPU", "USER", "NICE", "SYSTEM", "IDLE", "IOWAIT", "IRQ", "SOFTIRQ", "STEAL")
	d.buf.Append(cpuRow("cpu", stat.CPUTotal)...)

	ids := make([]int64, 0, len(stat.CPU))
	for id := range stat.CPU {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		d.buf.Append(cpuRow("cpu"+strconv.FormatInt(id, 10), stat.CPU[id])...)
	}

	d.buf.Append("")
	d.buf.Append("COUNTER", "VALUE")
	d.buf.Append("context_switches", count(stat.ContextSwitches))
	d.buf.Append("processes_created", count(stat.ProcessCreated))
	d.buf.Append("procs_running", count(stat.ProcessesRunning))
	d.buf.Append("procs_blocked", count(stat.ProcessesBlocked))
	return model.StatusOk
}

// cpuRow renders one CPU's times in seconds.
func cpuRow(name string, s procfs.CPUStat) []string {
	return []string{
		name,
		seconds(s.User),
		seconds(s.Nice),
		seconds(s.System),
		seconds(s.Idle),
		seconds(s.Iowait),
		seconds(s.IRQ),
		seconds(s.SoftIRQ),
		seconds(s.Steal),
	}
}

// cpuFreqDumper writes the model and clock of every logical CPU.
type cpuFreqDumper struct {
	base
}

func newCPUFreqDumper() *cpuFreqDumper {
	return &cpuFreqDumper{base: base{name: NameCPUFreq}}
}

// PreExecute implements pipeline.Stage.
func (d *cpuFreqDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *cpuFreqDumper) Execute(_ context.Context) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	infos, err := fs.CPUInfo()
	if err != nil {
		return d.fail("failed to read cpuinfo", err)
	}

	d.buf.Append("PROCESSOR", "MODEL", "MHZ", "CORES")
	for _, info := range infos {
		d.buf.Append(
			strconv.FormatUint(uint64(info.Processor), 10),
			info.ModelName,
			strconv.FormatFloat(info.CPUMHz, 'f', 3, 64),
			strconv.FormatUint(uint64(info.CPUCores), 10),
		)
	}
	return model.StatusOk
}
