package dumper

import (
	"context"
	"strconv"

	"github.com/prometheus/procfs/blockdevice"

	"github.com/nao1215/sysdump/internal/model"
)

// storageDumper writes /proc/diskstats per block device, or the
// /proc/<pid>/io counters of Params.Pid.
type storageDumper struct {
	base
}

func newStorageDumper() *storageDumper {
	return &storageDumper{base: base{name: NameStorage}}
}

// PreExecute implements pipeline.Stage.
func (d *storageDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *storageDumper) Execute(_ context.Context) model.Status {
	p := d.params()
	if p.Pid > 0 {
		return d.process(p.Pid)
	}
	fs, err := blockdevice.NewFS(p.ProcMount, p.SysMount)
	if err != nil {
		return d.fail("failed to open block device fs", err)
	}
	stats, err := fs.ProcDiskstats()
	if err != nil {
		return d.fail("failed to read diskstats", err)
	}

	d.buf.Append("DEVICE", "MAJ:MIN", "READS", "READ_SECTORS", "WRITES", "WRITE_SECTORS", "IN_PROGRESS", "IO_MS")
	for _, s := range stats {
		d.buf.Append(
			s.DeviceName,
			count(s.MajorNumber)+":"+count(s.MinorNumber),
			count(s.ReadIOs),
			count(s.ReadSectors),
			count(s.WriteIOs),
			count(s.WriteSectors),
			count(s.IOsInProgress),
			count(s.IOsTotalTicks),
		)
	}
	return model.StatusOk
}

func (d *storageDumper) process(pid int) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	proc, err := fs.Proc(pid)
	if err != nil {
		return d.fail("failed to open process", err)
	}
	pio, err := proc.IO()
	if err != nil {
		return d.fail("failed to read process io", err)
	}

	d.buf.Append("FIELD", "VALUE")
	d.buf.Append("pid", strconv.Itoa(pid))
	d.buf.Append("rchar", count(pio.RChar))
	d.buf.Append("wchar", count(pio.WChar))
	d.buf.Append("syscr", count(pio.SyscR))
	d.buf.Append("syscw", count(pio.SyscW))
	d.buf.Append("read_bytes", count(pio.ReadBytes))
	d.buf.Append("write_bytes", count(pio.WriteBytes))
	d.buf.Append("cancelled_write_bytes", count(pio.CancelledWriteBytes))
	return model.StatusOk
}
