package dumper

import (
	"context"
	"sort"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// netDumper writes /proc/net/dev counters per interface. With Params.Pid
// set it reads /proc/<pid>/net/dev, the view of that process's network
// namespace.
type netDumper struct {
	base
}

func newNetDumper() *netDumper {
	return &netDumper{base: base{name: NameNet}}
}

// PreExecute implements pipeline.Stage.
func (d *netDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *netDumper) Execute(_ context.Context) model.Status {
	fs, err := d.procFS()
	if err != nil {
		return d.fail("failed to open procfs", err)
	}
	dev, err := d.netDev(fs)
	if err != nil {
		return d.fail("failed to read net/dev", err)
	}

	names := make([]string, 0, len(dev))
	for name := range dev {
		names = append(names, name)
	}
	sort.Strings(names)

	d.buf.Append("IFACE", "RX_BYTES", "RX_PACKETS", "RX_ERRS", "RX_DROP", "TX_BYTES", "TX_PACKETS", "TX_ERRS", "TX_DROP")
	for _, name := range names {
		l := dev[name]
		d.buf.Append(
			name,
			count(l.RxBytes),
			count(l.RxPackets),
			count(l.RxErrors),
			count(l.RxDropped),
			count(l.TxBytes),
			count(l.TxPackets),
			count(l.TxErrors),
			count(l.TxDropped),
		)
	}
	return model.StatusOk
}

func (d *netDumper) netDev(fs procfs.FS) (procfs.NetDev, error) {
	pid := d.params().Pid
	if pid <= 0 {
		return fs.NetDev()
	}
	proc, err := fs.Proc(pid)
	if err != nil {
		return nil, err
	}
	return proc.NetDev()
}
