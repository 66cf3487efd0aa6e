package dumper

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// versionDumper writes the tool version and basic host identification.
type versionDumper struct {
	base
	now func() time.Time
}

func newVersionDumper() *versionDumper {
	return &versionDumper{base: base{name: NameVersion}, now: time.Now}
}

// PreExecute implements pipeline.Stage.
func (d *versionDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *versionDumper) Execute(_ context.Context) model.Status {
	p := d.params()
	version := p.Version
	if version == "" {
		version = "unknown"
	}
	mount := p.ProcMount
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}

	kernel := "unknown"
	if data, err := os.ReadFile(filepath.Join(mount, "sys", "kernel", "osrelease")); err == nil {
		kernel = strings.TrimSpace(string(data))
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	d.buf.Append("KEY", "VALUE")
	d.buf.Append("sysdump", version)
	d.buf.Append("kernel", kernel)
	d.buf.Append("hostname", host)
	d.buf.Append("os/arch", runtime.GOOS+"/"+runtime.GOARCH)
	d.buf.Append("go", runtime.Version())
	d.buf.Append("time", d.now().Format(time.RFC3339))
	if d.run != nil {
		d.buf.Append("run", d.run.ID)
	}
	return model.StatusOk
}
