package dumper

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"

	"github.com/nao1215/sysdump/internal/model"
)

// ipcFiles are the System V IPC tables under <proc>/sysvipc.
var ipcFiles = []string{"msg", "sem", "shm"}

// ipcDumper writes the System V message queue, semaphore and shared
// memory tables. The section is never titled.
type ipcDumper struct {
	base
}

func newIPCDumper() *ipcDumper {
	return &ipcDumper{base: base{name: NameIPC}}
}

// PreExecute implements pipeline.Stage.
func (d *ipcDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *ipcDumper) Execute(_ context.Context) model.Status {
	mount := d.params().ProcMount
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}

	written := 0
	for _, name := range ipcFiles {
		data, err := os.ReadFile(filepath.Join(mount, "sysvipc", name))
		if err != nil {
			d.logger.Debug("ipc table unavailable", "table", name, "error", err)
			continue
		}
		rows := fieldRows(data)
		if len(rows) == 0 {
			continue
		}
		if written > 0 {
			d.buf.Append("")
		}
		d.buf.Append("sysvipc/" + name)
		d.buf.Append("")
		d.buf.AppendRows(rows...)
		written++
	}
	if written == 0 {
		return d.fail("no ipc tables readable", os.ErrNotExist)
	}
	return model.StatusOk
}

// fieldRows splits every non-empty line of data on whitespace.
func fieldRows(data []byte) []model.Row {
	var rows []model.Row
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, model.Row(fields))
	}
	return rows
}
