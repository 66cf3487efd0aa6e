package dumper

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/sysdump/internal/model"
)

const (
	// maxCrashLogBytes caps how much of one crash log is read.
	maxCrashLogBytes = 1 << 20
	// maxLineBytes is the longest line a scanner accepts.
	maxLineBytes = 1 << 20
)

// crashFile is one entry of the fault-log directory.
type crashFile struct {
	path    string
	size    int64
	modTime time.Time
}

// crashLogDumper lists the crash logs in Params.FaultLogDir, newest first,
// and then writes one file per pass.
type crashLogDumper struct {
	base
	files  []crashFile
	win    window
	listed bool
}

func newCrashLogDumper() *crashLogDumper {
	return &crashLogDumper{base: base{name: NameCrashLog}}
}

// PreExecute implements pipeline.Stage.
func (d *crashLogDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	if d.params().FaultLogDir == "" {
		d.logger.Warn("no fault log directory configured")
		return model.StatusFail
	}
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *crashLogDumper) Execute(_ context.Context) model.Status {
	if !d.listed {
		files, err := listCrashFiles(d.params().FaultLogDir)
		if err != nil {
			return d.fail("failed to list fault logs", err)
		}
		d.files = files
		d.win = window{total: len(files)}
		d.listed = true

		d.buf.Append("FILE", "SIZE", "MODIFIED")
		for _, f := range files {
			d.buf.Append(filepath.Base(f.path), count(f.size), f.modTime.Format(time.RFC3339))
		}
		return model.StatusOk
	}
	if !d.win.remaining() {
		return model.StatusOk
	}

	start, _ := d.win.take(1)
	f := d.files[start]
	before := d.buf.Len()
	if err := appendFileLines(d.buf, f.path, maxCrashLogBytes, 0); err != nil {
		// A log rotated away since the listing must not end the chunking.
		d.logger.Warn("failed to read fault log", "path", f.path, "error", err)
		if d.buf.Len() == before {
			d.buf.Append(fileHeader(f.path))
		}
		d.buf.Append("[unreadable: " + err.Error() + "]")
	}
	return model.StatusOk
}

// AfterExecute implements pipeline.Stage.
func (d *crashLogDumper) AfterExecute() model.Status {
	return moreIf(d.listed && d.win.remaining())
}

// Reset implements pipeline.Stage.
func (d *crashLogDumper) Reset() {
	d.files = nil
	d.win = window{}
	d.listed = false
	d.base.Reset()
}

// listCrashFiles returns the regular files of dir, newest first.
func listCrashFiles(dir string) ([]crashFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]crashFile, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, crashFile{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.After(files[j].modTime)
	})
	return files, nil
}

// appendFileLines appends a path header and the lines of the file. The
// read stops after limit bytes and maxLines lines when they are positive.
// Nothing is appended when the file cannot be opened.
func appendFileLines(buf *model.ResultBuffer, path string, limit int64, maxLines int) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit)
	}
	buf.Append(fileHeader(path))
	return appendLines(buf, r, maxLines)
}

func fileHeader(path string) string {
	return "==> " + path + " <=="
}

func appendLines(buf *model.ResultBuffer, r io.Reader, maxLines int) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for n := 0; sc.Scan(); n++ {
		if maxLines > 0 && n >= maxLines {
			buf.Append("[truncated after " + strconv.Itoa(maxLines) + " lines]")
			break
		}
		buf.Append(sc.Text())
	}
	return sc.Err()
}
