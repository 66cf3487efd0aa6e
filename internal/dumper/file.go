package dumper

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nao1215/sysdump/internal/model"
)

// errEmptyPath is returned by Configure for a blank target.
var errEmptyPath = errors.New("empty file path")

// maxFileBytes caps how much of a dumped file is read.
const maxFileBytes = 4 << 20

// fileDumper writes the lines of the target file under a path header.
type fileDumper struct {
	base
	path     string
	limit    int64
	maxLines int
}

func newFileDumper() *fileDumper {
	return &fileDumper{base: base{name: NameFile}, limit: maxFileBytes}
}

// Configure implements pipeline.Configurable.
func (d *fileDumper) Configure(cfg model.StageConfig) error {
	if cfg.Target == "" {
		return errEmptyPath
	}
	d.path = cfg.Target
	if v := cfg.Arg(ArgMaxLines); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", ArgMaxLines, v, err)
		}
		d.maxLines = n
	}
	return nil
}

// PreExecute implements pipeline.Stage.
func (d *fileDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *fileDumper) Execute(_ context.Context) model.Status {
	if err := appendFileLines(d.buf, d.path, d.limit, d.maxLines); err != nil {
		return d.fail("failed to read file", err)
	}
	return model.StatusOk
}
