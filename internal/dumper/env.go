package dumper

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/nao1215/sysdump/internal/log"
	"github.com/nao1215/sysdump/internal/model"
)

// envDumper writes the environment with secret values masked.
type envDumper struct {
	base
	environ func() []string
}

func newEnvDumper(environ func() []string) *envDumper {
	if environ == nil {
		environ = os.Environ
	}
	return &envDumper{base: base{name: NameEnv}, environ: environ}
}

// PreExecute implements pipeline.Stage.
func (d *envDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (d *envDumper) Execute(_ context.Context) model.Status {
	vars := d.environ()
	sort.Strings(vars)

	d.buf.Append("NAME", "VALUE")
	masked := 0
	for _, kv := range vars {
		key, value, _ := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		shown := log.MaskIfSensitive(key, value)
		if shown != value {
			masked++
		}
		d.buf.Append(key, shown)
	}
	d.logger.Debug("environment written", "vars", len(vars), "masked", masked)
	return model.StatusOk
}
