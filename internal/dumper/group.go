package dumper

import (
	"context"

	"github.com/nao1215/sysdump/internal/model"
)

// groupMarker closes a unit block by appending one blank separator row,
// unless the buffer is empty or already ends with a blank row.
type groupMarker struct {
	base
}

func newGroupMarker() *groupMarker {
	return &groupMarker{base: base{name: NameGroup}}
}

// PreExecute implements pipeline.Stage.
func (g *groupMarker) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	g.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (g *groupMarker) Execute(_ context.Context) model.Status {
	if last, ok := g.buf.Last(); ok && !last.IsBlank() {
		g.buf.Append("")
	}
	return model.StatusOk
}
