package dumper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nao1215/sysdump/internal/model"
)

// DefaultCmdTimeout bounds a command when Params.CmdTimeout is unset.
const DefaultCmdTimeout = 10 * time.Second

// errEmptyCommand is returned by Configure for a blank target.
var errEmptyCommand = errors.New("empty command")

// cmdDumper runs the target command line and writes its combined output.
// The command line is split on whitespace; no shell is involved.
type cmdDumper struct {
	base
	argv []string
}

func newCmdDumper() *cmdDumper {
	return &cmdDumper{base: base{name: NameCmd}}
}

// Configure implements pipeline.Configurable.
func (d *cmdDumper) Configure(cfg model.StageConfig) error {
	d.argv = strings.Fields(cfg.Target)
	if len(d.argv) == 0 {
		return errEmptyCommand
	}
	return nil
}

// PreExecute implements pipeline.Stage.
func (d *cmdDumper) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	d.bind(run, buf)
	if _, err := exec.LookPath(d.argv[0]); err != nil {
		return d.fail("command not found", err)
	}
	return model.StatusOk
}

// Execute implements pipeline.Stage. A non-zero exit status is reported
// in the output and does not fail the stage.
func (d *cmdDumper) Execute(ctx context.Context) model.Status {
	timeout := d.params().CmdTimeout
	if timeout <= 0 {
		timeout = DefaultCmdTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.argv[0], d.argv[1:]...) //nolint:gosec // command comes from the operator
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return d.fail("failed to run command", err)
	}

	d.buf.Append("$ " + strings.Join(d.argv, " "))
	if err := appendLines(d.buf, bytes.NewReader(out), 0); err != nil {
		d.buf.Append("[output truncated: " + err.Error() + "]")
		d.logger.Warn("failed to read command output", "command", d.argv[0], "error", err)
	}
	if exitErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			d.buf.Append(fmt.Sprintf("[timed out after %s]", timeout))
		case ctx.Err() != nil:
			d.buf.Append("[canceled]")
		default:
			d.buf.Append(fmt.Sprintf("[exit status %d]", exitErr.ExitCode()))
		}
		d.logger.Warn("command exited with error", "command", d.argv[0], "error", err)
	}
	return model.StatusOk
}
