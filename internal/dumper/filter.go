package dumper

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nao1215/sysdump/internal/model"
)

var (
	// errNoFilter is returned when column_rows has neither a pattern nor columns.
	errNoFilter = errors.New("column_rows needs a match pattern or a column list")

	// errInvalidColumn is returned for a column index that is not a positive integer.
	errInvalidColumn = errors.New("invalid column index")

	// errInvalidMode is returned for an unknown file_format mode.
	errInvalidMode = errors.New("invalid file_format mode")
)

// columnRowsFilter keeps the rows matching a pattern and optionally
// projects them onto a column list. Title rows, blank rows and the first
// row of every block (its header) always pass. Single-cell rows are never
// projected.
type columnRowsFilter struct {
	base
	match   *regexp.Regexp
	columns []int
}

func newColumnRowsFilter() *columnRowsFilter {
	return &columnRowsFilter{base: base{name: NameColumnRows}}
}

// Configure implements pipeline.Configurable.
// Args: "match" is a regular expression, "columns" a comma separated list
// of 1-based column numbers.
func (f *columnRowsFilter) Configure(cfg model.StageConfig) error {
	if expr := cfg.Arg(ArgMatch); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid %s pattern: %w", ArgMatch, err)
		}
		f.match = re
	}
	if list := cfg.Arg(ArgColumns); list != "" {
		cols, err := parseColumns(list)
		if err != nil {
			return err
		}
		f.columns = cols
	}
	if f.match == nil && len(f.columns) == 0 {
		return errNoFilter
	}
	return nil
}

// PreExecute implements pipeline.Stage.
func (f *columnRowsFilter) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	f.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (f *columnRowsFilter) Execute(_ context.Context) model.Status {
	rows := f.buf.Rows()
	out := make([]model.Row, 0, len(rows))
	header := true
	for _, r := range rows {
		if _, ok := r.TitleSection(); ok || r.IsBlank() {
			out = append(out, r)
			header = true
			continue
		}
		keep := header || f.match == nil || matchesRow(f.match, r)
		header = false
		if keep {
			out = append(out, f.project(r))
		}
	}
	f.logger.Debug("rows filtered", "in", len(rows), "out", len(out))
	f.buf.Replace(out)
	return model.StatusOk
}

func (f *columnRowsFilter) project(r model.Row) model.Row {
	if len(f.columns) == 0 || len(r) < 2 {
		return r
	}
	out := make(model.Row, len(f.columns))
	for i, c := range f.columns {
		if c < len(r) {
			out[i] = r[c]
		}
	}
	return out
}

// matchesRow reports whether any cell of r matches re.
func matchesRow(re *regexp.Regexp, r model.Row) bool {
	for _, cell := range r {
		if re.MatchString(cell) {
			return true
		}
	}
	return false
}

// parseColumns turns "1,3" into zero-based indexes [0 2].
func parseColumns(list string) ([]int, error) {
	parts := strings.Split(list, ",")
	cols := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %q", errInvalidColumn, p)
		}
		cols = append(cols, n-1)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %q", errInvalidColumn, list)
	}
	return cols, nil
}

// File format modes.
const (
	formatAuto   = "auto"
	formatFields = "fields"
	formatKV     = "kv"
)

// fileFormatFilter splits single-cell rows into cells so that file and
// command output lines up in columns. In kv mode a line "key: value"
// becomes two cells; in fields mode the line is split on whitespace; auto
// picks kv when the text before the first colon is a single word.
// The first row of every block is left alone.
type fileFormatFilter struct {
	base
	mode string
}

func newFileFormatFilter() *fileFormatFilter {
	return &fileFormatFilter{base: base{name: NameFileFormat}, mode: formatAuto}
}

// Configure implements pipeline.Configurable.
func (f *fileFormatFilter) Configure(cfg model.StageConfig) error {
	switch mode := cfg.Arg(ArgMode); mode {
	case "", formatAuto:
		f.mode = formatAuto
	case formatFields, formatKV:
		f.mode = mode
	default:
		return fmt.Errorf("%w: %q", errInvalidMode, mode)
	}
	return nil
}

// PreExecute implements pipeline.Stage.
func (f *fileFormatFilter) PreExecute(_ context.Context, run *model.RunContext, buf *model.ResultBuffer) model.Status {
	f.bind(run, buf)
	return model.StatusOk
}

// Execute implements pipeline.Stage.
func (f *fileFormatFilter) Execute(_ context.Context) model.Status {
	rows := f.buf.Rows()
	out := make([]model.Row, len(rows))
	header := true
	for i, r := range rows {
		if _, ok := r.TitleSection(); ok || r.IsBlank() {
			out[i] = r
			header = true
			continue
		}
		if header || len(r) != 1 {
			out[i] = r
			header = false
			continue
		}
		out[i] = f.split(r[0])
	}
	f.buf.Replace(out)
	return model.StatusOk
}

func (f *fileFormatFilter) split(line string) model.Row {
	mode := f.mode
	key, value, found := strings.Cut(line, ":")
	if mode == formatAuto {
		mode = formatFields
		if found && key != "" && len(strings.Fields(key)) == 1 && strings.TrimSpace(value) != "" {
			mode = formatKV
		}
	}
	if mode == formatKV && found {
		return model.Row{strings.TrimSpace(key), strings.TrimSpace(value)}
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.Row{line}
	}
	return model.Row(fields)
}
