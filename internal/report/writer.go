package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sysdump/internal/model"
)

// Output format names.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats returns the supported format names.
func Formats() []string {
	return []string{FormatText, FormatMarkdown, FormatJSON}
}

// Extension returns the file extension used for archive entries of a format.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return "md"
	case FormatJSON:
		return "jsonl"
	default:
		return "txt"
	}
}

// Writer defines the interface for report output.
// Implementations write rows in various formats.
type Writer interface {
	// WriteRows outputs one flushed chunk of rows.
	// Returns the number of bytes written and any error encountered.
	WriteRows(rows []model.Row) (int, error)

	// WriteUsage outputs a summary of a finished run.
	WriteUsage(usage *model.UsageRecord) (int, error)
}

// NewWriter creates the Writer for the named format.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatText, "txt":
		return NewSimpleWriter(output), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatJSON, "jsonl":
		return NewJSONWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteRows outputs the rows to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) WriteRows(rows []model.Row) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteRows(rows)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteUsage outputs the usage record to all configured Writers.
func (m *MultiWriter) WriteUsage(usage *model.UsageRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteUsage(usage)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// splitBlocks groups rows into titled blocks separated by blank rows.
// A title row starts a new block carrying the section name.
func splitBlocks(rows []model.Row) []block {
	blocks := make([]block, 0)
	current := block{}
	flush := func() {
		if current.title != "" || len(current.rows) > 0 {
			blocks = append(blocks, current)
		}
		current = block{}
	}

	for _, row := range rows {
		if section, ok := row.TitleSection(); ok {
			flush()
			current.title = section
			flush()
			continue
		}
		if row.IsBlank() {
			flush()
			continue
		}
		current.rows = append(current.rows, row)
	}
	flush()
	return blocks
}

// block is a run of non-blank rows, or a section title.
type block struct {
	title string
	rows  []model.Row
}

// isTable reports whether the block has a header and at least one data row
// of the same width, with two or more columns.
func (b block) isTable() bool {
	if len(b.rows) < 2 {
		return false
	}
	width := len(b.rows[0])
	if width < 2 {
		return false
	}
	for _, row := range b.rows[1:] {
		if len(row) != width {
			return false
		}
	}
	return true
}

// usageRows flattens a usage record into label/value pairs.
func usageRows(u *model.UsageRecord) [][]string {
	rows := [][]string{
		{"Run ID", u.ID},
		{"Started", u.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", u.Duration().String()},
		{"Status", u.Status},
		{"Sections", strings.Join(u.Sections, ", ")},
		{"Compressed", fmt.Sprintf("%t", u.Compress)},
		{"Stage failures", fmt.Sprintf("%d", u.StageFailures())},
	}
	if u.Output != "" {
		rows = append(rows, []string{"Output", u.Output})
	}
	if u.Digest != "" {
		rows = append(rows, []string{"SHA3-256", u.Digest})
	}
	if u.ErrorMsg != "" {
		rows = append(rows, []string{"Error", u.ErrorMsg})
	}
	return rows
}
