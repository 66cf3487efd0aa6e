package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sysdump/internal/model"
)

// JSONWriter outputs rows as JSON Lines.
// Each non-blank row becomes one object tagged with the section it belongs
// to; title rows only change the current section.
type JSONWriter struct {
	baseWriter

	// section is the section of the last title row seen.
	section string

	// indentUsage pretty-prints usage records.
	indentUsage bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyUsage enables indented output for WriteUsage.
// Rows are always written one object per line.
func WithPrettyUsage() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indentUsage = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// RowRecord is the JSON form of one row.
type RowRecord struct {
	// Section is the report section the row belongs to.
	Section string `json:"section,omitempty"`

	// Cells are the row's text cells.
	Cells []string `json:"cells"`
}

// WriteRows outputs one JSON object per non-blank row.
func (w *JSONWriter) WriteRows(rows []model.Row) (int, error) {
	var data []byte
	for _, row := range rows {
		if section, ok := row.TitleSection(); ok {
			w.section = section
			continue
		}
		if row.IsBlank() {
			continue
		}
		line, err := json.Marshal(RowRecord{Section: w.section, Cells: row})
		if err != nil {
			return 0, err
		}
		data = append(data, line...)
		data = append(data, '\n')
	}
	if len(data) == 0 {
		return 0, nil
	}
	return w.output.Write(data)
}

// WriteUsage outputs the usage record as a single JSON document.
func (w *JSONWriter) WriteUsage(usage *model.UsageRecord) (int, error) {
	var data []byte
	var err error

	if w.indentUsage {
		data, err = json.MarshalIndent(usage, "", "  ")
	} else {
		data, err = json.Marshal(usage)
	}
	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
