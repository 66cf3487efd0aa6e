package model

// Title row decoration used for section boundaries.
const (
	TitlePrefix = "-------------------------------["
	TitleSuffix = "]-------------------------------"
)

// Row is one line of report output, split into text cells.
type Row []string

// IsBlank reports whether the row has no cells or only empty cells.
func (r Row) IsBlank() bool {
	for _, cell := range r {
		if cell != "" {
			return false
		}
	}
	return true
}

// TitleSection returns the section name if the row is a section title row.
func (r Row) TitleSection() (string, bool) {
	if len(r) != 3 || r[0] != TitlePrefix || r[2] != TitleSuffix {
		return "", false
	}
	return r[1], true
}

// TitleRows returns the three rows that frame a section title:
// a blank row, the decorated name and another blank row.
func TitleRows(section string) []Row {
	return []Row{
		{""},
		{TitlePrefix, section, TitleSuffix},
		{""},
	}
}

// ResultBuffer is the ordered row accumulator shared by all stages of a run.
// Producers and Transformers append to it; only the Sink removes rows, when
// it flushes. The driver is strictly sequential, so no locking is done here.
type ResultBuffer struct {
	rows []Row
}

// NewResultBuffer creates an empty ResultBuffer.
func NewResultBuffer() *ResultBuffer {
	return &ResultBuffer{rows: make([]Row, 0)}
}

// Append adds a single row built from the given cells.
func (b *ResultBuffer) Append(cells ...string) {
	row := make(Row, len(cells))
	copy(row, cells)
	b.rows = append(b.rows, row)
}

// AppendRows adds the given rows in order.
func (b *ResultBuffer) AppendRows(rows ...Row) {
	b.rows = append(b.rows, rows...)
}

// Rows returns the rows currently held. The returned slice must not be
// modified by callers other than Transformers replacing content via Replace.
func (b *ResultBuffer) Rows() []Row {
	return b.rows
}

// Replace swaps the buffer content for rows.
// Transformers use it to rewrite the rows produced earlier in the pass.
func (b *ResultBuffer) Replace(rows []Row) {
	b.rows = rows
}

// Len returns the number of rows held.
func (b *ResultBuffer) Len() int {
	return len(b.rows)
}

// Last returns the last row and true, or nil and false if the buffer is empty.
func (b *ResultBuffer) Last() (Row, bool) {
	if len(b.rows) == 0 {
		return nil, false
	}
	return b.rows[len(b.rows)-1], true
}

// Drain returns every row held and empties the buffer.
// Sinks call it on every flush so memory stays bounded to one chunk.
func (b *ResultBuffer) Drain() []Row {
	rows := b.rows
	b.rows = make([]Row, 0, len(rows))
	return rows
}
