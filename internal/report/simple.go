package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/sysdump/internal/model"
)

// columnPadding is the number of spaces between aligned columns.
const columnPadding = 2

// SimpleWriter outputs rows as plain text.
// Cells of consecutive rows are aligned into columns; title rows are printed
// as one decorated line.
type SimpleWriter struct {
	baseWriter

	// showStages adds the per-stage table to usage output.
	showStages bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithStageDetails includes per-stage counters in usage output.
func WithStageDetails(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showStages = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WriteRows outputs rows in aligned plain text.
func (w *SimpleWriter) WriteRows(rows []model.Row) (int, error) {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, columnPadding, ' ', 0)

	for _, row := range rows {
		if _, ok := row.TitleSection(); ok {
			fmt.Fprintln(tw, strings.Join(row, ""))
			continue
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	return w.output.Write([]byte(sb.String()))
}

// WriteUsage outputs a run summary.
func (w *SimpleWriter) WriteUsage(usage *model.UsageRecord) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                           SYSDUMP RUN\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	tw := tabwriter.NewWriter(&sb, 0, 0, columnPadding, ' ', 0)
	for _, row := range usageRows(usage) {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	if err := tw.Flush(); err != nil {
		return 0, err
	}

	if w.showStages && len(usage.Stages) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\nSTAGES\n")
		sb.WriteString(strings.Repeat("-", 70))
		sb.WriteString("\n")

		tw = tabwriter.NewWriter(&sb, 0, 0, columnPadding, ' ', 0)
		fmt.Fprintln(tw, "POS\tSTAGE\tKIND\tSECTION\tVISITS\tPRE-FAIL\tEXEC-FAIL\tMORE-DATA")
		for _, s := range usage.Stages {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				s.Position, s.Name, s.Kind, s.Section, s.Visits, s.PreFails, s.ExecFails, s.MoreData)
		}
		if err := tw.Flush(); err != nil {
			return 0, err
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}
