package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/sysdump/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs rows in Markdown format.
// Section titles become H2 headings, uniform blocks become tables and
// everything else is kept verbatim in text code blocks.
type MarkdownWriter struct {
	baseWriter

	// caser title-cases section names for headings.
	caser cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		caser:      cases.Title(language.English),
	}
}

// WriteRows outputs one chunk of rows in Markdown format.
func (w *MarkdownWriter) WriteRows(rows []model.Row) (int, error) {
	md := markdown.NewMarkdown(w.output)

	for _, b := range splitBlocks(rows) {
		switch {
		case b.title != "":
			md.H2(w.caser.String(b.title))
			md.PlainText("")
		case b.isTable():
			md.Table(markdown.TableSet{
				Header: escapeCells(b.rows[0]),
				Rows:   toStrings(b.rows[1:]),
			})
			md.PlainText("")
		default:
			md.CodeBlocks(markdown.SyntaxHighlightText, joinLines(b.rows))
			md.PlainText("")
		}
	}

	return len(md.String()), md.Build()
}

// WriteUsage outputs a run summary in Markdown format.
func (w *MarkdownWriter) WriteUsage(usage *model.UsageRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("sysdump run")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   usageRows(usage),
	})
	md.PlainText("")

	switch {
	case usage.Status == model.RunStatusError:
		md.Cautionf("Run failed: %s", usage.ErrorMsg)
	case usage.Canceled:
		md.Warning("Run was cancelled; the report is partial.")
	case usage.StageFailures() > 0:
		md.Notef("Sections with failed stages: %s", strings.Join(usage.FailedSections(), ", "))
	default:
		md.Tip("All stages completed.")
	}
	md.PlainText("")

	if len(usage.Stages) > 0 {
		md.H2("Stages")
		md.PlainText("")
		rows := make([][]string, 0, len(usage.Stages))
		for _, s := range usage.Stages {
			rows = append(rows, []string{
				strconv.Itoa(s.Position),
				s.Name,
				s.Kind,
				s.Section,
				strconv.Itoa(s.Visits),
				fmt.Sprintf("%d/%d", s.PreFails, s.ExecFails),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"#", "Stage", "Kind", "Section", "Visits", "Failures (pre/exec)"},
			Rows:   rows,
		})
	}

	return len(md.String()), md.Build()
}

// toStrings converts rows to the plain slice type markdown tables expect.
func toStrings(rows []model.Row) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = escapeCells(row)
	}
	return out
}

// escapeCells escapes pipe characters that would split a table cell.
func escapeCells(row model.Row) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.ReplaceAll(cell, "|", `\|`)
	}
	return out
}

// joinLines renders rows as space-separated lines.
func joinLines(rows []model.Row) string {
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, " ")
	}
	return strings.Join(lines, "\n")
}
