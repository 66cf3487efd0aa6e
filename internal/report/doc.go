// Package report renders result rows for output.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Aligned plain text for terminals and files
//   - MarkdownWriter: GitHub Flavored Markdown with tables per section
//   - JSONWriter: JSON Lines, one object per row, for tool integration
//
// Writers are stateful across calls: the Sink flushes one chunk at a time,
// and a writer keeps track of the current section between chunks.
// Every writer can also render a run's usage record for the history command.
package report
