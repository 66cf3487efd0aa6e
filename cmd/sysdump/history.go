package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sysdump/internal/config"
	"github.com/nao1215/sysdump/internal/database"
	"github.com/nao1215/sysdump/internal/model"
	"github.com/nao1215/sysdump/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past dump runs",
		Long: `History lists the dump runs recorded in the local history database,
most recent first.

Examples:
  # Last 20 runs
  sysdump history

  # Runs that dumped the memory section
  sysdump history --section memory

  # Full record of one run, including per-stage counters
  sysdump history --show 6f1c0d7e-...

  # Delete runs older than a week
  sysdump history --prune 168h`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit, "Maximum number of runs to list (0 lists all)")
	cmd.Flags().String("section", "", "Only list runs that requested this section")
	cmd.Flags().String("show", "", "Show the full record of one run")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().Duration("prune", 0, "Delete runs older than this duration")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")
	_ = cmd.Flags().MarkHidden("db-dir")

	return cmd
}

// historyOptions are the flags of the history command.
type historyOptions struct {
	limit   int
	section string
	show    string
	json    bool
	prune   time.Duration
	dbDir   string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var opts historyOptions
	var err error

	flags := cmd.Flags()
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return err
	}
	if opts.section, err = flags.GetString("section"); err != nil {
		return err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.prune, err = flags.GetDuration("prune"); err != nil {
		return err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return err
	}

	return runHistory(cmd.Context(), cmd.OutOrStdout(), opts)
}

// runHistory reads the history database and prints the requested view.
func runHistory(ctx context.Context, w io.Writer, opts historyOptions) error {
	if opts.prune < 0 {
		return errors.New("--prune must not be negative")
	}

	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no history found (run 'sysdump dump' first): %w", err)
	}
	defer db.Close()

	if opts.prune > 0 {
		n, err := db.DeleteRunsBefore(ctx, time.Now().Add(-opts.prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Deleted %d runs older than %s\n", n, opts.prune)
		return nil
	}

	if opts.show != "" {
		rec, err := db.GetRun(ctx, opts.show)
		if err != nil {
			return err
		}
		if opts.json {
			_, err = report.NewJSONWriter(w, report.WithPrettyUsage()).WriteUsage(rec)
			return err
		}
		_, err = report.NewSimpleWriter(w, report.WithStageDetails(true)).WriteUsage(rec)
		return err
	}

	var runs []*model.UsageRecord
	if opts.section != "" {
		runs, err = db.ListRunsBySection(ctx, opts.section)
		if err == nil && opts.limit > 0 && len(runs) > opts.limit {
			runs = runs[:opts.limit]
		}
	} else {
		runs, err = db.ListRuns(ctx, opts.limit)
	}
	if err != nil {
		return err
	}

	if opts.json {
		jw := report.NewJSONWriter(w)
		for _, rec := range runs {
			if _, err := jw.WriteUsage(rec); err != nil {
				return err
			}
		}
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	_, err = report.NewSimpleWriter(w).WriteRows(historyRows(runs))
	return err
}

// historyRows renders one table row per run.
func historyRows(runs []*model.UsageRecord) []model.Row {
	rows := make([]model.Row, 0, len(runs)+1)
	rows = append(rows, model.Row{"ID", "STARTED", "DURATION", "STATUS", "FAILURES", "SECTIONS", "OUTPUT"})
	for _, rec := range runs {
		output := rec.Output
		if output == "" {
			output = "-"
		}
		rows = append(rows, model.Row{
			rec.ID,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Duration().Round(time.Millisecond).String(),
			rec.Status,
			strconv.Itoa(rec.StageFailures()),
			strings.Join(rec.Sections, ","),
			output,
		})
	}
	return rows
}
