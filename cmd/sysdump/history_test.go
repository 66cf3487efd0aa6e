package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sysdump/internal/database"
	"github.com/nao1215/sysdump/internal/model"
)

// seedHistory creates a history database with three runs and returns its
// directory.
func seedHistory(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	now := time.Now()
	runs := []struct {
		id       string
		age      time.Duration
		sections []string
	}{
		{"run-old", 30 * 24 * time.Hour, []string{"cpu"}},
		{"run-mid", 2 * time.Hour, []string{"memory", "process"}},
		{"run-new", time.Minute, []string{"cpu", "net"}},
	}
	for _, r := range runs {
		rec := model.NewUsageRecord(r.id)
		rec.StartedAt = now.Add(-r.age)
		rec.FinishedAt = rec.StartedAt.Add(time.Second)
		rec.Sections = r.sections
		rec.Stages = []model.StageStat{{Position: 0, Name: r.sections[0], Kind: "producer", Visits: 1, Completed: 1}}
		if err := db.SaveRun(context.Background(), rec); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}
	return dir
}

// TestRunHistory tests the history views.
func TestRunHistory(t *testing.T) {
	t.Parallel()

	t.Run("lists runs newest first", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, historyOptions{limit: 20, dbDir: seedHistory(t)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		if !strings.Contains(output, "STATUS") {
			t.Errorf("expected header, got %q", output)
		}
		newIdx := strings.Index(output, "run-new")
		oldIdx := strings.Index(output, "run-old")
		if newIdx < 0 || oldIdx < 0 || newIdx > oldIdx {
			t.Errorf("expected run-new before run-old:\n%s", output)
		}
	})

	t.Run("limit", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, historyOptions{limit: 1, dbDir: seedHistory(t)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out.String(), "run-mid") || !strings.Contains(out.String(), "run-new") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("section filter", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		opts := historyOptions{limit: 20, section: "cpu", dbDir: seedHistory(t)}
		if err := runHistory(context.Background(), &out, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := out.String()
		if strings.Contains(output, "run-mid") || !strings.Contains(output, "run-old") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})

	t.Run("show", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		opts := historyOptions{show: "run-mid", dbDir: seedHistory(t)}
		if err := runHistory(context.Background(), &out, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "run-mid") || !strings.Contains(out.String(), "memory, process") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("show json", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		opts := historyOptions{show: "run-new", json: true, dbDir: seedHistory(t)}
		if err := runHistory(context.Background(), &out, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var rec model.UsageRecord
		if err := json.Unmarshal(out.Bytes(), &rec); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, out.String())
		}
		if rec.ID != "run-new" || len(rec.Stages) != 1 {
			t.Errorf("unexpected record: %+v", rec)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()

		opts := historyOptions{show: "nope", dbDir: seedHistory(t)}
		if err := runHistory(context.Background(), &bytes.Buffer{}, opts); err == nil {
			t.Error("expected error for unknown run")
		}
	})

	t.Run("prune", func(t *testing.T) {
		t.Parallel()

		dir := seedHistory(t)
		var out bytes.Buffer
		if err := runHistory(context.Background(), &out, historyOptions{prune: 24 * time.Hour, dbDir: dir}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Deleted 1 runs") {
			t.Errorf("unexpected output %q", out.String())
		}

		out.Reset()
		if err := runHistory(context.Background(), &out, historyOptions{dbDir: dir}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out.String(), "run-old") {
			t.Errorf("expected run-old to be pruned:\n%s", out.String())
		}
	})

	t.Run("no database", func(t *testing.T) {
		t.Parallel()

		if err := runHistory(context.Background(), &bytes.Buffer{}, historyOptions{dbDir: t.TempDir()}); err == nil {
			t.Error("expected error without a database")
		}
	})

	t.Run("negative prune", func(t *testing.T) {
		t.Parallel()

		if err := runHistory(context.Background(), &bytes.Buffer{}, historyOptions{prune: -time.Hour, dbDir: seedHistory(t)}); err == nil {
			t.Error("expected error for negative prune")
		}
	})
}

// TestHistoryRows tests the table layout.
func TestHistoryRows(t *testing.T) {
	t.Parallel()

	rec := model.NewUsageRecord("id-1")
	rec.Sections = []string{"cpu", "net"}
	rows := historyRows([]*model.UsageRecord{rec})

	if len(rows) != 2 {
		t.Fatalf("expected header and one row, got %d", len(rows))
	}
	if len(rows[0]) != len(rows[1]) {
		t.Errorf("expected uniform row width, got %d and %d", len(rows[0]), len(rows[1]))
	}
	if rows[1][0] != "id-1" || rows[1][5] != "cpu,net" || rows[1][6] != "-" {
		t.Errorf("unexpected row: %v", rows[1])
	}
}
