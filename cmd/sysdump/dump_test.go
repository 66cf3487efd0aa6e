package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sysdump/internal/config"
	"github.com/nao1215/sysdump/internal/database"
	"github.com/nao1215/sysdump/internal/dumper"
	"github.com/nao1215/sysdump/internal/model"
)

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnviron is the fixed environment seen by the env section in tests.
func testEnviron() []string {
	return []string{"HOME=/home/sysdump", "GITHUB_TOKEN=abc123", "LANG=C"}
}

// newTestConfig returns a config whose history and archives live in
// temporary directories.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	cfg.ZipDir = t.TempDir()
	return cfg
}

// testIO returns a dumpIO writing to out with a fixed environment.
func testIO(out io.Writer) dumpIO {
	return dumpIO{
		out:     out,
		args:    []string{"sysdump", "dump", "--env"},
		options: []dumper.Option{dumper.WithEnviron(testEnviron)},
	}
}

// lastRun returns the most recent run in the history database.
func lastRun(t *testing.T, dbDir string) *model.UsageRecord {
	t.Helper()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	return runs[0]
}

// TestRunDump tests complete dump runs.
func TestRunDump(t *testing.T) {
	t.Parallel()

	t.Run("env and file to stdout", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "motd")
		if err := os.WriteFile(path, []byte("welcome: home\nuptime 3 days\n"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		cfg := newTestConfig(t)
		cfg.Env = true
		cfg.Files = []string{path}

		var out bytes.Buffer
		if err := runDump(context.Background(), cfg, testIO(&out), discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := out.String()
		for _, want := range []string{"HOME", "/home/sysdump", "***REDACTED***", "uptime", "days"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "abc123") {
			t.Error("expected secret to be masked")
		}

		rec := lastRun(t, cfg.DBDir)
		if rec.Status != model.RunStatusSuccess {
			t.Errorf("expected success, got %q", rec.Status)
		}
		if !equalStrings(rec.Sections, []string{"env", "file"}) {
			t.Errorf("unexpected sections: %v", rec.Sections)
		}
		if len(rec.Stages) == 0 {
			t.Error("expected stage stats to be recorded")
		}
	})

	t.Run("zip archive with digest", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t)
		cfg.Env = true
		cfg.Compress = true

		var out bytes.Buffer
		if err := runDump(context.Background(), cfg, testIO(&out), discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := lastRun(t, cfg.DBDir)
		if filepath.Dir(rec.Output) != cfg.ZipDir {
			t.Fatalf("expected archive in %s, got %q", cfg.ZipDir, rec.Output)
		}
		if _, err := os.Stat(rec.Output); err != nil {
			t.Errorf("expected archive to exist: %v", err)
		}
		if _, err := os.Stat(rec.Output + dumper.DigestExtension); err != nil {
			t.Errorf("expected digest file to exist: %v", err)
		}
		digest, err := dumper.FileDigest(rec.Output)
		if err != nil {
			t.Fatalf("failed to digest archive: %v", err)
		}
		if rec.Digest != digest {
			t.Errorf("expected recorded digest %s, got %s", digest, rec.Digest)
		}
		if !strings.Contains(out.String(), "Archive: "+rec.Output) || !strings.Contains(out.String(), digest) {
			t.Errorf("expected archive summary, got %q", out.String())
		}
	})

	t.Run("output file", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t)
		cfg.Env = true
		cfg.Format = "json"
		cfg.OutputFile = filepath.Join(t.TempDir(), "reports", "env.jsonl")

		var out bytes.Buffer
		if err := runDump(context.Background(), cfg, testIO(&out), discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", out.String())
		}

		data, err := os.ReadFile(cfg.OutputFile)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if !strings.Contains(string(data), `"cells":["LANG","C"]`) {
			t.Errorf("unexpected output:\n%s", data)
		}
		if rec := lastRun(t, cfg.DBDir); rec.Output != cfg.OutputFile {
			t.Errorf("expected output %q recorded, got %q", cfg.OutputFile, rec.Output)
		}
	})

	t.Run("metrics file", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t)
		cfg.Env = true
		cfg.NoHistory = true
		cfg.MetricsFile = filepath.Join(t.TempDir(), "sysdump.prom")

		if err := runDump(context.Background(), cfg, testIO(io.Discard), discardLogger()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(cfg.MetricsFile)
		if err != nil {
			t.Fatalf("failed to read metrics: %v", err)
		}
		if !strings.Contains(string(data), `sysdump_stage_runs_total{kind="producer",outcome="completed",stage="env"} 1`) {
			t.Errorf("unexpected metrics:\n%s", data)
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); !os.IsNotExist(err) {
			t.Error("expected no history database with NoHistory")
		}
	})

	t.Run("canceled run is recorded", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t)
		cfg.Env = true

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out bytes.Buffer
		if err := runDump(ctx, cfg, testIO(&out), discardLogger()); err == nil {
			t.Fatal("expected error for canceled run")
		}
		if out.Len() != 0 {
			t.Errorf("expected no output, got %q", out.String())
		}

		rec := lastRun(t, cfg.DBDir)
		if !rec.Canceled || rec.Status != model.RunStatusCanceled {
			t.Errorf("expected canceled run, got %+v", rec)
		}
	})

	t.Run("unknown stage in preset", func(t *testing.T) {
		t.Parallel()

		cfg := newTestConfig(t)
		cfg.Preset = "bad"
		cfg.File = &config.File{Presets: map[string]config.Preset{
			"bad": {Stages: []model.StageConfig{model.Producer("nope", "", false), model.Sink()}},
		}}

		err := runDump(context.Background(), cfg, testIO(io.Discard), discardLogger())
		if err == nil {
			t.Fatal("expected error for unknown stage")
		}
		if rec := lastRun(t, cfg.DBDir); rec.Status != model.RunStatusError || rec.ErrorMsg == "" {
			t.Errorf("expected failed run, got %+v", rec)
		}
	})
}

// TestBuildConfig tests flag and config file handling.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	writeConfig := func(t *testing.T) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "sysdump.yaml")
		content := `defaults:
  format: markdown
  chunkSize: 50
presets:
  quick:
    description: fast look
    stages:
      - name: cpu
        kind: producer
        section: cpu
      - kind: sink
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		return path
	}

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewDumpCmd()
		args := []string{
			"-c", writeConfig(t),
			"--cpu", "-l", "-s", "sshd", "-s", "cron", "--cmd", "uptime",
			"-p", "42", "--interval", "2s", "--match", "x", "--columns", "1",
			"--zip", "--chunk-size", "10",
		}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.CPU || !cfg.Abilities || !cfg.Compress {
			t.Errorf("expected section flags set: %+v", cfg)
		}
		if !equalStrings(cfg.Services, []string{"sshd", "cron"}) || !equalStrings(cfg.Commands, []string{"uptime"}) {
			t.Errorf("unexpected repeatable flags: %v %v", cfg.Services, cfg.Commands)
		}
		if cfg.Pid != 42 || cfg.Interval.String() != "2s" || cfg.Match != "x" || cfg.Columns != "1" {
			t.Errorf("unexpected values: %+v", cfg)
		}
		if cfg.ChunkSize != 10 {
			t.Errorf("expected explicit chunk size to win, got %d", cfg.ChunkSize)
		}
		if cfg.Format != "markdown" {
			t.Errorf("expected format from config file, got %q", cfg.Format)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewDumpCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("list presets", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := NewDumpCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-c", writeConfig(t), "--list-presets"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "quick\t2 stages\tfast look") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		t.Parallel()

		cmd := NewDumpCmd()
		cmd.SetOut(io.Discard)
		cmd.SetArgs([]string{"-c", writeConfig(t), "--cpu", "--zip", "-o", "out.txt"})
		err := cmd.Execute()
		if !errors.Is(err, config.ErrConflictingOutput) {
			t.Errorf("expected ErrConflictingOutput, got %v", err)
		}
	})
}

// TestPrintPresets tests the preset listing without a file.
func TestPrintPresets(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := printPresets(&out, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No presets defined") {
		t.Errorf("unexpected output %q", out.String())
	}
}
