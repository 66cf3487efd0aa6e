package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sysdump/internal/model"
)

// FileName is the database file created inside the history directory.
const FileName = "sysdump.db"

// ErrRunNotFound is returned by GetRun when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB stores usage records of past runs.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		arguments TEXT NOT NULL DEFAULT '[]',
		sections TEXT NOT NULL DEFAULT '[]',
		compress INTEGER NOT NULL DEFAULT 0,
		output TEXT NOT NULL DEFAULT '',
		digest TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		canceled INTEGER NOT NULL DEFAULT 0,
		stage_failures INTEGER NOT NULL DEFAULT 0,
		error_msg TEXT NOT NULL DEFAULT '',
		stats_json TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun inserts a usage record, replacing any earlier row with the same ID.
func (hdb *HistoryDB) SaveRun(ctx context.Context, rec *model.UsageRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New("usage record must have an ID")
	}

	arguments, err := json.Marshal(nonNil(rec.Arguments))
	if err != nil {
		return fmt.Errorf("failed to serialize arguments: %w", err)
	}
	sections, err := json.Marshal(nonNil(rec.Sections))
	if err != nil {
		return fmt.Errorf("failed to serialize sections: %w", err)
	}
	stats := rec.Stages
	if stats == nil {
		stats = []model.StageStat{}
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize stage stats: %w", err)
	}

	query := `
	INSERT INTO runs (id, started_at, finished_at, arguments, sections, compress, output, digest,
		status, canceled, stage_failures, error_msg, stats_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		output = excluded.output,
		digest = excluded.digest,
		status = excluded.status,
		canceled = excluded.canceled,
		stage_failures = excluded.stage_failures,
		error_msg = excluded.error_msg,
		stats_json = excluded.stats_json
	`

	_, err = hdb.db.ExecContext(ctx, query,
		rec.ID,
		formatTimestamp(rec.StartedAt),
		formatTimestamp(rec.FinishedAt),
		string(arguments),
		string(sections),
		boolToInt(rec.Compress),
		rec.Output,
		rec.Digest,
		rec.Status,
		boolToInt(rec.Canceled),
		rec.StageFailures(),
		rec.ErrorMsg,
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves one run by ID.
func (hdb *HistoryDB) GetRun(ctx context.Context, id string) (*model.UsageRecord, error) {
	row := hdb.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (hdb *HistoryDB) ListRuns(ctx context.Context, limit int) ([]*model.UsageRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return hdb.queryRuns(ctx, selectRuns+" ORDER BY started_at DESC LIMIT ?", limit)
}

// ListRunsBySection returns runs that requested section, most recent first.
func (hdb *HistoryDB) ListRunsBySection(ctx context.Context, section string) ([]*model.UsageRecord, error) {
	query := selectRuns + `
	WHERE EXISTS (SELECT 1 FROM json_each(runs.sections) WHERE json_each.value = ?)
	ORDER BY started_at DESC`
	return hdb.queryRuns(ctx, query, section)
}

// DeleteRunsBefore removes runs that started before t and returns how many
// rows were deleted.
func (hdb *HistoryDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := hdb.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", formatTimestamp(t))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return result.RowsAffected()
}

const selectRuns = `
	SELECT id, started_at, finished_at, arguments, sections, compress, output, digest,
		status, canceled, error_msg, stats_json
	FROM runs`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (hdb *HistoryDB) queryRuns(ctx context.Context, query string, args ...any) ([]*model.UsageRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	results := make([]*model.UsageRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func scanRun(row rowScanner) (*model.UsageRecord, error) {
	var (
		rec                            model.UsageRecord
		startedAt, finishedAt          string
		arguments, sections, statsJSON string
		compress, canceled             int
	)

	if err := row.Scan(
		&rec.ID,
		&startedAt,
		&finishedAt,
		&arguments,
		&sections,
		&compress,
		&rec.Output,
		&rec.Digest,
		&rec.Status,
		&canceled,
		&rec.ErrorMsg,
		&statsJSON,
	); err != nil {
		return nil, err
	}

	rec.StartedAt = parseTimestamp(startedAt)
	rec.FinishedAt = parseTimestamp(finishedAt)
	rec.Compress = compress != 0
	rec.Canceled = canceled != 0

	if err := json.Unmarshal([]byte(arguments), &rec.Arguments); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(sections), &rec.Sections); err != nil {
		return nil, fmt.Errorf("failed to parse sections: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &rec.Stages); err != nil {
		return nil, fmt.Errorf("failed to parse stage stats: %w", err)
	}
	return &rec, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats parseTimestamp accepts.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp returns the zero time for empty or unknown input.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
