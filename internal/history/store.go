// Package history persists pipeline runs so reports and image prompts can
// be listed and fetched again. SQLite is the default; PostgreSQL is used
// through the pgx stdlib driver.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// RunSummary is one row of a run listing.
type RunSummary struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Subject   string            `json:"topic"`
	Mode      string            `json:"mode"`
	Status    models.StepStatus `json:"status"`
	Location  string            `json:"location,omitempty"`
	Elapsed   time.Duration     `json:"elapsed"`
	CreatedAt time.Time         `json:"created_at"`
}

// ListOptions filters ListRuns.
type ListOptions struct {
	Kind  string // empty for all kinds
	Limit int    // 0 means 20
}

// Store manages the run history database.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the history database and applies migrations. For
// SQLite, dsn is a file path (parent directories are created) or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.configure(ctx, dsn); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.ApplyMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) configure(ctx context.Context, dsn string) error {
	if s.driver != DriverSQLite {
		return s.db.PingContext(ctx)
	}
	if dsn == ":memory:" {
		// Every connection would get its own empty database.
		s.db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("set %s: %w", pragma, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun inserts res, replacing any earlier row with the same ID.
func (s *Store) SaveRun(ctx context.Context, res models.PipelineResult) error {
	if res.ID == "" {
		return fmt.Errorf("save run: empty id")
	}

	steps, err := json.Marshal(res.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	meta, err := json.Marshal(res.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	created := res.Metadata.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	query := `INSERT INTO runs
		(id, kind, subject, mode, status, artifact, location, steps, metadata, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			artifact = excluded.artifact,
			location = excluded.location,
			steps = excluded.steps,
			metadata = excluded.metadata,
			elapsed_ms = excluded.elapsed_ms`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		res.ID,
		res.Kind,
		res.Metadata.Subject,
		res.Metadata.Mode,
		string(res.Status),
		res.Artifact,
		res.Metadata.Location,
		string(steps),
		string(meta),
		res.Metadata.Elapsed.Milliseconds(),
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.ID, err)
	}
	return nil
}

// GetRun loads the full run with the given ID. Image bytes are not stored.
func (s *Store) GetRun(ctx context.Context, id string) (models.PipelineResult, error) {
	query := `SELECT id, kind, status, artifact, steps, metadata FROM runs WHERE id = ?`

	var res models.PipelineResult
	var status string
	var artifact sql.NullString
	var steps, meta string
	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(&res.ID, &res.Kind, &status, &artifact, &steps, &meta)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PipelineResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return models.PipelineResult{}, fmt.Errorf("query run %s: %w", id, err)
	}

	res.Status = models.StepStatus(status)
	res.Artifact = artifact.String
	if err := json.Unmarshal([]byte(steps), &res.Steps); err != nil {
		return models.PipelineResult{}, fmt.Errorf("decode steps of run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(meta), &res.Metadata); err != nil {
		return models.PipelineResult{}, fmt.Errorf("decode metadata of run %s: %w", id, err)
	}
	return res, nil
}

// ListRuns returns run summaries, most recent first.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, kind, subject, mode, status, location, elapsed_ms, created_at FROM runs`
	var args []interface{}
	if opts.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, opts.Kind)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode, location sql.NullString
		var status string
		var elapsedMS sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Subject, &mode, &status, &location, &elapsedMS, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Mode = mode.String
		r.Status = models.StepStatus(status)
		r.Location = location.String
		r.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
