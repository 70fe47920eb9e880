package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
)

// sqliteTime is a fixed-width UTC layout so that text ordering matches
// time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000Z"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_ads (
		id                   TEXT NOT NULL,
		headline             TEXT,
		occupation_field     TEXT,
		occupation_field_id  TEXT,
		occupation_group     TEXT,
		occupation           TEXT,
		employer_name        TEXT,
		region               TEXT,
		region_code          TEXT,
		municipality         TEXT,
		municipality_code    TEXT,
		vacancies            INTEGER NOT NULL DEFAULT 1,
		publication_date     TEXT,
		application_deadline TEXT,
		webpage_url          TEXT,
		raw                  TEXT NOT NULL,
		_load_id             TEXT NOT NULL,
		_loaded_at           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS job_ads_id_idx ON job_ads (id)`,
	`CREATE TABLE IF NOT EXISTS _loads (
		load_id     TEXT PRIMARY KEY,
		status      TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		finished_at TEXT,
		records     INTEGER NOT NULL DEFAULT 0,
		error       TEXT
	)`,
}

// SQLite is the embedded local warehouse.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path.
// ":memory:" is accepted for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create warehouse dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) RawTable() string { return "job_ads" }

func (s *SQLite) MartTable(name string) string { return name }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Migrate(ctx context.Context) error {
	return s.Exec(ctx, sqliteSchema...)
}

func (s *SQLite) Exec(ctx context.Context, stmts ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Write(ctx context.Context, loadID string, loadedAt time.Time, rows []Row, d Disposition) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if d == Merge {
		rows = dedupeByID(rows)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if d == Merge {
		del, err := tx.PrepareContext(ctx, `DELETE FROM job_ads WHERE id = ?`)
		if err != nil {
			return 0, fmt.Errorf("prepare delete: %w", err)
		}
		defer del.Close()
		for _, id := range ids(rows) {
			if _, err := del.ExecContext(ctx, id); err != nil {
				return 0, fmt.Errorf("delete %s: %w", id, err)
			}
		}
	}

	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO job_ads (%s) VALUES (%s)`,
		strings.Join(rawColumns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(rawColumns)), ", "),
	))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()

	stamp := loadedAt.UTC().Format(sqliteTime)
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.values(loadID, stamp)...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func (s *SQLite) SaveRun(ctx context.Context, run *runlog.Run) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(sqliteTime)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO _loads (load_id, status, started_at, finished_at, records, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (load_id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			records = excluded.records,
			error = excluded.error`,
		run.LoadID, string(run.Status), run.StartedAt.UTC().Format(sqliteTime), finished, run.Records, run.Error,
	)
	if err != nil {
		return fmt.Errorf("save load %s: %w", run.LoadID, err)
	}
	return nil
}

func (s *SQLite) Runs(ctx context.Context, limit int) ([]runlog.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT load_id, status, started_at, finished_at, records, COALESCE(error, '')
		FROM _loads ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query _loads: %w", err)
	}
	defer rows.Close()

	var runs []runlog.Run
	for rows.Next() {
		var (
			r               runlog.Run
			status, started string
			finished        sql.NullString
		)
		if err := rows.Scan(&r.LoadID, &status, &started, &finished, &r.Records, &r.Error); err != nil {
			return nil, fmt.Errorf("scan _loads: %w", err)
		}
		if r.Status, err = runlog.ParseStatus(status); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(sqliteTime, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(sqliteTime, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLite) Query(ctx context.Context, stmt string) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownTable, err)
		}
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	return t, rows.Err()
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
