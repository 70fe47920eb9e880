package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/runlog"
)

const (
	martsSchema      = "marts"
	pgUndefinedTable = "42P01"
)

// Postgres stores raw ads in <schema>.job_ads and marts in marts.*.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres wraps an open pool. schema is the dataset of the raw table,
// "staging" by default.
func NewPostgres(pool *pgxpool.Pool, schema string) *Postgres {
	if schema == "" {
		schema = "staging"
	}
	return &Postgres{pool: pool, schema: schema}
}

func (p *Postgres) RawTable() string {
	return pgx.Identifier{p.schema, "job_ads"}.Sanitize()
}

func (p *Postgres) MartTable(name string) string {
	return pgx.Identifier{martsSchema, name}.Sanitize()
}

func (p *Postgres) loadsTable() string {
	return pgx.Identifier{p.schema, "_loads"}.Sanitize()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	raw := p.RawTable()
	return p.Exec(ctx,
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{p.schema}.Sanitize()),
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgx.Identifier{martsSchema}.Sanitize()),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
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
			raw                  JSONB NOT NULL,
			_load_id             TEXT NOT NULL,
			_loaded_at           TIMESTAMPTZ NOT NULL
		)`, raw),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS job_ads_id_idx ON %s (id)`, raw),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			load_id     TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			records     INTEGER NOT NULL DEFAULT 0,
			error       TEXT
		)`, p.loadsTable()),
	)
}

func (p *Postgres) Exec(ctx context.Context, stmts ...string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return tx.Commit(ctx)
}

// Write copies rows into the raw table. Merge deletes earlier versions of the
// same ids inside the same transaction first.
func (p *Postgres) Write(ctx context.Context, loadID string, loadedAt time.Time, rows []Row, d Disposition) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if d == Merge {
		rows = dedupeByID(rows)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if d == Merge {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.RawTable()), ids(rows)); err != nil {
			return 0, fmt.Errorf("delete previous versions: %w", err)
		}
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{p.schema, "job_ads"},
		rawColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].values(loadID, loadedAt.UTC()), nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy job_ads: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(n), nil
}

func (p *Postgres) SaveRun(ctx context.Context, run *runlog.Run) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (load_id, status, started_at, finished_at, records, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (load_id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			records = EXCLUDED.records,
			error = EXCLUDED.error`, p.loadsTable()),
		run.LoadID, string(run.Status), run.StartedAt, run.FinishedAt, run.Records, run.Error,
	)
	if err != nil {
		return fmt.Errorf("save load %s: %w", run.LoadID, err)
	}
	return nil
}

func (p *Postgres) Runs(ctx context.Context, limit int) ([]runlog.Run, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT load_id, status, started_at, finished_at, records, COALESCE(error, '')
		FROM %s ORDER BY started_at DESC LIMIT $1`, p.loadsTable()), limit)
	if err != nil {
		return nil, fmt.Errorf("query _loads: %w", err)
	}
	defer rows.Close()

	var runs []runlog.Run
	for rows.Next() {
		var r runlog.Run
		var status string
		if err := rows.Scan(&r.LoadID, &status, &r.StartedAt, &r.FinishedAt, &r.Records, &r.Error); err != nil {
			return nil, fmt.Errorf("scan _loads: %w", err)
		}
		if r.Status, err = runlog.ParseStatus(status); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (p *Postgres) Query(ctx context.Context, stmt string) (*Table, error) {
	rows, err := p.pool.Query(ctx, stmt)
	if err != nil {
		return nil, wrapQueryErr(err)
	}
	defer rows.Close()

	t := &Table{Rows: [][]any{}}
	for _, fd := range rows.FieldDescriptions() {
		t.Columns = append(t.Columns, fd.Name)
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapQueryErr(err)
	}
	return t, nil
}

func wrapQueryErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrUnknownTable, pgErr.Message)
	}
	return fmt.Errorf("query: %w", err)
}
