package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bid-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	bids         TEXT,
	file_count   INTEGER NOT NULL DEFAULT 0,
	plan_count   INTEGER NOT NULL DEFAULT 0,
	usage        TEXT,
	cost_usd     REAL NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS document_cache (
	hash         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	plans        TEXT NOT NULL,
	extracted_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_created_at ON extraction_runs(created_at);
`

const runColumns = `id, source, status, bids, file_count, plan_count, usage, cost_usd, error, created_at, completed_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.ExtractionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_runs (id, source, status, created_at) VALUES (?, ?, ?, ?)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.ExtractionRun{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, bids model.BidSet, usage model.TokenUsage, costUSD float64) error {
	bidsJSON, err := json.Marshal(bids)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal bids")
	}
	usageJSON, err := json.Marshal(usage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal usage")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs
		 SET status = ?, bids = ?, file_count = ?, plan_count = ?, usage = ?, cost_usd = ?, completed_at = ?
		 WHERE id = ?`,
		string(model.RunStatusComplete), string(bidsJSON), bids.Len(), bids.PlanCount(),
		string(usageJSON), costUSD, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM extraction_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.ExtractionRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM extraction_runs WHERE status = ?
		 ORDER BY created_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	)
	r, err := scanRun(row)
	if errors.Is(err, ErrNotFound) {
		return nil, eris.Wrap(err, "sqlite: no completed runs")
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `SELECT ` + runColumns + ` FROM extraction_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	runs := []model.ExtractionRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedDocument(ctx context.Context, hash string) (*model.CachedDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, name, plans, extracted_at FROM document_cache WHERE hash = ?`,
		hash,
	)

	var doc model.CachedDocument
	var plansJSON string
	err := row.Scan(&doc.Hash, &doc.Name, &plansJSON, &doc.ExtractedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached document")
	}
	if err := json.Unmarshal([]byte(plansJSON), &doc.Plans); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached plans")
	}
	return &doc, nil
}

func (s *SQLiteStore) SetCachedDocument(ctx context.Context, hash, name string, plans []model.PlanRecord) error {
	if plans == nil {
		plans = []model.PlanRecord{}
	}
	plansJSON, err := json.Marshal(plans)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal plans")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_cache (hash, name, plans, extracted_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET name = excluded.name, plans = excluded.plans, extracted_at = excluded.extracted_at`,
		hash, name, string(plansJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: set cached document")
}

// helpers

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var bidsJSON, usageJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.Source, &r.Status, &bidsJSON, &r.FileCount, &r.PlanCount,
		&usageJSON, &r.CostUSD, &r.Error, &r.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if bidsJSON.Valid {
		if err := json.Unmarshal([]byte(bidsJSON.String), &r.Bids); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal bids")
		}
	}
	if usageJSON.Valid {
		if err := json.Unmarshal([]byte(usageJSON.String), &r.Usage); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal usage")
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
