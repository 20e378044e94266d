package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it too.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	bids         JSON,
	file_count   INTEGER NOT NULL DEFAULT 0,
	plan_count   INTEGER NOT NULL DEFAULT 0,
	usage        JSONB,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS document_cache (
	hash         TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	plans        JSONB NOT NULL,
	extracted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- JSON keeps key order; file order breaks price ties.
ALTER TABLE extraction_runs ALTER COLUMN bids TYPE JSON USING bids::json;

CREATE INDEX IF NOT EXISTS idx_extraction_runs_status ON extraction_runs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_created_at ON extraction_runs(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source string) (*model.ExtractionRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_runs (id, source, status, created_at) VALUES ($1, $2, $3, $4)`,
		id, source, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.ExtractionRun{
		ID:        id,
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, bids model.BidSet, usage model.TokenUsage, costUSD float64) error {
	bidsJSON, err := json.Marshal(bids)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bids")
	}
	usageJSON, err := json.Marshal(usage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal usage")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs
		 SET status = $1, bids = $2, file_count = $3, plan_count = $4, usage = $5, cost_usd = $6, completed_at = $7
		 WHERE id = $8`,
		string(model.RunStatusComplete), bidsJSON, bids.Len(), bids.PlanCount(),
		usageJSON, costUSD, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM extraction_runs WHERE id = $1`,
		runID,
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.ExtractionRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM extraction_runs WHERE status = $1 ORDER BY created_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	)
	r, err := scanPgRun(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest run")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error) {
	query := `SELECT ` + runColumns + ` FROM extraction_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	runs := []model.ExtractionRun{}
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedDocument(ctx context.Context, hash string) (*model.CachedDocument, error) {
	var doc model.CachedDocument
	var plansJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT hash, name, plans, extracted_at FROM document_cache WHERE hash = $1`,
		hash,
	).Scan(&doc.Hash, &doc.Name, &plansJSON, &doc.ExtractedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached document")
	}
	if err := json.Unmarshal(plansJSON, &doc.Plans); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cached plans")
	}
	return &doc, nil
}

func (s *PostgresStore) SetCachedDocument(ctx context.Context, hash, name string, plans []model.PlanRecord) error {
	if plans == nil {
		plans = []model.PlanRecord{}
	}
	plansJSON, err := json.Marshal(plans)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal plans")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO document_cache (hash, name, plans, extracted_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hash) DO UPDATE SET name = EXCLUDED.name, plans = EXCLUDED.plans, extracted_at = EXCLUDED.extracted_at`,
		hash, name, plansJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: set cached document")
}

func scanPgRun(row pgx.Row) (*model.ExtractionRun, error) {
	var r model.ExtractionRun
	var status string
	var bidsJSON, usageJSON []byte

	err := row.Scan(&r.ID, &r.Source, &status, &bidsJSON, &r.FileCount, &r.PlanCount,
		&usageJSON, &r.CostUSD, &r.Error, &r.CreatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	r.Status = model.RunStatus(status)

	if bidsJSON != nil {
		if err := json.Unmarshal(bidsJSON, &r.Bids); err != nil {
			return nil, eris.Wrap(err, "unmarshal bids")
		}
	}
	if usageJSON != nil {
		if err := json.Unmarshal(usageJSON, &r.Usage); err != nil {
			return nil, eris.Wrap(err, "unmarshal usage")
		}
	}
	return &r, nil
}
