// Package store persists extraction runs and the per-document extraction
// cache in SQLite or Postgres.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bid-cli/internal/config"
	"github.com/sells-group/bid-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// DocumentCache stores extracted plans by document hash. A miss returns
// nil with no error.
type DocumentCache interface {
	GetCachedDocument(ctx context.Context, hash string) (*model.CachedDocument, error)
	SetCachedDocument(ctx context.Context, hash, name string, plans []model.PlanRecord) error
}

// Store defines the persistence interface for extraction runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.ExtractionRun, error)
	CompleteRun(ctx context.Context, runID string, bids model.BidSet, usage model.TokenUsage, costUSD float64) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error)
	LatestRun(ctx context.Context) (*model.ExtractionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error)

	DocumentCache

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return 100
	}
	return filter.Limit
}
