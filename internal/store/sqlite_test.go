package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_WALMode(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "wal.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))
}

func TestSQLite_ListRunsEmpty(t *testing.T) {
	st := newTestSQLite(t)

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestSQLite_CorruptBids(t *testing.T) {
	st, err := NewSQLite(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	run, err := st.CreateRun(ctx, "./data")
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `UPDATE extraction_runs SET bids = '[1,2]' WHERE id = ?`, run.ID)
	require.NoError(t, err)

	_, err = st.GetRun(ctx, run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal bids")
}
