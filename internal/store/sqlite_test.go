package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	st.now = tickingClock()
	return st
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_ScrapedDataStoredAsJSONText(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l, err := st.Create(ctx, "https://acme.com", LeadFields{})
	require.NoError(t, err)

	var raw string
	var analysisValid bool
	row := st.db.QueryRowContext(ctx, `SELECT scraped_data, ai_analysis IS NOT NULL FROM leads WHERE id = ?`, l.ID)
	require.NoError(t, row.Scan(&raw, &analysisValid))
	assert.Equal(t, "{}", raw)
	assert.False(t, analysisValid)
}
