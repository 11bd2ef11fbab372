// Package dbtest opens throwaway migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/rss-inbox/internal/database"
)

// NewDB creates a migrated SQLite database under the test's temp dir. It is
// closed automatically when the test ends.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, dirty, err := database.RunMigrations(db)
	require.NoError(t, err)
	require.False(t, dirty)

	return db
}

// NewStore is NewDB wrapped in a SQLStore.
func NewStore(t *testing.T) *database.SQLStore {
	t.Helper()
	return database.NewStore(NewDB(t))
}
