package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/consolestats/migrations"
)

func openTestDB(t *testing.T) (*gormsqlite.DB, *sql.DB) {
	t.Helper()
	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "console.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	wdb, err := db.WriteSQLDB()
	require.NoError(t, err)
	require.NoError(t, migrations.Up(context.Background(), wdb))
	return db, wdb
}
