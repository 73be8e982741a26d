// Package dbtest opens an in-process SQLite database carrying the production
// schema, for repository and engine tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kkkkikiki/portal/internal/database"
)

// Open returns a migrated in-memory database that is closed when the test ends.
// The pool is pinned to one connection so the in-memory database is shared by
// every query and concurrent writers serialize instead of failing with SQLITE_BUSY.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", "file::memory:?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
