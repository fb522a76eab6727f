package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"kvstore-api/internal/database"

	"gorm.io/gorm/logger"
)

// NewSQLiteDB creates a migrated SQLite file in a temp dir and returns the
// options to open connections to it.
func NewSQLiteDB(t testing.TB) database.Options {
	t.Helper()
	opts := database.Options{
		Path:     filepath.Join(t.TempDir(), "kv.db"),
		LogLevel: logger.Silent,
	}
	if err := database.Migrate(context.Background(), opts); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return opts
}

// OpenSQLite opens a connection to opts and closes it when the test ends.
func OpenSQLite(t testing.TB, opts database.Options) *database.Conn {
	t.Helper()
	conn, err := database.Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
