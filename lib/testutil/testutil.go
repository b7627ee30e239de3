package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"carparams/internal/db"
)

// OpenDB opens a private in-memory database with the schema applied, it is
// closed when the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}

// WriteFile writes `content` to `path`, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		t.Fatal(err)
	}
	err = os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}
}
