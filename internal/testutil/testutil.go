// Package testutil provides shared test helpers for setting up stores and journals.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/folderdb/internal/docstore"
	"github.com/starford/folderdb/internal/journal"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestStore creates a document store rooted at a temporary directory.
func TestStore(t *testing.T, opts ...docstore.Option) (string, *docstore.Store) {
	t.Helper()
	root := t.TempDir()
	opts = append([]docstore.Option{docstore.WithLogger(Logger())}, opts...)
	store, err := docstore.New(root, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "folderdb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteFile writes content under root, creating parent directories.
func WriteFile(t *testing.T, root, rel string, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
