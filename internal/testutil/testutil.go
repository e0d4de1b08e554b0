// Package testutil provides shared test helpers for setting up data
// directories and archive databases.
package testutil

import (
	"os"
	"testing"

	"github.com/amberline/waypost/internal/archive"
	"github.com/amberline/waypost/internal/storage"
)

// TestArchive creates a temporary SQLite archive that is automatically
// cleaned up.
func TestArchive(t *testing.T) *archive.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "waypost-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := archive.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir creates a temporary data directory with a storage provider.
func TestDataDir(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
