package database

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a throwaway sqlite database for repository tests.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	config := Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "movaia_test.db"),
	}

	db, err := NewDB(config)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return db, cleanup
}
