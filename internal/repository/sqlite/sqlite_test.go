package sqlite

import "testing"

// newTestDB returns a DB backed by an in-memory SQLite database, closed
// when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
