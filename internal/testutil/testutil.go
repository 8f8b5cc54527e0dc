package testutil

import (
	"path/filepath"
	"testing"

	"github.com/adgen/adgen/internal/state"
)

// NewStore returns a store over a fresh migrated sqlite file that is closed
// when the test ends.
func NewStore(t testing.TB) *state.Store {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "adgen.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return state.NewStore(db)
}
