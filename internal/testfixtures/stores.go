package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/classroom-service/internal/persistence"
	"github.com/example/classroom-service/internal/persistence/memory"
	"github.com/example/classroom-service/internal/persistence/sqlite"
)

// NewSQLiteStore opens a migrated SQLite store in a temporary directory. The
// store is closed when the test finishes.
func NewSQLiteStore(tb testing.TB) *sqlite.Store {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "classroom.db")
	store, err := sqlite.Open(context.Background(), sqlite.TempFileTestConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(tb testing.TB) *memory.Store {
	tb.Helper()
	return memory.New()
}

// Seed inserts classrooms and memberships directly into a store, bypassing
// the service layer.
func Seed(tb testing.TB, store persistence.ClassroomStore, classrooms []ClassroomFixture, memberships ...persistence.Membership) {
	tb.Helper()

	ctx := context.Background()
	for _, classroom := range classrooms {
		if err := store.CreateClassroom(ctx, classroom.Record()); err != nil {
			tb.Fatalf("seed classroom %s: %v", classroom.ID, err)
		}
	}
	for _, membership := range memberships {
		if err := store.AddMember(ctx, membership); err != nil {
			tb.Fatalf("seed membership %s/%s: %v", membership.ClassroomID, membership.MemberID, err)
		}
	}
}
