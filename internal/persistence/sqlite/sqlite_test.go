package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/example/classroom-service/internal/persistence"
	"github.com/example/classroom-service/internal/persistence/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "classroom.db")
	store, err := Open(context.Background(), TempFileTestConfig(path))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) persistence.ClassroomStore {
		return newTestStore(t)
	})
}

func TestConfig(t *testing.T) {
	t.Run("dsn carries pragmas", func(t *testing.T) {
		dsn := DefaultConfig("/var/lib/classroom.db").DSN()
		for _, want := range []string{
			"file:/var/lib/classroom.db?",
			"_pragma=foreign_keys%281%29",
			"_pragma=busy_timeout%2810000%29",
			"_pragma=journal_mode%28WAL%29",
			"_pragma=synchronous%28NORMAL%29",
			"_txlock=immediate",
		} {
			if !strings.Contains(dsn, want) {
				t.Errorf("DSN %q does not contain %q", dsn, want)
			}
		}
	})

	t.Run("validate", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*Config)
			wantErr bool
		}{
			{name: "default", mutate: func(*Config) {}},
			{name: "blank path", mutate: func(c *Config) { c.Path = " " }, wantErr: true},
			{name: "negative timeout", mutate: func(c *Config) { c.BusyTimeout = -time.Second }, wantErr: true},
			{name: "bad journal", mutate: func(c *Config) { c.JournalMode = "fast" }, wantErr: true},
			{name: "lower case journal", mutate: func(c *Config) { c.JournalMode = "delete" }},
			{name: "bad synchronous", mutate: func(c *Config) { c.Synchronous = "sometimes" }, wantErr: true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := DefaultConfig("classroom.db")
				tt.mutate(&cfg)
				if err := cfg.Validate(); (err != nil) != tt.wantErr {
					t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	pool, err := NewConnectionPool(TempFileTestConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("NewConnectionPool failed: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	applied, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("first Migrate failed: %v", err)
	}
	if want := []string{"0001", "0002"}; fmt.Sprint(applied) != fmt.Sprint(want) {
		t.Fatalf("expected %v applied, got %v", want, applied)
	}

	applied, err = pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
	if len(applied) != 0 {
		t.Fatalf("expected no migrations on rerun, got %v", applied)
	}

	var foreignKeys int
	if err := pool.DB().QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&foreignKeys); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if foreignKeys != 1 {
		t.Fatalf("expected foreign keys enabled, got %d", foreignKeys)
	}

	t.Run("modified migration is rejected", func(t *testing.T) {
		tampered := []Migration{{Version: "0001", Description: "edited", SQL: "SELECT 1", Checksum: "different"}}
		if _, err := pool.applyMigrations(ctx, tampered); err == nil {
			t.Fatalf("expected checksum mismatch error")
		}
	})
}

func TestLoadMigrations(t *testing.T) {
	t.Run("orders by version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/0002_second.sql": {Data: []byte("-- Description: second step\nSELECT 2;")},
			"m/0001_first.sql":  {Data: []byte("SELECT 1;")},
			"m/README.md":       {Data: []byte("ignored")},
		}
		migrations, err := LoadMigrations(fsys, "m")
		if err != nil {
			t.Fatalf("LoadMigrations failed: %v", err)
		}
		if len(migrations) != 2 || migrations[0].Version != "0001" || migrations[1].Version != "0002" {
			t.Fatalf("unexpected migrations: %+v", migrations)
		}
		if migrations[0].Description != "0001_first" || migrations[1].Description != "second step" {
			t.Fatalf("unexpected descriptions: %q, %q", migrations[0].Description, migrations[1].Description)
		}
	})

	t.Run("rejects bad names and duplicate versions", func(t *testing.T) {
		for name, fsys := range map[string]fstest.MapFS{
			"bad name":  {"m/create.sql": {Data: []byte("SELECT 1;")}},
			"duplicate": {"m/0001_a.sql": {Data: []byte("SELECT 1;")}, "m/0001_b.sql": {Data: []byte("SELECT 1;")}},
		} {
			if _, err := LoadMigrations(fsys, "m"); err == nil {
				t.Errorf("%s: expected error", name)
			}
		}
	})
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- comment; ignored\nCREATE TABLE a (x TEXT);\n\nCREATE INDEX i ON a (x);\n")
	want := []string{"CREATE TABLE a (x TEXT)", "CREATE INDEX i ON a (x)"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("splitStatements() = %q, want %q", got, want)
	}
}

func TestErrorMapper(t *testing.T) {
	mapper := NewErrorMapper()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: sql.ErrNoRows, want: persistence.ErrNotFound},
		{name: "unique", err: errors.New("constraint failed: UNIQUE constraint failed: classrooms.join_code (2067)"), want: persistence.ErrDuplicate},
		{name: "foreign key", err: errors.New("FOREIGN KEY constraint failed (787)"), want: persistence.ErrForeignKeyViolation},
		{name: "check", err: errors.New("CHECK constraint failed: end_time > start_time"), want: persistence.ErrConstraintViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapper.MapError(tt.err); !errors.Is(got, tt.want) {
				t.Fatalf("MapError() = %v, want %v", got, tt.want)
			}
		})
	}

	other := errors.New("disk I/O error")
	if got := mapper.MapError(other); got != other {
		t.Fatalf("expected unknown errors to pass through, got %v", got)
	}
	if mapper.MapError(nil) != nil {
		t.Fatalf("expected nil for nil")
	}
}

func TestRetryHelper(t *testing.T) {
	helper := NewRetryHelper(RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2})

	t.Run("retries busy errors", func(t *testing.T) {
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
		if err != nil || attempts != 3 {
			t.Fatalf("expected success on third attempt, got %v after %d", err, attempts)
		}
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("UNIQUE constraint failed: memberships.classroom_id, memberships.member_id")
		})
		if !errors.Is(err, persistence.ErrDuplicate) || attempts != 1 {
			t.Fatalf("expected single mapped attempt, got %v after %d", err, attempts)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		attempts := 0
		err := helper.WithRetry(context.Background(), func() error {
			attempts++
			return errors.New("database is locked")
		})
		if err == nil || attempts != 3 {
			t.Fatalf("expected failure after 3 attempts, got %v after %d", err, attempts)
		}
	})
}

func TestStoreRejectsScheduleThatEndsFirst(t *testing.T) {
	store := newTestStore(t)

	classroom := storetest.Classroom("c-1", "A", "owner-a", 0)
	classroom.StartTime, classroom.EndTime = "11:00", "10:00"
	err := store.CreateClassroom(context.Background(), classroom)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
}

func TestStoreTimestampsSortAcrossOffsets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Same instant ordering must hold regardless of the caller's zone.
	tokyo := time.FixedZone("JST", 9*60*60)
	early := storetest.Classroom("c-early", "A", "owner-a", 0)
	early.CreatedAt = time.Date(2024, 6, 3, 17, 0, 0, 0, tokyo)
	late := storetest.Classroom("c-late", "B", "owner-a", 0)
	late.CreatedAt = time.Date(2024, 6, 3, 9, 0, 0, 500, time.UTC)

	for _, c := range []persistence.Classroom{late, early} {
		if err := store.CreateClassroom(ctx, c); err != nil {
			t.Fatalf("CreateClassroom failed: %v", err)
		}
	}

	owned, err := store.ListOwned(ctx, "owner-a")
	if err != nil {
		t.Fatalf("ListOwned failed: %v", err)
	}
	if len(owned) != 2 || owned[0].ID != "c-early" || owned[1].ID != "c-late" {
		t.Fatalf("unexpected order: %+v", owned)
	}
	if !owned[1].CreatedAt.Equal(late.CreatedAt) {
		t.Fatalf("nanoseconds lost: %v", owned[1].CreatedAt)
	}
}
