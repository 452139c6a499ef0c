// Package storetest holds the behavioural contract every persistence backend
// must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/classroom-service/internal/persistence"
)

// OpenFunc returns an empty store. Cleanup is registered on t by the caller.
type OpenFunc func(t *testing.T) persistence.ClassroomStore

var base = time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)

// Classroom returns a valid classroom record created offset minutes after a
// fixed reference time.
func Classroom(id, code, owner string, offset int) persistence.Classroom {
	at := base.Add(time.Duration(offset) * time.Minute)
	return persistence.Classroom{
		ID:          id,
		JoinCode:    code,
		OwnerID:     owner,
		Subject:     "Data Structures",
		Group:       "Sec 1",
		Room:        "B-204",
		StartTime:   "09:00",
		EndTime:     "10:30",
		Days:        []time.Weekday{time.Wednesday, time.Monday},
		SessionType: "lecture",
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// Membership returns a membership joined offset minutes after the reference time.
func Membership(classroomID, memberID string, offset int) persistence.Membership {
	return persistence.Membership{
		ClassroomID: classroomID,
		MemberID:    memberID,
		JoinedAt:    base.Add(time.Duration(offset) * time.Minute),
	}
}

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open OpenFunc) {
	t.Helper()

	t.Run("classrooms", func(t *testing.T) { testClassrooms(t, open) })
	t.Run("memberships", func(t *testing.T) { testMemberships(t, open) })
	t.Run("delete", func(t *testing.T) { testDelete(t, open) })
	t.Run("concurrency", func(t *testing.T) { testConcurrency(t, open) })
}

func mustCreate(t *testing.T, store persistence.ClassroomStore, classroom persistence.Classroom) {
	t.Helper()
	if err := store.CreateClassroom(context.Background(), classroom); err != nil {
		t.Fatalf("CreateClassroom(%s) failed: %v", classroom.ID, err)
	}
}

func mustJoin(t *testing.T, store persistence.ClassroomStore, membership persistence.Membership) {
	t.Helper()
	if err := store.AddMember(context.Background(), membership); err != nil {
		t.Fatalf("AddMember(%s, %s) failed: %v", membership.ClassroomID, membership.MemberID, err)
	}
}

func assertSameClassroom(t *testing.T, want, got persistence.Classroom) {
	t.Helper()
	if !want.CreatedAt.Equal(got.CreatedAt) || !want.UpdatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("timestamps differ: want %v/%v, got %v/%v", want.CreatedAt, want.UpdatedAt, got.CreatedAt, got.UpdatedAt)
	}
	want.CreatedAt, want.UpdatedAt = time.Time{}, time.Time{}
	got.CreatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("classroom mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func ids(classrooms []persistence.Classroom) []string {
	out := make([]string, 0, len(classrooms))
	for _, c := range classrooms {
		out = append(out, c.ID)
	}
	return out
}

func testClassrooms(t *testing.T, open OpenFunc) {
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		store := open(t)
		want := Classroom("c-1", "CS101-A", "owner-a", 0)
		mustCreate(t, store, want)

		got, err := store.GetClassroom(ctx, "c-1")
		if err != nil {
			t.Fatalf("GetClassroom failed: %v", err)
		}
		assertSameClassroom(t, want, got)

		byCode, err := store.GetClassroomByCode(ctx, "CS101-A")
		if err != nil {
			t.Fatalf("GetClassroomByCode failed: %v", err)
		}
		assertSameClassroom(t, want, byCode)
	})

	t.Run("missing classroom is not found", func(t *testing.T) {
		store := open(t)
		if _, err := store.GetClassroom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetClassroomByCode(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound by code, got %v", err)
		}
	})

	t.Run("join code is unique", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "MATH1", "owner-a", 0))

		err := store.CreateClassroom(ctx, Classroom("c-2", "MATH1", "owner-b", 1))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update replaces schedule only", func(t *testing.T) {
		store := open(t)
		original := Classroom("c-1", "CS101-A", "owner-a", 0)
		mustCreate(t, store, original)

		changed := original
		changed.JoinCode = "IGNORED"
		changed.OwnerID = "someone-else"
		changed.Room = "C-101"
		changed.Days = []time.Weekday{time.Friday}
		changed.UpdatedAt = original.UpdatedAt.Add(time.Hour)
		if err := store.UpdateClassroom(ctx, changed); err != nil {
			t.Fatalf("UpdateClassroom failed: %v", err)
		}

		got, err := store.GetClassroom(ctx, "c-1")
		if err != nil {
			t.Fatalf("GetClassroom failed: %v", err)
		}
		want := original
		want.Room = "C-101"
		want.Days = []time.Weekday{time.Friday}
		want.UpdatedAt = changed.UpdatedAt
		assertSameClassroom(t, want, got)

		missing := Classroom("missing", "X", "owner-a", 0)
		if err := store.UpdateClassroom(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list owned oldest first", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-2", "B", "owner-a", 5))
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 1))
		mustCreate(t, store, Classroom("c-3", "C", "owner-b", 0))

		owned, err := store.ListOwned(ctx, "owner-a")
		if err != nil {
			t.Fatalf("ListOwned failed: %v", err)
		}
		if got := ids(owned); !reflect.DeepEqual(got, []string{"c-1", "c-2"}) {
			t.Fatalf("unexpected owned order: %v", got)
		}

		none, err := store.ListOwned(ctx, "nobody")
		if err != nil || len(none) != 0 {
			t.Fatalf("expected no classrooms, got %v, %v", none, err)
		}
	})

	t.Run("ownership", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))

		for _, tc := range []struct {
			classroom, principal string
			want                 bool
		}{
			{"c-1", "owner-a", true},
			{"c-1", "owner-b", false},
			{"missing", "owner-a", false},
		} {
			got, err := store.IsOwner(ctx, tc.classroom, tc.principal)
			if err != nil {
				t.Fatalf("IsOwner(%s, %s) failed: %v", tc.classroom, tc.principal, err)
			}
			if got != tc.want {
				t.Fatalf("IsOwner(%s, %s) = %v, want %v", tc.classroom, tc.principal, got, tc.want)
			}
		}
	})
}

func testMemberships(t *testing.T, open OpenFunc) {
	ctx := context.Background()

	t.Run("add list remove", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))
		mustJoin(t, store, Membership("c-1", "member-n", 2))
		mustJoin(t, store, Membership("c-1", "member-m", 1))

		members, err := store.ListMembers(ctx, "c-1")
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 2 || members[0].MemberID != "member-m" || members[1].MemberID != "member-n" {
			t.Fatalf("unexpected members: %+v", members)
		}
		if !members[0].JoinedAt.Equal(base.Add(time.Minute)) {
			t.Fatalf("unexpected joined_at %v", members[0].JoinedAt)
		}

		ok, err := store.IsMember(ctx, "c-1", "member-m")
		if err != nil || !ok {
			t.Fatalf("expected member-m to be a member, got %v, %v", ok, err)
		}

		if err := store.RemoveMember(ctx, "c-1", "member-m"); err != nil {
			t.Fatalf("RemoveMember failed: %v", err)
		}
		if err := store.RemoveMember(ctx, "c-1", "member-m"); err != nil {
			t.Fatalf("RemoveMember of absent row failed: %v", err)
		}
		ok, err = store.IsMember(ctx, "c-1", "member-m")
		if err != nil || ok {
			t.Fatalf("expected member-m to be gone, got %v, %v", ok, err)
		}
	})

	t.Run("duplicate membership", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))
		mustJoin(t, store, Membership("c-1", "member-m", 1))

		err := store.AddMember(ctx, Membership("c-1", "member-m", 2))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		members, err := store.ListMembers(ctx, "c-1")
		if err != nil || len(members) != 1 {
			t.Fatalf("expected a single row, got %v, %v", members, err)
		}
	})

	t.Run("membership requires classroom", func(t *testing.T) {
		store := open(t)
		err := store.AddMember(ctx, Membership("missing", "member-m", 0))
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("list joined in join order", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))
		mustCreate(t, store, Classroom("c-2", "B", "owner-b", 1))
		mustCreate(t, store, Classroom("c-3", "C", "owner-b", 2))
		mustJoin(t, store, Membership("c-2", "member-m", 3))
		mustJoin(t, store, Membership("c-1", "member-m", 4))
		mustJoin(t, store, Membership("c-3", "member-n", 5))

		joined, err := store.ListJoined(ctx, "member-m")
		if err != nil {
			t.Fatalf("ListJoined failed: %v", err)
		}
		if got := ids(joined); !reflect.DeepEqual(got, []string{"c-2", "c-1"}) {
			t.Fatalf("unexpected joined order: %v", got)
		}
	})

	t.Run("remove all members", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))
		mustCreate(t, store, Classroom("c-2", "B", "owner-a", 1))
		mustJoin(t, store, Membership("c-1", "member-m", 2))
		mustJoin(t, store, Membership("c-1", "member-n", 3))
		mustJoin(t, store, Membership("c-2", "member-m", 4))

		if err := store.RemoveAllMembers(ctx, "c-1"); err != nil {
			t.Fatalf("RemoveAllMembers failed: %v", err)
		}
		members, err := store.ListMembers(ctx, "c-1")
		if err != nil || len(members) != 0 {
			t.Fatalf("expected no members, got %v, %v", members, err)
		}
		others, err := store.ListMembers(ctx, "c-2")
		if err != nil || len(others) != 1 {
			t.Fatalf("expected c-2 membership to survive, got %v, %v", others, err)
		}
	})
}

func testDelete(t *testing.T, open OpenFunc) {
	ctx := context.Background()

	t.Run("delete clears memberships and frees the code", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))
		mustJoin(t, store, Membership("c-1", "member-m", 1))

		if err := store.DeleteClassroom(ctx, "c-1"); err != nil {
			t.Fatalf("DeleteClassroom failed: %v", err)
		}
		if _, err := store.GetClassroom(ctx, "c-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		ok, err := store.IsMember(ctx, "c-1", "member-m")
		if err != nil || ok {
			t.Fatalf("expected no dangling membership, got %v, %v", ok, err)
		}
		joined, err := store.ListJoined(ctx, "member-m")
		if err != nil || len(joined) != 0 {
			t.Fatalf("expected no joined classrooms, got %v, %v", joined, err)
		}

		mustCreate(t, store, Classroom("c-2", "A", "owner-b", 2))
	})

	t.Run("delete missing classroom", func(t *testing.T) {
		store := open(t)
		if err := store.DeleteClassroom(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func testConcurrency(t *testing.T, open OpenFunc) {
	ctx := context.Background()

	t.Run("concurrent joins keep one row", func(t *testing.T) {
		store := open(t)
		mustCreate(t, store, Classroom("c-1", "A", "owner-a", 0))

		const workers = 8
		var succeeded, duplicated atomic.Int32
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			offset := i
			g.Go(func() error {
				err := store.AddMember(ctx, Membership("c-1", "member-m", offset))
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, persistence.ErrDuplicate):
					duplicated.Add(1)
				default:
					return fmt.Errorf("worker %d: %w", offset, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if succeeded.Load() != 1 || duplicated.Load() != workers-1 {
			t.Fatalf("expected 1 success and %d duplicates, got %d/%d", workers-1, succeeded.Load(), duplicated.Load())
		}
	})

	t.Run("concurrent creates with one code", func(t *testing.T) {
		store := open(t)

		const workers = 4
		var succeeded atomic.Int32
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			n := i
			g.Go(func() error {
				err := store.CreateClassroom(ctx, Classroom(fmt.Sprintf("c-%d", n), "MATH1", "owner-a", n))
				switch {
				case err == nil:
					succeeded.Add(1)
				case errors.Is(err, persistence.ErrDuplicate):
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if succeeded.Load() != 1 {
			t.Fatalf("expected exactly one classroom, got %d", succeeded.Load())
		}
	})
}
