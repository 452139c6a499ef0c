package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/classroom-service/internal/application"
	"github.com/example/classroom-service/internal/persistence"
)

var classroomCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Principals -----------------------------

// Owner returns an authenticated owner principal.
func Owner(id string) application.Principal {
	return application.Principal{ID: id, Role: application.RoleOwner}
}

// Member returns an authenticated member principal.
func Member(id string) application.Principal {
	return application.Principal{ID: id, Role: application.RoleMember}
}

// --------------------------- Classroom fixtures ---------------------------

// ClassroomFixture represents a deterministic classroom that can be
// materialised as service input or as a stored row.
type ClassroomFixture struct {
	ID          string
	JoinCode    string
	OwnerID     string
	Subject     string
	Group       string
	Room        string
	StartTime   string
	EndTime     string
	Days        []time.Weekday
	SessionType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ClassroomOption configures the generated classroom fixture.
type ClassroomOption func(*ClassroomFixture)

// NewClassroomFixture returns a Monday/Wednesday lecture with a unique join
// code, owned by "owner-1" unless overridden.
func NewClassroomFixture(opts ...ClassroomOption) ClassroomFixture {
	idx := atomic.AddUint64(&classroomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ClassroomFixture{
		ID:          fmt.Sprintf("classroom-%03d", idx),
		JoinCode:    fmt.Sprintf("CODE-%03d", idx),
		OwnerID:     "owner-1",
		Subject:     fmt.Sprintf("Subject %03d", idx),
		Group:       "Sec 1",
		Room:        "B-204",
		StartTime:   "09:00",
		EndTime:     "10:30",
		Days:        []time.Weekday{time.Monday, time.Wednesday},
		SessionType: "lecture",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithClassroomID overrides the generated classroom ID.
func WithClassroomID(id string) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.ID = id
	}
}

// WithJoinCode overrides the generated join code.
func WithJoinCode(code string) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.JoinCode = code
	}
}

// WithOwner overrides the owning principal id.
func WithOwner(ownerID string) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.OwnerID = ownerID
	}
}

// WithTimes overrides the session start and end times.
func WithTimes(start, end string) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithDays overrides the weekdays of the session.
func WithDays(days ...time.Weekday) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.Days = append([]time.Weekday(nil), days...)
	}
}

// WithCreatedAt sets both timestamps.
func WithCreatedAt(ts time.Time) ClassroomOption {
	return func(f *ClassroomFixture) {
		f.CreatedAt = ts
		f.UpdatedAt = ts
	}
}

// Input converts the fixture into the caller payload of a create call.
func (f ClassroomFixture) Input() application.ClassroomInput {
	days := make([]string, 0, len(f.Days))
	for _, day := range f.Days {
		days = append(days, day.String())
	}
	return application.ClassroomInput{
		JoinCode:    f.JoinCode,
		Subject:     f.Subject,
		Group:       f.Group,
		Room:        f.Room,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Days:        days,
		SessionType: f.SessionType,
	}
}

// Record converts the fixture into a stored row.
func (f ClassroomFixture) Record() persistence.Classroom {
	return persistence.Classroom{
		ID:          f.ID,
		JoinCode:    f.JoinCode,
		OwnerID:     f.OwnerID,
		Subject:     f.Subject,
		Group:       f.Group,
		Room:        f.Room,
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
		Days:        append([]time.Weekday(nil), f.Days...),
		SessionType: f.SessionType,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Membership returns a membership row for the fixture joined offset after
// its creation time.
func (f ClassroomFixture) Membership(memberID string, offset time.Duration) persistence.Membership {
	return persistence.Membership{
		ClassroomID: f.ID,
		MemberID:    memberID,
		JoinedAt:    f.CreatedAt.Add(offset),
	}
}
