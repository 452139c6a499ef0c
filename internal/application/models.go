package application

import (
	"strings"
	"time"
)

// Role is the closed set of capabilities a verified principal may carry.
type Role int

const (
	// RoleUnknown is the zero value and is never granted anything.
	RoleUnknown Role = iota
	// RoleOwner creates classrooms and manages their membership.
	RoleOwner
	// RoleMember joins and leaves classrooms by code.
	RoleMember
)

// String returns the canonical lower-case role name.
func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleMember:
		return "member"
	default:
		return "unknown"
	}
}

// ParseRole maps a role claim onto the closed enumeration. The legacy names
// "teacher" and "nisit" used by existing clients are accepted as aliases.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "owner", "teacher":
		return RoleOwner, true
	case "member", "nisit", "student":
		return RoleMember, true
	default:
		return RoleUnknown, false
	}
}

// Principal represents the authenticated caller of a service method. It is
// produced only by a credential resolver.
type Principal struct {
	ID   string
	Role Role
}

// Authenticated reports whether the principal carries an id and a known role.
func (p Principal) Authenticated() bool {
	return strings.TrimSpace(p.ID) != "" && (p.Role == RoleOwner || p.Role == RoleMember)
}

// Schedule holds the mutable timetable fields of a classroom.
type Schedule struct {
	Subject     string
	Group       string
	Room        string
	StartTime   string
	EndTime     string
	Days        []time.Weekday
	SessionType string
}

// Classroom represents a persisted classroom.
type Classroom struct {
	ID        string
	JoinCode  string
	OwnerID   string
	Schedule  Schedule
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClassroomInput captures caller provided classroom fields before validation.
// Days are weekday names such as "Monday" or "mon".
type ClassroomInput struct {
	JoinCode    string   `json:"code" validate:"required,joincode"`
	Subject     string   `json:"subject" validate:"required,max=128"`
	Group       string   `json:"group" validate:"required,max=128"`
	Room        string   `json:"room" validate:"required,max=128"`
	StartTime   string   `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string   `json:"endTime" validate:"required,datetime=15:04"`
	Days        []string `json:"days" validate:"required,min=1,max=7,dive,required"`
	SessionType string   `json:"type" validate:"required,max=64"`
}

// ScheduleInput returns the schedule portion of the input.
func (in ClassroomInput) ScheduleInput() ScheduleInput {
	return ScheduleInput{
		Subject:     in.Subject,
		Group:       in.Group,
		Room:        in.Room,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Days:        in.Days,
		SessionType: in.SessionType,
	}
}

// ScheduleInput captures the schedule fields of an update; the join code is
// immutable once the classroom exists.
type ScheduleInput struct {
	Subject     string   `json:"subject" validate:"required,max=128"`
	Group       string   `json:"group" validate:"required,max=128"`
	Room        string   `json:"room" validate:"required,max=128"`
	StartTime   string   `json:"startTime" validate:"required,datetime=15:04"`
	EndTime     string   `json:"endTime" validate:"required,datetime=15:04"`
	Days        []string `json:"days" validate:"required,min=1,max=7,dive,required"`
	SessionType string   `json:"type" validate:"required,max=64"`
}

// CreateClassroomParams wraps the data required to create a classroom.
type CreateClassroomParams struct {
	Principal Principal
	Input     ClassroomInput
}

// UpdateClassroomParams wraps the data required to replace a classroom schedule.
type UpdateClassroomParams struct {
	Principal   Principal
	ClassroomID string
	Input       ScheduleInput
}

// JoinClassroomParams wraps the data required to join a classroom by code.
type JoinClassroomParams struct {
	Principal Principal
	JoinCode  string `json:"code" validate:"required,joincode"`
}

// RemoveMemberParams identifies a membership an owner wants to end.
type RemoveMemberParams struct {
	Principal   Principal
	ClassroomID string
	MemberID    string
}
