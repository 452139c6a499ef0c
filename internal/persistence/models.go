package persistence

import "time"

// Classroom is the stored form of a classroom and its schedule.
type Classroom struct {
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

// Membership records that a member joined a classroom.
type Membership struct {
	ClassroomID string
	MemberID    string
	JoinedAt    time.Time
}
