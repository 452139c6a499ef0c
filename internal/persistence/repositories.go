package persistence

import "context"

// ClassroomRepository exposes classroom rows.
type ClassroomRepository interface {
	// CreateClassroom fails with ErrDuplicate when the join code is taken.
	CreateClassroom(ctx context.Context, classroom Classroom) error
	GetClassroom(ctx context.Context, id string) (Classroom, error)
	GetClassroomByCode(ctx context.Context, code string) (Classroom, error)
	// UpdateClassroom replaces the schedule fields and updated_at of an existing row.
	UpdateClassroom(ctx context.Context, classroom Classroom) error
	ListOwned(ctx context.Context, ownerID string) ([]Classroom, error)
	// DeleteClassroom removes any remaining memberships and the classroom in
	// one atomic step.
	DeleteClassroom(ctx context.Context, id string) error
	IsOwner(ctx context.Context, classroomID, principalID string) (bool, error)
}

// MembershipRepository exposes membership rows.
type MembershipRepository interface {
	// AddMember fails with ErrDuplicate when the pair exists and with
	// ErrForeignKeyViolation when the classroom is gone.
	AddMember(ctx context.Context, membership Membership) error
	// RemoveMember succeeds when the row is already absent.
	RemoveMember(ctx context.Context, classroomID, memberID string) error
	RemoveAllMembers(ctx context.Context, classroomID string) error
	IsMember(ctx context.Context, classroomID, memberID string) (bool, error)
	ListMembers(ctx context.Context, classroomID string) ([]Membership, error)
	ListJoined(ctx context.Context, memberID string) ([]Classroom, error)
}

// ClassroomStore is the full storage contract a backend provides.
type ClassroomStore interface {
	ClassroomRepository
	MembershipRepository
}
