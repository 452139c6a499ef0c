package application

import (
	"context"
	"time"

	"github.com/example/classroom-service/internal/persistence"
)

// Member is one membership of a classroom.
type Member struct {
	ID       string
	JoinedAt time.Time
}

// ClassroomStore captures the persistence operations the classroom service
// relies on. Implementations report failures with the persistence sentinels.
type ClassroomStore interface {
	CreateClassroom(ctx context.Context, classroom Classroom) error
	GetClassroom(ctx context.Context, id string) (Classroom, error)
	GetClassroomByCode(ctx context.Context, code string) (Classroom, error)
	UpdateClassroom(ctx context.Context, classroom Classroom) error
	ListOwned(ctx context.Context, ownerID string) ([]Classroom, error)
	ListJoined(ctx context.Context, memberID string) ([]Classroom, error)
	DeleteClassroom(ctx context.Context, id string) error
	IsOwner(ctx context.Context, classroomID, principalID string) (bool, error)

	AddMember(ctx context.Context, classroomID, memberID string, joinedAt time.Time) error
	RemoveMember(ctx context.Context, classroomID, memberID string) error
	RemoveAllMembers(ctx context.Context, classroomID string) error
	IsMember(ctx context.Context, classroomID, memberID string) (bool, error)
	ListMembers(ctx context.Context, classroomID string) ([]Member, error)
}

// persistenceStore adapts a persistence backend to ClassroomStore.
type persistenceStore struct {
	backend persistence.ClassroomStore
}

// NewPersistenceStore adapts any persistence.ClassroomStore (sqlite, postgres,
// memory) for use by the classroom service.
func NewPersistenceStore(backend persistence.ClassroomStore) ClassroomStore {
	return &persistenceStore{backend: backend}
}

func (s *persistenceStore) CreateClassroom(ctx context.Context, classroom Classroom) error {
	return s.backend.CreateClassroom(ctx, toPersistenceClassroom(classroom))
}

func (s *persistenceStore) GetClassroom(ctx context.Context, id string) (Classroom, error) {
	record, err := s.backend.GetClassroom(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	return fromPersistenceClassroom(record), nil
}

func (s *persistenceStore) GetClassroomByCode(ctx context.Context, code string) (Classroom, error) {
	record, err := s.backend.GetClassroomByCode(ctx, code)
	if err != nil {
		return Classroom{}, err
	}
	return fromPersistenceClassroom(record), nil
}

func (s *persistenceStore) UpdateClassroom(ctx context.Context, classroom Classroom) error {
	return s.backend.UpdateClassroom(ctx, toPersistenceClassroom(classroom))
}

func (s *persistenceStore) ListOwned(ctx context.Context, ownerID string) ([]Classroom, error) {
	records, err := s.backend.ListOwned(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return fromPersistenceClassrooms(records), nil
}

func (s *persistenceStore) ListJoined(ctx context.Context, memberID string) ([]Classroom, error) {
	records, err := s.backend.ListJoined(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return fromPersistenceClassrooms(records), nil
}

func (s *persistenceStore) DeleteClassroom(ctx context.Context, id string) error {
	return s.backend.DeleteClassroom(ctx, id)
}

func (s *persistenceStore) IsOwner(ctx context.Context, classroomID, principalID string) (bool, error) {
	return s.backend.IsOwner(ctx, classroomID, principalID)
}

func (s *persistenceStore) AddMember(ctx context.Context, classroomID, memberID string, joinedAt time.Time) error {
	return s.backend.AddMember(ctx, persistence.Membership{
		ClassroomID: classroomID,
		MemberID:    memberID,
		JoinedAt:    joinedAt,
	})
}

func (s *persistenceStore) RemoveMember(ctx context.Context, classroomID, memberID string) error {
	return s.backend.RemoveMember(ctx, classroomID, memberID)
}

func (s *persistenceStore) RemoveAllMembers(ctx context.Context, classroomID string) error {
	return s.backend.RemoveAllMembers(ctx, classroomID)
}

func (s *persistenceStore) IsMember(ctx context.Context, classroomID, memberID string) (bool, error) {
	return s.backend.IsMember(ctx, classroomID, memberID)
}

func (s *persistenceStore) ListMembers(ctx context.Context, classroomID string) ([]Member, error) {
	memberships, err := s.backend.ListMembers(ctx, classroomID)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(memberships))
	for _, m := range memberships {
		members = append(members, Member{ID: m.MemberID, JoinedAt: m.JoinedAt})
	}
	return members, nil
}

func toPersistenceClassroom(c Classroom) persistence.Classroom {
	return persistence.Classroom{
		ID:          c.ID,
		JoinCode:    c.JoinCode,
		OwnerID:     c.OwnerID,
		Subject:     c.Schedule.Subject,
		Group:       c.Schedule.Group,
		Room:        c.Schedule.Room,
		StartTime:   c.Schedule.StartTime,
		EndTime:     c.Schedule.EndTime,
		Days:        append([]time.Weekday(nil), c.Schedule.Days...),
		SessionType: c.Schedule.SessionType,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromPersistenceClassroom(r persistence.Classroom) Classroom {
	return Classroom{
		ID:       r.ID,
		JoinCode: r.JoinCode,
		OwnerID:  r.OwnerID,
		Schedule: Schedule{
			Subject:     r.Subject,
			Group:       r.Group,
			Room:        r.Room,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			Days:        append([]time.Weekday(nil), r.Days...),
			SessionType: r.SessionType,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromPersistenceClassrooms(records []persistence.Classroom) []Classroom {
	if len(records) == 0 {
		return nil
	}
	out := make([]Classroom, 0, len(records))
	for _, r := range records {
		out = append(out, fromPersistenceClassroom(r))
	}
	return out
}
