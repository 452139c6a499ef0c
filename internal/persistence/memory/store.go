package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/classroom-service/internal/persistence"
)

type membershipKey struct {
	classroomID string
	memberID    string
}

// Store keeps classrooms and memberships in process memory. A single mutex
// serialises writers, which gives the same uniqueness and delete guarantees
// as the SQL backends.
type Store struct {
	mu          sync.RWMutex
	classrooms  map[string]persistence.Classroom
	codes       map[string]string
	memberships map[membershipKey]persistence.Membership
}

var _ persistence.ClassroomStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		classrooms:  make(map[string]persistence.Classroom),
		codes:       make(map[string]string),
		memberships: make(map[membershipKey]persistence.Membership),
	}
}

// Close is a no-op kept so the store satisfies the same lifecycle as the SQL backends.
func (s *Store) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// CreateClassroom stores a classroom, rejecting a taken id or join code.
func (s *Store) CreateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	if classroom.ID == "" || classroom.JoinCode == "" || classroom.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classrooms[classroom.ID]; ok {
		return persistence.ErrDuplicate
	}
	if _, ok := s.codes[classroom.JoinCode]; ok {
		return persistence.ErrDuplicate
	}

	s.classrooms[classroom.ID] = cloneClassroom(classroom)
	s.codes[classroom.JoinCode] = classroom.ID
	return nil
}

// GetClassroom retrieves a classroom by id.
func (s *Store) GetClassroom(ctx context.Context, id string) (persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	classroom, ok := s.classrooms[id]
	if !ok {
		return persistence.Classroom{}, persistence.ErrNotFound
	}
	return cloneClassroom(classroom), nil
}

// GetClassroomByCode retrieves a classroom by join code.
func (s *Store) GetClassroomByCode(ctx context.Context, code string) (persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return persistence.Classroom{}, persistence.ErrNotFound
	}
	return cloneClassroom(s.classrooms[id]), nil
}

// UpdateClassroom replaces schedule fields; id, join code, owner and
// creation time are kept from the stored row.
func (s *Store) UpdateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.classrooms[classroom.ID]
	if !ok {
		return persistence.ErrNotFound
	}

	existing.Subject = classroom.Subject
	existing.Group = classroom.Group
	existing.Room = classroom.Room
	existing.StartTime = classroom.StartTime
	existing.EndTime = classroom.EndTime
	existing.Days = append([]time.Weekday(nil), classroom.Days...)
	existing.SessionType = classroom.SessionType
	existing.UpdatedAt = classroom.UpdatedAt
	s.classrooms[classroom.ID] = existing
	return nil
}

// ListOwned returns the classrooms created by ownerID ordered by CreatedAt ascending.
func (s *Store) ListOwned(ctx context.Context, ownerID string) ([]persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []persistence.Classroom
	for _, classroom := range s.classrooms {
		if classroom.OwnerID == ownerID {
			owned = append(owned, cloneClassroom(classroom))
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].CreatedAt.Before(owned[j].CreatedAt)
	})
	return owned, nil
}

// ListJoined returns the classrooms memberID belongs to in join order.
func (s *Store) ListJoined(ctx context.Context, memberID string) ([]persistence.Classroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var joined []persistence.Membership
	for key, membership := range s.memberships {
		if key.memberID == memberID {
			joined = append(joined, membership)
		}
	}
	sortMemberships(joined)

	classrooms := make([]persistence.Classroom, 0, len(joined))
	for _, membership := range joined {
		if classroom, ok := s.classrooms[membership.ClassroomID]; ok {
			classrooms = append(classrooms, cloneClassroom(classroom))
		}
	}
	if len(classrooms) == 0 {
		return nil, nil
	}
	return classrooms, nil
}

// DeleteClassroom removes the classroom together with any memberships left.
func (s *Store) DeleteClassroom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	classroom, ok := s.classrooms[id]
	if !ok {
		return persistence.ErrNotFound
	}
	s.removeAllMembersLocked(id)
	delete(s.codes, classroom.JoinCode)
	delete(s.classrooms, id)
	return nil
}

// IsOwner reports whether principalID owns classroomID.
func (s *Store) IsOwner(ctx context.Context, classroomID, principalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	classroom, ok := s.classrooms[classroomID]
	return ok && classroom.OwnerID == principalID, nil
}

// AddMember inserts a membership, failing with ErrDuplicate if present and
// ErrForeignKeyViolation if the classroom does not exist.
func (s *Store) AddMember(ctx context.Context, membership persistence.Membership) error {
	if membership.ClassroomID == "" || membership.MemberID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.classrooms[membership.ClassroomID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	key := membershipKey{classroomID: membership.ClassroomID, memberID: membership.MemberID}
	if _, ok := s.memberships[key]; ok {
		return persistence.ErrDuplicate
	}
	s.memberships[key] = membership
	return nil
}

// RemoveMember deletes a membership if present.
func (s *Store) RemoveMember(ctx context.Context, classroomID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.memberships, membershipKey{classroomID: classroomID, memberID: memberID})
	return nil
}

// RemoveAllMembers deletes every membership of a classroom.
func (s *Store) RemoveAllMembers(ctx context.Context, classroomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeAllMembersLocked(classroomID)
	return nil
}

func (s *Store) removeAllMembersLocked(classroomID string) {
	for key := range s.memberships {
		if key.classroomID == classroomID {
			delete(s.memberships, key)
		}
	}
}

// IsMember reports whether memberID belongs to classroomID.
func (s *Store) IsMember(ctx context.Context, classroomID, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.memberships[membershipKey{classroomID: classroomID, memberID: memberID}]
	return ok, nil
}

// ListMembers returns a classroom's memberships in join order.
func (s *Store) ListMembers(ctx context.Context, classroomID string) ([]persistence.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []persistence.Membership
	for key, membership := range s.memberships {
		if key.classroomID == classroomID {
			members = append(members, membership)
		}
	}
	sortMemberships(members)
	return members, nil
}

func sortMemberships(memberships []persistence.Membership) {
	sort.Slice(memberships, func(i, j int) bool {
		if memberships[i].JoinedAt.Equal(memberships[j].JoinedAt) {
			if memberships[i].MemberID == memberships[j].MemberID {
				return memberships[i].ClassroomID < memberships[j].ClassroomID
			}
			return memberships[i].MemberID < memberships[j].MemberID
		}
		return memberships[i].JoinedAt.Before(memberships[j].JoinedAt)
	})
}

func cloneClassroom(classroom persistence.Classroom) persistence.Classroom {
	if classroom.Days != nil {
		classroom.Days = append([]time.Weekday(nil), classroom.Days...)
	}
	return classroom
}
