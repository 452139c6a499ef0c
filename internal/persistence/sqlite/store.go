package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/classroom-service/internal/persistence"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const classroomColumns = `id, join_code, owner_id, subject, class_group, room, start_time, end_time, days, session_type, created_at, updated_at`

// Store implements persistence.ClassroomStore on SQLite.
type Store struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

var _ persistence.ClassroomStore = (*Store)(nil)

// Open creates the connection pool and applies pending migrations.
func Open(ctx context.Context, config Config) (*Store, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return NewStore(pool), nil
}

// NewStore wraps an already migrated connection pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateClassroom inserts a classroom; a taken join code yields persistence.ErrDuplicate.
func (s *Store) CreateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	if classroom.ID == "" || classroom.JoinCode == "" || classroom.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	query := `INSERT INTO classrooms (` + classroomColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.db.ExecContext(ctx, query,
			classroom.ID,
			classroom.JoinCode,
			classroom.OwnerID,
			classroom.Subject,
			classroom.Group,
			classroom.Room,
			classroom.StartTime,
			classroom.EndTime,
			persistence.EncodeDays(classroom.Days),
			classroom.SessionType,
			formatTime(classroom.CreatedAt),
			formatTime(classroom.UpdatedAt),
		)
		return err
	})
}

// GetClassroom retrieves a classroom by id.
func (s *Store) GetClassroom(ctx context.Context, id string) (persistence.Classroom, error) {
	row := s.pool.db.QueryRowContext(ctx, `SELECT `+classroomColumns+` FROM classrooms WHERE id = ?`, id)
	classroom, err := scanClassroom(row)
	if err != nil {
		return persistence.Classroom{}, s.mapper.MapError(err)
	}
	return classroom, nil
}

// GetClassroomByCode retrieves a classroom by its join code.
func (s *Store) GetClassroomByCode(ctx context.Context, code string) (persistence.Classroom, error) {
	row := s.pool.db.QueryRowContext(ctx, `SELECT `+classroomColumns+` FROM classrooms WHERE join_code = ?`, code)
	classroom, err := scanClassroom(row)
	if err != nil {
		return persistence.Classroom{}, s.mapper.MapError(err)
	}
	return classroom, nil
}

// UpdateClassroom replaces the schedule fields of an existing classroom.
func (s *Store) UpdateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	query := `
		UPDATE classrooms
		SET subject = ?, class_group = ?, room = ?, start_time = ?, end_time = ?, days = ?, session_type = ?, updated_at = ?
		WHERE id = ?
	`
	var affected int64
	err := s.retry.WithRetry(ctx, func() error {
		result, err := s.pool.db.ExecContext(ctx, query,
			classroom.Subject,
			classroom.Group,
			classroom.Room,
			classroom.StartTime,
			classroom.EndTime,
			persistence.EncodeDays(classroom.Days),
			classroom.SessionType,
			formatTime(classroom.UpdatedAt),
			classroom.ID,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListOwned returns the classrooms created by ownerID, oldest first.
func (s *Store) ListOwned(ctx context.Context, ownerID string) ([]persistence.Classroom, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT `+classroomColumns+` FROM classrooms WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return collectClassrooms(rows)
}

// ListJoined returns the classrooms memberID belongs to, in join order.
func (s *Store) ListJoined(ctx context.Context, memberID string) ([]persistence.Classroom, error) {
	query := `
		SELECT c.id, c.join_code, c.owner_id, c.subject, c.class_group, c.room, c.start_time, c.end_time, c.days, c.session_type, c.created_at, c.updated_at
		FROM classrooms c
		JOIN memberships m ON m.classroom_id = c.id
		WHERE m.member_id = ?
		ORDER BY m.joined_at, c.id
	`
	rows, err := s.pool.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	return collectClassrooms(rows)
}

// DeleteClassroom clears remaining memberships and deletes the classroom in a
// single transaction.
func (s *Store) DeleteClassroom(ctx context.Context, id string) error {
	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM memberships WHERE classroom_id = ?`, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM classrooms WHERE id = ?`, id)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return persistence.ErrNotFound
			}
			return nil
		})
	})
}

// IsOwner reports whether principalID owns classroomID.
func (s *Store) IsOwner(ctx context.Context, classroomID, principalID string) (bool, error) {
	var exists bool
	err := s.pool.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM classrooms WHERE id = ? AND owner_id = ?)`, classroomID, principalID,
	).Scan(&exists)
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return exists, nil
}

// AddMember inserts a membership row. The primary key guarantees a single row
// per pair even under concurrent joins.
func (s *Store) AddMember(ctx context.Context, membership persistence.Membership) error {
	if membership.ClassroomID == "" || membership.MemberID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.db.ExecContext(ctx,
			`INSERT INTO memberships (classroom_id, member_id, joined_at) VALUES (?, ?, ?)`,
			membership.ClassroomID, membership.MemberID, formatTime(membership.JoinedAt),
		)
		return err
	})
}

// RemoveMember deletes a membership row; deleting an absent row is not an error.
func (s *Store) RemoveMember(ctx context.Context, classroomID, memberID string) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.db.ExecContext(ctx,
			`DELETE FROM memberships WHERE classroom_id = ? AND member_id = ?`, classroomID, memberID)
		return err
	})
}

// RemoveAllMembers deletes every membership of a classroom.
func (s *Store) RemoveAllMembers(ctx context.Context, classroomID string) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.db.ExecContext(ctx, `DELETE FROM memberships WHERE classroom_id = ?`, classroomID)
		return err
	})
}

// IsMember reports whether memberID belongs to classroomID.
func (s *Store) IsMember(ctx context.Context, classroomID, memberID string) (bool, error) {
	var exists bool
	err := s.pool.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM memberships WHERE classroom_id = ? AND member_id = ?)`, classroomID, memberID,
	).Scan(&exists)
	if err != nil {
		return false, s.mapper.MapError(err)
	}
	return exists, nil
}

// ListMembers returns the memberships of a classroom in join order.
func (s *Store) ListMembers(ctx context.Context, classroomID string) ([]persistence.Membership, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		`SELECT classroom_id, member_id, joined_at FROM memberships WHERE classroom_id = ? ORDER BY joined_at, member_id`,
		classroomID)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var memberships []persistence.Membership
	for rows.Next() {
		var (
			m        persistence.Membership
			joinedAt string
		)
		if err := rows.Scan(&m.ClassroomID, &m.MemberID, &joinedAt); err != nil {
			return nil, s.mapper.MapError(err)
		}
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return memberships, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClassroom(row rowScanner) (persistence.Classroom, error) {
	var (
		c                    persistence.Classroom
		days                 string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&c.ID, &c.JoinCode, &c.OwnerID,
		&c.Subject, &c.Group, &c.Room,
		&c.StartTime, &c.EndTime, &days, &c.SessionType,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Classroom{}, err
	}
	if c.Days, err = persistence.DecodeDays(days); err != nil {
		return persistence.Classroom{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Classroom{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Classroom{}, err
	}
	return c, nil
}

func collectClassrooms(rows *sql.Rows) ([]persistence.Classroom, error) {
	defer rows.Close()

	var classrooms []persistence.Classroom
	for rows.Next() {
		classroom, err := scanClassroom(rows)
		if err != nil {
			return nil, err
		}
		classrooms = append(classrooms, classroom)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classrooms, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", value, err)
	}
	return t, nil
}
