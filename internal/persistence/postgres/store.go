package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/classroom-service/internal/persistence"
)

type classroomModel struct {
	ID          string    `gorm:"primaryKey;type:text"`
	JoinCode    string    `gorm:"type:text;not null;uniqueIndex"`
	OwnerID     string    `gorm:"type:text;not null;index:idx_classrooms_owner,priority:1"`
	Subject     string    `gorm:"type:text;not null"`
	ClassGroup  string    `gorm:"type:text;not null"`
	Room        string    `gorm:"type:text;not null"`
	StartTime   string    `gorm:"type:text;not null"`
	EndTime     string    `gorm:"type:text;not null"`
	Days        string    `gorm:"type:text;not null"`
	SessionType string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"not null;index:idx_classrooms_owner,priority:2"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (classroomModel) TableName() string { return "classrooms" }

type membershipModel struct {
	ClassroomID string          `gorm:"primaryKey;type:text"`
	MemberID    string          `gorm:"primaryKey;type:text;index:idx_memberships_member,priority:1"`
	JoinedAt    time.Time       `gorm:"not null;index:idx_memberships_member,priority:2"`
	Classroom   *classroomModel `gorm:"foreignKey:ClassroomID;references:ID;constraint:OnDelete:CASCADE"`
}

func (membershipModel) TableName() string { return "memberships" }

// Store implements persistence.ClassroomStore on PostgreSQL through gorm.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ persistence.ClassroomStore = (*Store)(nil)

// Open connects to PostgreSQL, verifies the connection and migrates the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewStore(db, logger)
	if err := store.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open gorm handle.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates the classroom and membership tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&classroomModel{}, &membershipModel{}); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) CreateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	if classroom.ID == "" || classroom.JoinCode == "" || classroom.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}
	row := classroomModelFromRecord(classroom)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return s.mapError("classroom_repo_create_failed", err, "classroom_id", classroom.ID)
	}
	return nil
}

func (s *Store) GetClassroom(ctx context.Context, id string) (persistence.Classroom, error) {
	var row classroomModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return persistence.Classroom{}, s.mapError("classroom_repo_get_failed", err, "classroom_id", id)
	}
	return row.toRecord()
}

func (s *Store) GetClassroomByCode(ctx context.Context, code string) (persistence.Classroom, error) {
	var row classroomModel
	err := s.db.WithContext(ctx).Where("join_code = ?", code).First(&row).Error
	if err != nil {
		return persistence.Classroom{}, s.mapError("classroom_repo_get_by_code_failed", err)
	}
	return row.toRecord()
}

func (s *Store) UpdateClassroom(ctx context.Context, classroom persistence.Classroom) error {
	result := s.db.WithContext(ctx).
		Model(&classroomModel{}).
		Where("id = ?", classroom.ID).
		Updates(map[string]any{
			"subject":      classroom.Subject,
			"class_group":  classroom.Group,
			"room":         classroom.Room,
			"start_time":   classroom.StartTime,
			"end_time":     classroom.EndTime,
			"days":         persistence.EncodeDays(classroom.Days),
			"session_type": classroom.SessionType,
			"updated_at":   classroom.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return s.mapError("classroom_repo_update_failed", result.Error, "classroom_id", classroom.ID)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (s *Store) ListOwned(ctx context.Context, ownerID string) ([]persistence.Classroom, error) {
	var rows []classroomModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, s.mapError("classroom_repo_list_owned_failed", err, "owner_id", ownerID)
	}
	return toRecords(rows)
}

func (s *Store) ListJoined(ctx context.Context, memberID string) ([]persistence.Classroom, error) {
	var rows []classroomModel
	err := s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.classroom_id = classrooms.id").
		Where("memberships.member_id = ?", memberID).
		Order("memberships.joined_at ASC").Order("classrooms.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, s.mapError("classroom_repo_list_joined_failed", err, "member_id", memberID)
	}
	return toRecords(rows)
}

// DeleteClassroom clears memberships and deletes the classroom in one transaction.
func (s *Store) DeleteClassroom(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("classroom_id = ?", id).Delete(&membershipModel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&classroomModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return s.mapError("classroom_repo_delete_failed", err, "classroom_id", id)
	}
	return nil
}

func (s *Store) IsOwner(ctx context.Context, classroomID, principalID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&classroomModel{}).
		Where("id = ? AND owner_id = ?", classroomID, principalID).
		Count(&count).Error
	if err != nil {
		return false, s.mapError("classroom_repo_is_owner_failed", err, "classroom_id", classroomID)
	}
	return count > 0, nil
}

// AddMember inserts a membership. A concurrent duplicate is absorbed by the
// primary key and reported as persistence.ErrDuplicate.
func (s *Store) AddMember(ctx context.Context, membership persistence.Membership) error {
	if membership.ClassroomID == "" || membership.MemberID == "" {
		return persistence.ErrConstraintViolation
	}
	row := membershipModel{
		ClassroomID: membership.ClassroomID,
		MemberID:    membership.MemberID,
		JoinedAt:    membership.JoinedAt.UTC(),
	}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "classroom_id"}, {Name: "member_id"}},
			DoNothing: true,
		}).
		Omit("Classroom").
		Create(&row)
	if result.Error != nil {
		return s.mapError("membership_repo_add_failed", result.Error,
			"classroom_id", membership.ClassroomID,
			"member_id", membership.MemberID,
		)
	}
	if result.RowsAffected == 0 {
		return persistence.ErrDuplicate
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, classroomID, memberID string) error {
	err := s.db.WithContext(ctx).
		Where("classroom_id = ? AND member_id = ?", classroomID, memberID).
		Delete(&membershipModel{}).Error
	if err != nil {
		return s.mapError("membership_repo_remove_failed", err, "classroom_id", classroomID, "member_id", memberID)
	}
	return nil
}

func (s *Store) RemoveAllMembers(ctx context.Context, classroomID string) error {
	err := s.db.WithContext(ctx).
		Where("classroom_id = ?", classroomID).
		Delete(&membershipModel{}).Error
	if err != nil {
		return s.mapError("membership_repo_remove_all_failed", err, "classroom_id", classroomID)
	}
	return nil
}

func (s *Store) IsMember(ctx context.Context, classroomID, memberID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&membershipModel{}).
		Where("classroom_id = ? AND member_id = ?", classroomID, memberID).
		Count(&count).Error
	if err != nil {
		return false, s.mapError("membership_repo_is_member_failed", err, "classroom_id", classroomID)
	}
	return count > 0, nil
}

func (s *Store) ListMembers(ctx context.Context, classroomID string) ([]persistence.Membership, error) {
	var rows []membershipModel
	err := s.db.WithContext(ctx).
		Where("classroom_id = ?", classroomID).
		Order("joined_at ASC").Order("member_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, s.mapError("membership_repo_list_failed", err, "classroom_id", classroomID)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]persistence.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, persistence.Membership{
			ClassroomID: row.ClassroomID,
			MemberID:    row.MemberID,
			JoinedAt:    row.JoinedAt.UTC(),
		})
	}
	return out, nil
}

// mapError converts gorm and pgx errors into persistence sentinels. Errors
// that do not map are logged here with their driver detail.
func (s *Store) mapError(event string, err error, attrs ...any) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return persistence.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case isCheckViolation(err):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	s.logger.Error(event, append([]any{"error", err}, attrs...)...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23514" || pgErr.Code == "23502")
}

func classroomModelFromRecord(c persistence.Classroom) classroomModel {
	return classroomModel{
		ID:          c.ID,
		JoinCode:    c.JoinCode,
		OwnerID:     c.OwnerID,
		Subject:     c.Subject,
		ClassGroup:  c.Group,
		Room:        c.Room,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Days:        persistence.EncodeDays(c.Days),
		SessionType: c.SessionType,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (m classroomModel) toRecord() (persistence.Classroom, error) {
	days, err := persistence.DecodeDays(m.Days)
	if err != nil {
		return persistence.Classroom{}, err
	}
	return persistence.Classroom{
		ID:          m.ID,
		JoinCode:    m.JoinCode,
		OwnerID:     m.OwnerID,
		Subject:     m.Subject,
		Group:       m.ClassGroup,
		Room:        m.Room,
		StartTime:   m.StartTime,
		EndTime:     m.EndTime,
		Days:        days,
		SessionType: m.SessionType,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func toRecords(rows []classroomModel) ([]persistence.Classroom, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]persistence.Classroom, 0, len(rows))
	for _, row := range rows {
		record, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}
