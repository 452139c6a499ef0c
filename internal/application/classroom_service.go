package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/classroom-service/internal/persistence"
)

const (
	msgClassroomNotFound = "classroom not found"
	msgJoinCodeNotFound  = "no classroom uses this join code"
	msgJoinCodeTaken     = "join code is already in use"
	msgAlreadyMember     = "already a member of this classroom"
	msgNotMember         = "you are not a member of this classroom"
	msgTargetNotMember   = "member is not in this classroom"
	msgStoreUnavailable  = "classroom storage is unavailable, please retry"
	msgDeleteIncomplete  = "classroom members were removed but the classroom was not deleted, please retry the delete"
)

// ClassroomService orchestrates validation, authorization, and persistence for
// classrooms and their memberships. Every check re-reads the store; the
// service holds no locks of its own.
type ClassroomService struct {
	store       ClassroomStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewClassroomService constructs a classroom service with the provided dependencies.
func NewClassroomService(store ClassroomStore, idGenerator func() string, now func() time.Time) *ClassroomService {
	return NewClassroomServiceWithLogger(store, idGenerator, now, nil)
}

// NewClassroomServiceWithLogger constructs a classroom service with a specified logger.
func NewClassroomServiceWithLogger(store ClassroomStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ClassroomService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &ClassroomService{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *ClassroomService) loggerWith(ctx context.Context, operation string, principal Principal, attrs ...any) *slog.Logger {
	pairs := append([]any{"principal_id", principal.ID, "role", principal.Role.String()}, attrs...)
	return serviceLogger(ctx, s.logger, "ClassroomService", operation, pairs...)
}

func logOutcome(ctx context.Context, logger *slog.Logger, err error, success, failure string) {
	if err == nil {
		logger.InfoContext(ctx, success)
		return
	}
	attrs := []any{"error", err, "error_kind", ErrorKind(err)}
	if cause := errorCause(err); cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	logger.ErrorContext(ctx, failure, attrs...)
}

func (s *ClassroomService) ready() error {
	if s == nil {
		return fmt.Errorf("ClassroomService is nil")
	}
	if s.store == nil {
		return fmt.Errorf("classroom store not configured")
	}
	return nil
}

func requirePrincipal(principal Principal) error {
	if !principal.Authenticated() {
		return newServiceError(ErrUnauthenticated, "authentication required")
	}
	return nil
}

// CreateClassroom validates the schedule and join code, then persists a new
// classroom owned by the calling owner. Input is validated before the role
// check, so an authenticated member with a malformed body learns about the
// input first.
func (s *ClassroomService) CreateClassroom(ctx context.Context, params CreateClassroomParams) (classroom Classroom, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CreateClassroom", params.Principal)
	defer func() {
		logOutcome(ctx, logger.With("classroom_id", classroom.ID), err, "classroom created", "failed to create classroom")
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}

	input := normalizeClassroomInput(params.Input)
	schedule, vErr := validateClassroomInput(input)
	if vErr != nil {
		err = vErr
		return
	}

	if decision := Authorize(params.Principal, ActionCreateClassroom, Resource{}); !decision.Allowed {
		err = decision.Err
		return
	}

	now := s.now().UTC()
	candidate := Classroom{
		ID:        s.idGenerator(),
		JoinCode:  input.JoinCode,
		OwnerID:   params.Principal.ID,
		Schedule:  schedule,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if storeErr := s.store.CreateClassroom(ctx, candidate); storeErr != nil {
		err = mapStoreError(storeErr, msgJoinCodeTaken)
		return
	}

	classroom = candidate
	return
}

// ListClassrooms returns the classrooms an owner created or a member joined.
func (s *ClassroomService) ListClassrooms(ctx context.Context, principal Principal) (classrooms []Classroom, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListClassrooms", principal)
	defer func() {
		logOutcome(ctx, logger.With("result_count", len(classrooms)), err, "classrooms listed", "failed to list classrooms")
	}()

	if decision := Authorize(principal, ActionListClassrooms, Resource{}); !decision.Allowed {
		err = decision.Err
		return
	}

	var storeErr error
	switch principal.Role {
	case RoleOwner:
		classrooms, storeErr = s.store.ListOwned(ctx, principal.ID)
	case RoleMember:
		classrooms, storeErr = s.store.ListJoined(ctx, principal.ID)
	default:
		err = newServiceError(ErrForbidden, "role cannot list classrooms")
		return
	}
	if storeErr != nil {
		classrooms = nil
		err = mapStoreError(storeErr, "")
		return
	}
	if classrooms == nil {
		classrooms = []Classroom{}
	}
	return
}

// GetClassroom returns a single classroom to any authenticated principal.
func (s *ClassroomService) GetClassroom(ctx context.Context, principal Principal, classroomID string) (classroom Classroom, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "GetClassroom", principal, "classroom_id", classroomID)
	defer func() {
		logOutcome(ctx, logger, err, "classroom retrieved", "failed to get classroom")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	classroom, err = s.loadClassroom(ctx, classroomID)
	if err != nil {
		return
	}

	if decision := Authorize(principal, ActionViewClassroom, Resource{}); !decision.Allowed {
		classroom = Classroom{}
		err = decision.Err
	}
	return
}

// GetClassroomMembers lists the members of an existing classroom. A classroom
// without members yields an empty, non-nil slice.
func (s *ClassroomService) GetClassroomMembers(ctx context.Context, principal Principal, classroomID string) (members []Member, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "GetClassroomMembers", principal, "classroom_id", classroomID)
	defer func() {
		logOutcome(ctx, logger.With("result_count", len(members)), err, "classroom members listed", "failed to list classroom members")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	if _, err = s.loadClassroom(ctx, classroomID); err != nil {
		return
	}

	if decision := Authorize(principal, ActionViewClassroom, Resource{}); !decision.Allowed {
		err = decision.Err
		return
	}

	listed, storeErr := s.store.ListMembers(ctx, classroomID)
	if storeErr != nil {
		err = mapStoreError(storeErr, "")
		return
	}
	members = listed
	if members == nil {
		members = []Member{}
	}
	return
}

// JoinClassroom adds the calling member to the classroom that uses the join code.
func (s *ClassroomService) JoinClassroom(ctx context.Context, params JoinClassroomParams) (classroom Classroom, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "JoinClassroom", params.Principal)
	defer func() {
		logOutcome(ctx, logger.With("classroom_id", classroom.ID), err, "classroom joined", "failed to join classroom")
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}

	code := strings.TrimSpace(params.JoinCode)
	if err = validateJoinCode(code); err != nil {
		return
	}

	found, storeErr := s.store.GetClassroomByCode(ctx, code)
	if storeErr != nil {
		err = mapLookupError(storeErr, msgJoinCodeNotFound)
		return
	}

	resource := Resource{OwnsClassroom: found.OwnerID == params.Principal.ID, TargetID: params.Principal.ID}
	if decision := Authorize(params.Principal, ActionJoinClassroom, resource); !decision.Allowed {
		err = decision.Err
		return
	}

	member, storeErr := s.store.IsMember(ctx, found.ID, params.Principal.ID)
	if storeErr != nil {
		err = mapStoreError(storeErr, "")
		return
	}
	if member {
		err = newServiceError(ErrConflict, msgAlreadyMember)
		return
	}

	if storeErr := s.store.AddMember(ctx, found.ID, params.Principal.ID, s.now().UTC()); storeErr != nil {
		err = mapMembershipError(storeErr)
		return
	}

	classroom = found
	return
}

// LeaveClassroom removes the calling member from a classroom they belong to.
func (s *ClassroomService) LeaveClassroom(ctx context.Context, principal Principal, classroomID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "LeaveClassroom", principal, "classroom_id", classroomID)
	defer func() {
		logOutcome(ctx, logger, err, "classroom left", "failed to leave classroom")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	if _, err = s.loadClassroom(ctx, classroomID); err != nil {
		return
	}

	if decision := Authorize(principal, ActionLeaveClassroom, Resource{TargetID: principal.ID}); !decision.Allowed {
		err = decision.Err
		return
	}

	member, storeErr := s.store.IsMember(ctx, classroomID, principal.ID)
	if storeErr != nil {
		err = mapStoreError(storeErr, "")
		return
	}
	if !member {
		err = newServiceError(ErrInvalidState, msgNotMember)
		return
	}

	if storeErr := s.store.RemoveMember(ctx, classroomID, principal.ID); storeErr != nil {
		err = mapStoreError(storeErr, "")
	}
	return
}

// RemoveMember lets the owning principal remove a member from their classroom.
func (s *ClassroomService) RemoveMember(ctx context.Context, params RemoveMemberParams) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RemoveMember", params.Principal,
		"classroom_id", params.ClassroomID,
		"member_id", params.MemberID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "member removed", "failed to remove member")
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}

	memberID := strings.TrimSpace(params.MemberID)
	if memberID == "" {
		vErr := &ValidationError{}
		vErr.add("memberId", "memberId is required")
		err = vErr
		return
	}

	if _, err = s.loadClassroom(ctx, params.ClassroomID); err != nil {
		return
	}

	owns, err := s.ownsClassroom(ctx, params.ClassroomID, params.Principal)
	if err != nil {
		return
	}
	if decision := Authorize(params.Principal, ActionRemoveMember, Resource{OwnsClassroom: owns, TargetID: memberID}); !decision.Allowed {
		err = decision.Err
		return
	}

	member, storeErr := s.store.IsMember(ctx, params.ClassroomID, memberID)
	if storeErr != nil {
		err = mapStoreError(storeErr, "")
		return
	}
	if !member {
		err = newServiceError(ErrInvalidState, msgTargetNotMember)
		return
	}

	if storeErr := s.store.RemoveMember(ctx, params.ClassroomID, memberID); storeErr != nil {
		err = mapStoreError(storeErr, "")
	}
	return
}

// UpdateClassroom replaces every schedule field of a classroom owned by the caller.
func (s *ClassroomService) UpdateClassroom(ctx context.Context, params UpdateClassroomParams) (classroom Classroom, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateClassroom", params.Principal, "classroom_id", params.ClassroomID)
	defer func() {
		logOutcome(ctx, logger, err, "classroom updated", "failed to update classroom")
	}()

	if err = requirePrincipal(params.Principal); err != nil {
		return
	}

	schedule, vErr := validateScheduleInput(normalizeScheduleInput(params.Input))
	if vErr != nil {
		err = vErr
		return
	}

	existing, err := s.loadClassroom(ctx, params.ClassroomID)
	if err != nil {
		return
	}

	owns, err := s.ownsClassroom(ctx, params.ClassroomID, params.Principal)
	if err != nil {
		return
	}
	if decision := Authorize(params.Principal, ActionUpdateClassroom, Resource{OwnsClassroom: owns}); !decision.Allowed {
		err = decision.Err
		return
	}

	updated := existing
	updated.Schedule = schedule
	updated.UpdatedAt = s.now().UTC()

	if storeErr := s.store.UpdateClassroom(ctx, updated); storeErr != nil {
		err = mapLookupError(storeErr, msgClassroomNotFound)
		return
	}

	classroom = updated
	return
}

// DeleteClassroom removes every membership of an owned classroom and then the
// classroom itself. When the second phase fails the classroom is left empty
// and an internal error is returned; repeating the call is safe.
func (s *ClassroomService) DeleteClassroom(ctx context.Context, principal Principal, classroomID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteClassroom", principal, "classroom_id", classroomID)
	defer func() {
		logOutcome(ctx, logger, err, "classroom deleted", "failed to delete classroom")
	}()

	if err = requirePrincipal(principal); err != nil {
		return
	}

	if _, err = s.loadClassroom(ctx, classroomID); err != nil {
		return
	}

	owns, err := s.ownsClassroom(ctx, classroomID, principal)
	if err != nil {
		return
	}
	if decision := Authorize(principal, ActionDeleteClassroom, Resource{OwnsClassroom: owns}); !decision.Allowed {
		err = decision.Err
		return
	}

	if storeErr := s.store.RemoveAllMembers(ctx, classroomID); storeErr != nil {
		err = newInternalError(msgStoreUnavailable, storeErr)
		return
	}

	if storeErr := s.store.DeleteClassroom(ctx, classroomID); storeErr != nil {
		if errors.Is(storeErr, persistence.ErrNotFound) {
			err = newServiceError(ErrNotFound, msgClassroomNotFound)
			return
		}
		err = newInternalError(msgDeleteIncomplete, storeErr)
	}
	return
}

func (s *ClassroomService) loadClassroom(ctx context.Context, classroomID string) (Classroom, error) {
	if strings.TrimSpace(classroomID) == "" {
		return Classroom{}, newServiceError(ErrNotFound, msgClassroomNotFound)
	}
	classroom, err := s.store.GetClassroom(ctx, classroomID)
	if err != nil {
		return Classroom{}, mapLookupError(err, msgClassroomNotFound)
	}
	return classroom, nil
}

func (s *ClassroomService) ownsClassroom(ctx context.Context, classroomID string, principal Principal) (bool, error) {
	if principal.Role != RoleOwner {
		return false, nil
	}
	owns, err := s.store.IsOwner(ctx, classroomID, principal.ID)
	if err != nil {
		return false, mapStoreError(err, "")
	}
	return owns, nil
}

// mapStoreError reclassifies a store failure. conflictMessage is used when
// the store reports a duplicate key.
func mapStoreError(err error, conflictMessage string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return newServiceError(ErrNotFound, msgClassroomNotFound)
	case errors.Is(err, persistence.ErrDuplicate) && conflictMessage != "":
		return newServiceError(ErrConflict, conflictMessage)
	}
	return newInternalError(msgStoreUnavailable, err)
}

func mapLookupError(err error, notFoundMessage string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return newServiceError(ErrNotFound, notFoundMessage)
	}
	return newInternalError(msgStoreUnavailable, err)
}

// mapMembershipError folds a lost join race into the same conflict a
// sequential duplicate join produces, and a classroom deleted mid-join into
// not found.
func mapMembershipError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrDuplicate):
		return newServiceError(ErrConflict, msgAlreadyMember)
	case errors.Is(err, persistence.ErrForeignKeyViolation), errors.Is(err, persistence.ErrNotFound):
		return newServiceError(ErrNotFound, msgClassroomNotFound)
	}
	return newInternalError(msgStoreUnavailable, err)
}
