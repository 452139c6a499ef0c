package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/classroom-service/internal/application"
)

type classroomService interface {
	CreateClassroom(ctx context.Context, params application.CreateClassroomParams) (application.Classroom, error)
	ListClassrooms(ctx context.Context, principal application.Principal) ([]application.Classroom, error)
	GetClassroom(ctx context.Context, principal application.Principal, classroomID string) (application.Classroom, error)
	GetClassroomMembers(ctx context.Context, principal application.Principal, classroomID string) ([]application.Member, error)
	JoinClassroom(ctx context.Context, params application.JoinClassroomParams) (application.Classroom, error)
	LeaveClassroom(ctx context.Context, principal application.Principal, classroomID string) error
	RemoveMember(ctx context.Context, params application.RemoveMemberParams) error
	UpdateClassroom(ctx context.Context, params application.UpdateClassroomParams) (application.Classroom, error)
	DeleteClassroom(ctx context.Context, principal application.Principal, classroomID string) error
}

// ClassroomHandler serves the classroom and membership endpoints.
type ClassroomHandler struct {
	service   classroomService
	responder responder
	logger    *slog.Logger
}

func NewClassroomHandler(service classroomService, logger *slog.Logger) *ClassroomHandler {
	base := defaultLogger(logger)
	return &ClassroomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ClassroomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ClassroomHandler", operation, attrs...)
}

func (h *ClassroomHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *ClassroomHandler) fail(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.WarnContext(ctx, msg, "error_kind", application.ErrorKind(err))
	h.responder.handleServiceError(ctx, w, err)
}

func (h *ClassroomHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Create", "principal_id", principal.ID)

	var req classroomRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode classroom request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	classroom, err := h.service.CreateClassroom(ctx, application.CreateClassroomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.fail(ctx, w, logger, "classroom creation failed", err)
		return
	}

	logger.With("classroom_id", classroom.ID).InfoContext(ctx, "classroom created")
	h.responder.writeSuccess(ctx, w, http.StatusCreated, "classroom created", createClassroomResponse{ClassroomID: classroom.ID})
}

func (h *ClassroomHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "List", "principal_id", principal.ID)

	classrooms, err := h.service.ListClassrooms(ctx, principal)
	if err != nil {
		h.fail(ctx, w, logger, "classroom list failed", err)
		return
	}

	logger.With("result_count", len(classrooms)).InfoContext(ctx, "classrooms listed")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "", listClassroomsResponse{Classrooms: toClassroomDTOs(classrooms)})
}

func (h *ClassroomHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	logger := h.log(ctx, "Get", "principal_id", principal.ID, "classroom_id", classroomID)

	classroom, err := h.service.GetClassroom(ctx, principal, classroomID)
	if err != nil {
		h.fail(ctx, w, logger, "classroom lookup failed", err)
		return
	}

	h.responder.writeSuccess(ctx, w, http.StatusOK, "", classroomResponse{Classroom: toClassroomDTO(classroom)})
}

func (h *ClassroomHandler) Members(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	logger := h.log(ctx, "Members", "principal_id", principal.ID, "classroom_id", classroomID)

	members, err := h.service.GetClassroomMembers(ctx, principal, classroomID)
	if err != nil {
		h.fail(ctx, w, logger, "member list failed", err)
		return
	}

	logger.With("result_count", len(members)).InfoContext(ctx, "members listed")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "", listMembersResponse{Members: toMemberDTOs(members)})
}

func (h *ClassroomHandler) Join(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Join", "principal_id", principal.ID)

	var req joinRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode join request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	classroom, err := h.service.JoinClassroom(ctx, application.JoinClassroomParams{
		Principal: principal,
		JoinCode:  req.Code,
	})
	if err != nil {
		h.fail(ctx, w, logger, "join failed", err)
		return
	}

	logger.With("classroom_id", classroom.ID).InfoContext(ctx, "classroom joined")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "joined classroom", classroomResponse{Classroom: toClassroomDTO(classroom)})
}

func (h *ClassroomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	logger := h.log(ctx, "Leave", "principal_id", principal.ID, "classroom_id", classroomID)

	if err := h.service.LeaveClassroom(ctx, principal, classroomID); err != nil {
		h.fail(ctx, w, logger, "leave failed", err)
		return
	}

	logger.InfoContext(ctx, "classroom left")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "left classroom", nil)
}

func (h *ClassroomHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	memberID := chi.URLParam(r, "memberID")
	logger := h.log(ctx, "RemoveMember", "principal_id", principal.ID, "classroom_id", classroomID, "member_id", memberID)

	err := h.service.RemoveMember(ctx, application.RemoveMemberParams{
		Principal:   principal,
		ClassroomID: classroomID,
		MemberID:    memberID,
	})
	if err != nil {
		h.fail(ctx, w, logger, "member removal failed", err)
		return
	}

	logger.InfoContext(ctx, "member removed")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "member removed", nil)
}

func (h *ClassroomHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	logger := h.log(ctx, "Update", "principal_id", principal.ID, "classroom_id", classroomID)

	var req scheduleRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		logger.WarnContext(ctx, "failed to decode classroom update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(ctx, w, http.StatusBadRequest, codeBadRequest, err)
		return
	}

	classroom, err := h.service.UpdateClassroom(ctx, application.UpdateClassroomParams{
		Principal:   principal,
		ClassroomID: classroomID,
		Input:       req.toInput(),
	})
	if err != nil {
		h.fail(ctx, w, logger, "classroom update failed", err)
		return
	}

	logger.InfoContext(ctx, "classroom updated")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "classroom updated", classroomResponse{Classroom: toClassroomDTO(classroom)})
}

func (h *ClassroomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	classroomID := chi.URLParam(r, "classroomID")
	logger := h.log(ctx, "Delete", "principal_id", principal.ID, "classroom_id", classroomID)

	if err := h.service.DeleteClassroom(ctx, principal, classroomID); err != nil {
		h.fail(ctx, w, logger, "classroom delete failed", err)
		return
	}

	logger.InfoContext(ctx, "classroom deleted")
	h.responder.writeSuccess(ctx, w, http.StatusOK, "classroom deleted", nil)
}

type classroomRequest struct {
	Code string `json:"code"`
	scheduleRequest
}

func (r classroomRequest) toInput() application.ClassroomInput {
	schedule := r.scheduleRequest.toInput()
	return application.ClassroomInput{
		JoinCode:    r.Code,
		Subject:     schedule.Subject,
		Group:       schedule.Group,
		Room:        schedule.Room,
		StartTime:   schedule.StartTime,
		EndTime:     schedule.EndTime,
		Days:        schedule.Days,
		SessionType: schedule.SessionType,
	}
}

type scheduleRequest struct {
	Subject   string   `json:"subject"`
	Group     string   `json:"group"`
	Room      string   `json:"room"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Days      []string `json:"days"`
	Type      string   `json:"type"`
}

func (r scheduleRequest) toInput() application.ScheduleInput {
	return application.ScheduleInput{
		Subject:     r.Subject,
		Group:       r.Group,
		Room:        r.Room,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Days:        r.Days,
		SessionType: r.Type,
	}
}

type joinRequest struct {
	Code string `json:"code"`
}

type createClassroomResponse struct {
	ClassroomID string `json:"classroomId"`
}

type classroomResponse struct {
	Classroom classroomDTO `json:"classroom"`
}

type listClassroomsResponse struct {
	Classrooms []classroomDTO `json:"classrooms"`
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type classroomDTO struct {
	ID        string   `json:"id"`
	Code      string   `json:"code"`
	OwnerID   string   `json:"ownerId"`
	Subject   string   `json:"subject"`
	Group     string   `json:"group"`
	Room      string   `json:"room"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Days      []string `json:"days"`
	Type      string   `json:"type"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

type memberDTO struct {
	MemberID string `json:"memberId"`
	JoinedAt string `json:"joinedAt"`
}

func toClassroomDTO(classroom application.Classroom) classroomDTO {
	days := make([]string, 0, len(classroom.Schedule.Days))
	for _, day := range classroom.Schedule.Days {
		days = append(days, day.String())
	}
	return classroomDTO{
		ID:        classroom.ID,
		Code:      classroom.JoinCode,
		OwnerID:   classroom.OwnerID,
		Subject:   classroom.Schedule.Subject,
		Group:     classroom.Schedule.Group,
		Room:      classroom.Schedule.Room,
		StartTime: classroom.Schedule.StartTime,
		EndTime:   classroom.Schedule.EndTime,
		Days:      days,
		Type:      classroom.Schedule.SessionType,
		CreatedAt: classroom.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: classroom.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toClassroomDTOs(classrooms []application.Classroom) []classroomDTO {
	out := make([]classroomDTO, 0, len(classrooms))
	for _, classroom := range classrooms {
		out = append(out, toClassroomDTO(classroom))
	}
	return out
}

func toMemberDTOs(members []application.Member) []memberDTO {
	out := make([]memberDTO, 0, len(members))
	for _, member := range members {
		out = append(out, memberDTO{
			MemberID: member.ID,
			JoinedAt: member.JoinedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}
