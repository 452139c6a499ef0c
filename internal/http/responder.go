package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/classroom-service/internal/application"
	"github.com/example/classroom-service/internal/logging"
)

// Error codes carried in the error envelope.
const (
	codeBadRequest      = "BAD_REQUEST"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeConflict        = "CONFLICT"
	codeInvalidState    = "INVALID_STATE"
	codeInvalidInput    = "INVALID_INPUT"
	codeRateLimited     = "RATE_LIMITED"
	codeUnavailable     = "UNAVAILABLE"
	codeInternal        = "INTERNAL"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingToken   = errors.New("authentication required")
	errInvalidToken   = errors.New("invalid or expired token")
)

type successResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Status    string            `json:"status"`
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeSuccess(ctx context.Context, w http.ResponseWriter, status int, message string, data any) {
	r.writeJSON(ctx, w, status, successResponse{Status: "success", Message: message, Data: data})
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
	}
	r.writeJSON(ctx, w, status, errorResponse{Status: "error", ErrorCode: code, Message: message})
}

// handleServiceError writes the status for the error's kind. Only the display
// message from the service reaches the client.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Status:    "error",
			ErrorCode: codeInvalidInput,
			Message:   application.Message(err),
			Errors:    vErr.FieldErrors,
		})
		return
	}

	status, code := http.StatusInternalServerError, codeInternal
	switch {
	case errors.Is(err, application.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, application.ErrForbidden):
		status, code = http.StatusForbidden, codeForbidden
	case errors.Is(err, application.ErrNotFound):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, application.ErrConflict):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, application.ErrInvalidState):
		status, code = http.StatusConflict, codeInvalidState
	}

	r.writeJSON(ctx, w, status, errorResponse{
		Status:    "error",
		ErrorCode: code,
		Message:   application.Message(err),
	})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// decodeJSON reads exactly one JSON object from body. Unknown fields are rejected.
func decodeJSON(body io.Reader, dst any) error {
	if body == nil {
		return errBadRequestBody
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("request body contains unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return errBadRequestBody
	}
	if dec.More() {
		return errBadRequestBody
	}
	return nil
}
