package http

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/lorrc/project-hub-backend/internal/core/errors"
)

// ErrorResponse is the standard JSON error response format
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse includes field-level validation errors
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler maps core errors to HTTP responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the response for err.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: validationErrs.Errors,
		})
		return
	}

	status, response := mapDomainError(err)
	h.logError(r, status, err)
	WriteJSON(w, status, response)
}

// mapDomainError converts core sentinels to a status and body. The specific
// not-found and conflict sentinels are checked before their categories.
func mapDomainError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials", Code: "INVALID_CREDENTIALS"}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{Error: "Authentication required", Code: "UNAUTHORIZED"}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "You do not have permission to perform this action", Code: "FORBIDDEN"}

	case errors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "User not found", Code: "USER_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrOrganizationNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Organization not found", Code: "ORGANIZATION_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrProjectNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Project not found", Code: "PROJECT_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrTaskNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Task not found", Code: "TASK_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrCommentNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Comment not found", Code: "COMMENT_NOT_FOUND"}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Resource not found", Code: "NOT_FOUND"}

	case errors.Is(err, apperrors.ErrUserExists):
		return http.StatusConflict, ErrorResponse{Error: "A user with this email already exists", Code: "USER_EXISTS"}
	case errors.Is(err, apperrors.ErrSlugTaken):
		return http.StatusConflict, ErrorResponse{Error: "Organization slug already exists", Code: "SLUG_TAKEN"}
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, ErrorResponse{Error: "Resource conflict", Code: "CONFLICT"}

	case errors.Is(err, apperrors.ErrPasswordTooWeak), errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "BAD_REQUEST"}
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: "Too many requests. Please try again later.", Code: "RATE_LIMITED"}
	case errors.Is(err, apperrors.ErrBusClosed):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "Service is shutting down", Code: "UNAVAILABLE"}

	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected error occurred", Code: "INTERNAL_ERROR"}
	}
}

func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err.Error(),
	}

	ctx := r.Context()
	switch {
	case statusCode >= 500:
		h.logger.ErrorContext(ctx, "server error", attrs...)
	case statusCode >= 400:
		h.logger.WarnContext(ctx, "client error", attrs...)
	default:
		h.logger.InfoContext(ctx, "request error", attrs...)
	}
}
