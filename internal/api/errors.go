package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeInvalidSQL     = "invalid_sql"
	ErrCodeReadOnly       = "read_only"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// classifyDBError maps a database or record error onto a status and code.
func classifyDBError(err error) (int, string) {
	switch {
	case errors.Is(err, record.ErrNotFound), errors.Is(err, database.ErrSchema):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, database.ErrCompile), errors.Is(err, database.ErrBind):
		return http.StatusBadRequest, ErrCodeInvalidSQL
	case errors.Is(err, database.ErrTransactionState), database.IsConstraint(err):
		return http.StatusConflict, ErrCodeConflict
	case database.IsBusy(err):
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// writeDBError writes the response for a failed database call. Client
// errors carry the underlying message; server errors are logged and
// reported generically.
func (s *Server) writeDBError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classifyDBError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("database request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		if status == http.StatusInternalServerError {
			writeInternalError(w, "internal server error")
			return
		}
	}
	writeError(w, status, code, err.Error())
}
