package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"studyhub/internal/logging"
	"studyhub/internal/operations"
	"studyhub/internal/pagination"
)

// envelope is the shape of every response body.
type envelope struct {
	Success     bool                   `json:"success"`
	Data        interface{}            `json:"data,omitempty"`
	Count       *int                   `json:"count,omitempty"`
	Pagination  *pagination.Pagination `json:"pagination,omitempty"`
	UnreadCount *int                   `json:"unreadCount,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Detail      string                 `json:"detail,omitempty"`
}

func decodeJSON(r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return operations.Validation("Invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func writePage[T any](w http.ResponseWriter, page pagination.Page[T]) {
	count := len(page.Items)
	writeJSON(w, http.StatusOK, envelope{
		Success:    true,
		Data:       page.Items,
		Count:      &count,
		Pagination: &page.Pagination,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}

func statusFor(kind operations.Kind) int {
	switch kind {
	case operations.KindValidation, operations.KindConflict:
		return http.StatusBadRequest
	case operations.KindUnauthenticated:
		return http.StatusUnauthorized
	case operations.KindForbidden:
		return http.StatusForbidden
	case operations.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an envelope. Causes are logged for server-side kinds and only echoed
// to the client in development.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *operations.Error
	if !errors.As(err, &opErr) {
		opErr = operations.Internal(err)
	}
	status := statusFor(opErr.Kind)
	body := envelope{Success: false, Error: opErr.Message}
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("kind", opErr.Kind.String()).Msg("request failed")
		if s.cfg.IsDevelopment() && opErr.Err != nil {
			body.Detail = opErr.Err.Error()
		}
	}
	writeJSON(w, status, body)
}
