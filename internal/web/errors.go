package web

// errors.go turns errors into responses. Every error is logged with its
// technical detail and the request ID, then mapped through core.MapError to
// the message the client sees. HTMX requests get an HTML fragment, API
// requests get JSON.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/procure/internal/core"
	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/web/templates"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Session *SessionResponse  `json:"session,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrUnknownReference),
		errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrSessionBusy),
		errors.Is(err, core.ErrIneligibleRows):
		return http.StatusConflict
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyWrites):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrWriteAborted):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrMissingColumns),
		errors.Is(err, core.ErrCoercion),
		errors.Is(err, core.ErrNoRows),
		errors.Is(err, frame.ErrUnsupportedFormat),
		errors.Is(err, frame.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	s.respondSessionError(w, r, err, nil)
}

// respondSessionError is respondError for a command that produced a new
// session state. The state is included so the client sees the run's messages.
func (s *Server) respondSessionError(w http.ResponseWriter, r *http.Request, err error, state *core.State) {
	status := statusFor(err)
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	var re *core.RequestError
	if errors.As(err, &re) {
		resp.Fields = re.Fields
	}
	if state != nil && state.ID != "" {
		dto := toSessionResponse(*state, s.cfg.Upload.PreviewRows)
		resp.Session = &dto
	}
	writeJSONStatus(w, status, resp)
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether a page route should answer with JSON.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are only logged since
// the header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
