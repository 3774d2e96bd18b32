package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/procure/internal/core"
)

// handleStartIngest loads an uploaded CSV or XLSX file into a new session.
// The multipart field is "file".
func (s *Server) handleStartIngest(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: invalid multipart form: %v", core.ErrInvalidRequest, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.RequestError{Fields: map[string]string{"file": "required"}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	state, err := s.service.StartIngest(withClient(r.Context(), r), header.Filename, data)
	if err != nil {
		s.respondSessionError(w, r, err, &state)
		return
	}
	writeJSONStatus(w, http.StatusCreated, toSessionResponse(state, s.cfg.Upload.PreviewRows))
}

// handleGetSession returns the current state of a session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, toSessionResponse(state, s.cfg.Upload.PreviewRows))
}

// handleDiscardSession drops a session.
func (s *Server) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommand runs one workflow command against a session. A command that
// fails after changing the session returns the error with the new state.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseCommand(chi.URLParam(r, "command"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	state, err := s.service.Apply(withClient(r.Context(), r), chi.URLParam(r, "id"), kind)
	if err != nil {
		s.respondSessionError(w, r, err, &state)
		return
	}
	writeJSON(w, toSessionResponse(state, s.cfg.Upload.PreviewRows))
}

// handleWriteQueueStatus reports the write limiter, for monitoring and to
// check whether a write would have to wait.
func (s *Server) handleWriteQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}
