package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/procure/internal/core"
)

// ReferenceTableResponse describes one maintainable reference table.
type ReferenceTableResponse struct {
	Key        string `json:"key"`
	Table      string `json:"table"`
	NaturalKey string `json:"natural_key"`
	Name       string `json:"name"`
}

// handleListReferenceTables lists the reference tables.
func (s *Server) handleListReferenceTables(w http.ResponseWriter, r *http.Request) {
	tables := s.service.ReferenceTables()
	out := make([]ReferenceTableResponse, len(tables))
	for i, t := range tables {
		out[i] = ReferenceTableResponse{Key: t.Key, Table: t.Table, NaturalKey: t.NaturalKeyColumn, Name: t.NameColumn}
	}
	writeJSON(w, out)
}

// handleListReference returns every row of one reference table.
func (s *Server) handleListReference(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ListReference(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rows)
}

// handleUpsertReference creates or updates one reference row from a JSON
// body keyed by the table's natural key.
func (s *Server) handleUpsertReference(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	req, err := core.DecodeReferenceRequest(kind, r.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.service.UpsertReference(withClient(r.Context(), r), kind, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}
