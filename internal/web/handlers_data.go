package web

import (
	"net/http"
)

// handleQuality returns the quality report over stored purchase orders.
func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.QualityReport(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleStats returns the statistics page for the filter in the query.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	flt, err := parseFilter(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	report, err := s.service.Stats(r.Context(), flt)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// handleCategoryDashboard returns the category dashboard. category and
// subcategory narrow it and may repeat.
func (s *Server) handleCategoryDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	summary, err := s.service.Dashboard(r.Context(), splitValues(q["category"]), splitValues(q["subcategory"]))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

// handleAnalysis returns the demand series and atypical purchases. q sets
// the atypical quantile.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	quantile, err := parseQuantile(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	analysis, err := s.service.Analysis(r.Context(), quantile)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, analysis)
}
