package web

import (
	"bytes"
	"net/http"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleDownloadTemplate serves an example upload workbook.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.TemplateWorkbook(&buf); err != nil {
		s.respondError(w, r, err)
		return
	}
	sendWorkbook(w, "purchase_orders_template.xlsx", buf.Bytes())
}

// handleQualityExport serves the quality report and flagged rows as XLSX.
func (s *Server) handleQualityExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.QualityWorkbook(r.Context(), &buf); err != nil {
		s.respondError(w, r, err)
		return
	}
	sendWorkbook(w, "purchase_orders_quality.xlsx", buf.Bytes())
}

// sendWorkbook writes a rendered workbook as a download. Rendering goes to a
// buffer first so a failure can still produce an error response.
func sendWorkbook(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
