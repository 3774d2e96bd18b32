package web

// handlers_common.go holds the response types and request parsing shared by
// the handlers.

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/procure/internal/core"
	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/stats"
)

// PreviewTable is a frame rendered as text cells.
type PreviewTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// SessionResponse is the client view of an ingestion run. The loaded data
// is summarized by its size and a preview; the full frame stays server-side.
type SessionResponse struct {
	ID          string              `json:"id"`
	Stage       core.Stage          `json:"stage"`
	NextCommand string              `json:"next_command,omitempty"`
	FileName    string              `json:"file_name,omitempty"`
	Rows        int                 `json:"rows"`
	Columns     []string            `json:"columns,omitempty"`
	Preview     *PreviewTable       `json:"preview,omitempty"`
	Mapping     *core.MappingReport `json:"mapping,omitempty"`
	Write       *core.WriteResult   `json:"write,omitempty"`
	Messages    []core.Message      `json:"messages"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toSessionResponse(s core.State, previewRows int) SessionResponse {
	resp := SessionResponse{
		ID:        s.ID,
		Stage:     s.Stage,
		FileName:  s.FileName,
		Rows:      s.Frame.Len(),
		Mapping:   s.Mapping,
		Write:     s.Write,
		Messages:  s.Messages,
		Error:     s.Error,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if next, ok := core.NextCommand(s.Stage); ok {
		resp.NextCommand = string(next)
	}
	if s.Frame != nil {
		resp.Columns = s.Frame.Columns()
		preview := s.Preview
		if preview == nil {
			preview = s.Frame.Head(previewRows)
		}
		resp.Preview = toPreviewTable(preview)
	}
	return resp
}

func toPreviewTable(f *frame.Frame) *PreviewTable {
	cols := f.Columns()
	t := &PreviewTable{Columns: cols, Rows: make([][]string, f.Len())}
	for i := range t.Rows {
		row := make([]string, len(cols))
		for j, name := range cols {
			row[j] = frame.AsString(f.Value(name, i))
		}
		t.Rows[i] = row
	}
	return t
}

// parseFilter reads the statistics filter from the query string:
// status and purchase_type (repeated or comma-separated), from and to as
// YYYY-MM-DD.
func parseFilter(r *http.Request) (stats.Filter, error) {
	q := r.URL.Query()
	flt := stats.Filter{
		Statuses:      splitValues(q["status"]),
		PurchaseTypes: splitValues(q["purchase_type"]),
	}

	bad := make(map[string]string)
	var err error
	if flt.From, err = parseDay(q.Get("from")); err != nil {
		bad["from"] = "date"
	}
	if flt.To, err = parseDay(q.Get("to")); err != nil {
		bad["to"] = "date"
	}
	if !flt.From.IsZero() && !flt.To.IsZero() && flt.To.Before(flt.From) {
		bad["to"] = "gtefield"
	}
	if len(bad) > 0 {
		return stats.Filter{}, &core.RequestError{Fields: bad}
	}
	return flt, nil
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// parseQuantile reads q in (0, 1), defaulting to the atypical quantile.
func parseQuantile(r *http.Request) (float64, error) {
	s := r.URL.Query().Get("q")
	if s == "" {
		return stats.DefaultAtypicalQuantile, nil
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q <= 0 || q >= 1 {
		return 0, &core.RequestError{Fields: map[string]string{"q": "quantile"}}
	}
	return q, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// formatBytes renders a size limit for display.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 0, 64) + " " + string("KMGTPE"[exp]) + "B"
}
