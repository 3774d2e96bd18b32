// Package templates renders the HTML pages and fragments of the web UI.
//
// Components are written in .templ files; the *_templ.go files are generated
// with `templ generate` and must not be edited by hand.
package templates

// ReferenceLink is one maintainable reference table on the dashboard.
type ReferenceLink struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// DashboardData is everything the landing page shows.
type DashboardData struct {
	References    []ReferenceLink `json:"references"`
	ActiveWrites  int             `json:"active_writes"`
	MaxWrites     int             `json:"max_writes"`
	StoreHealthy  bool            `json:"store_healthy"`
	StoreError    string          `json:"store_error,omitempty"`
	UploadMaxSize string          `json:"upload_max_size"`
}

func storeStatus(data DashboardData) string {
	if data.StoreHealthy {
		return "available"
	}
	return "unavailable: " + data.StoreError
}
