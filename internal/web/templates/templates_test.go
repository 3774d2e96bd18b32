package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorAlert(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, ErrorAlert("Bad <file>", "", "FILE001").Render(context.Background(), &sb))

	html := sb.String()
	assert.Contains(t, html, "Bad &lt;file&gt;")
	assert.Contains(t, html, "Code: FILE001")
	assert.Equal(t, 2, strings.Count(html, "<p"), "empty action renders no paragraph")
}

func TestDashboard(t *testing.T) {
	var sb strings.Builder
	data := DashboardData{
		References:    []ReferenceLink{{Key: "cost-centers", Label: "cost_centers"}},
		ActiveWrites:  1,
		MaxWrites:     4,
		StoreError:    "connection refused",
		UploadMaxSize: "32 MB",
	}
	require.NoError(t, Dashboard(data).Render(context.Background(), &sb))

	html := sb.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<h1>Purchase orders</h1>")
	assert.Contains(t, html, "Store unavailable: connection refused. Writes running: 1 of 4.")
	assert.Contains(t, html, `<a href="/api/reference/cost-centers">cost_centers</a>`)
	assert.Contains(t, html, "up to 32 MB.")
	assert.True(t, strings.HasSuffix(html, "</main></body></html>"))
}
