package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/core"
	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store"
)

// memStore is an in-memory store.Store keyed on the conflict column.
type memStore struct {
	mu      sync.Mutex
	tables  map[string][]store.Record
	nextID  int64
	pingErr error
}

func newMemStore() *memStore {
	return &memStore{tables: make(map[string][]store.Record)}
}

func (m *memStore) Fetch(_ context.Context, table string) ([]store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Record(nil), m.tables[table]...), nil
}

func (m *memStore) Upsert(_ context.Context, table string, rec store.Record, onConflict string) (store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := frame.AsString(rec[onConflict])
	for _, row := range m.tables[table] {
		if frame.AsString(row[onConflict]) == key {
			for k, v := range rec {
				row[k] = v
			}
			return row, nil
		}
	}
	m.nextID++
	out := store.Record{"id": m.nextID}
	for k, v := range rec {
		out[k] = v
	}
	m.tables[table] = append(m.tables[table], out)
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) seed(table string, rows ...store.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], rows...)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Tables: config.TablesConfig{
			Products:       "products",
			Suppliers:      "suppliers",
			CostCenters:    "cost_centers",
			PurchaseOrders: "purchase_orders",
			CategoryView:   "purchase_categories_view",
			AnalysisView:   "purchase_analysis_view",
		},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second, PreviewRows: 5},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, st *memStore, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(st, core.NewMemorySessionStore(time.Minute),
		core.NewWriteLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		core.Options{Tables: cfg.Tables, PreviewRows: cfg.Upload.PreviewRows, MaxFileSize: cfg.Upload.MaxFileSize})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func seedReferences(st *memStore) {
	st.seed("products", store.Record{"id": int64(1), "product_code": "P1"})
	st.seed("suppliers", store.Record{"id": int64(1), "supplier_tax_id": "20123456789"})
	st.seed("cost_centers", store.Record{"id": int64(1), "cost_center_code": "CC01"})
}

const ordersCSV = "business_code,buyer_user,purchase_type,quantity,taxes,status,order_date,creation_date,approval_date,receipt_date,product_id,supplier_id,cost_center_id,product_code,supplier_tax_id,cost_center_code\n" +
	"PO-1,jdoe,regular,10,1.90,1,31/01/2024 10:00:00,30/01/2024 09:00:00,31/01/2024 09:30:00,05/02/2024 14:00:00,,,,P1,20123456789,CC01\n"

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIngestFlow(t *testing.T) {
	st := newMemStore()
	seedReferences(st)
	srv := newTestServer(t, st, testConfig())

	rec := do(t, srv, uploadRequest(t, "orders.csv", ordersCSV))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[SessionResponse](t, rec)
	assert.Equal(t, core.StageFileLoaded, session.Stage)
	assert.Equal(t, "validate-columns", session.NextCommand)
	assert.Equal(t, 1, session.Rows)
	require.NotNil(t, session.Preview)
	assert.Len(t, session.Preview.Rows, 1)

	for session.NextCommand != "" {
		rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/ingest/"+session.ID+"/"+session.NextCommand, nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		session = decode[SessionResponse](t, rec)
	}
	assert.Equal(t, core.StageCompleted, session.Stage)
	require.NotNil(t, session.Write)
	assert.Equal(t, []string{"PO-1"}, session.Write.Written)

	rows, _ := st.Fetch(context.Background(), "purchase_orders")
	assert.Len(t, rows, 1)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/ingest/"+session.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/ingest/"+session.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/ingest/"+session.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngest_Errors(t *testing.T) {
	srv := newTestServer(t, newMemStore(), testConfig())

	t.Run("wrong stage", func(t *testing.T) {
		rec := do(t, srv, uploadRequest(t, "orders.csv", ordersCSV))
		require.Equal(t, http.StatusCreated, rec.Code)
		id := decode[SessionResponse](t, rec).ID

		rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/ingest/"+id+"/write", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "WF001", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("unknown command", func(t *testing.T) {
		rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/ingest/abc/explode", nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/ingest/missing", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "UPL001", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("unsupported format keeps the failed session", func(t *testing.T) {
		rec := do(t, srv, uploadRequest(t, "orders.pdf", "%PDF"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "FILE001", resp.Code)
		require.NotNil(t, resp.Session)
		assert.Equal(t, core.StageFailed, resp.Session.Stage)
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("note", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := do(t, srv, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, map[string]string{"file": "required"}, decode[ErrorResponse](t, rec).Fields)
	})

	t.Run("missing columns", func(t *testing.T) {
		rec := do(t, srv, uploadRequest(t, "orders.csv", "business_code\nPO-1\n"))
		require.Equal(t, http.StatusCreated, rec.Code)
		id := decode[SessionResponse](t, rec).ID

		rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/ingest/"+id+"/validate-columns", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "VAL001", resp.Code)
		require.NotNil(t, resp.Session)
		assert.Equal(t, core.StageFailed, resp.Session.Stage)
	})
}

func TestIngest_HTMXErrorFragment(t *testing.T) {
	srv := newTestServer(t, newMemStore(), testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/ingest/missing", nil)
	req.Header.Set("HX-Request", "true")

	rec := do(t, srv, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "UPL001")
}

func TestReports(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, testConfig())

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "no stored orders")
	assert.Equal(t, "STORE004", decode[ErrorResponse](t, rec).Code)

	st.seed("purchase_orders",
		store.Record{"business_code": "PO-1", "status": int64(1), "purchase_type": "regular", "creation_date": "2024-01-05T09:00:00", "quantity": int64(3)},
		store.Record{"business_code": "PO-2", "status": int64(2), "purchase_type": "urgent", "creation_date": "2024-02-05T09:00:00", "quantity": int64(-1)},
	)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/quality", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.QualityReport](t, rec)
	assert.Equal(t, 2, report.Rows)
	assert.True(t, report.NeedsAttention)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/quality.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats?status=1&from=2024-01-01&to=2024-01-31", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Rows int `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Rows)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats?from=01-01-2024", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"from": "date"}, decode[ErrorResponse](t, rec).Fields)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/analysis?q=2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "category view is empty")
}

func TestReferenceMaintenance(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, testConfig())

	post := func(kind, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/reference/"+kind, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(t, srv, req)
	}

	rec := post("suppliers", `{"supplier_tax_id":"20123456789","supplier_name":"Acme"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = post("suppliers", `{"supplier_tax_id":"","supplier_name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{"supplier_tax_id": "required", "supplier_name": "min"}, decode[ErrorResponse](t, rec).Fields)

	rec = post("warehouses", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/reference/suppliers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]map[string]any](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "Acme", rows[0]["supplier_name"])

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/reference", nil))
	assert.Len(t, decode[[]ReferenceTableResponse](t, rec), 3)
}

func TestTemplateDownload(t *testing.T) {
	srv := newTestServer(t, newMemStore(), testConfig())

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/ingest/template.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "purchase_orders_template.xlsx")

	f, err := frame.ReadXLSX(bytes.NewReader(rec.Body.Bytes()), frame.ReadOptions{})
	require.NoError(t, err)
	assert.NoError(t, core.ValidateColumns(f, core.RequiredColumns()))
}

func TestPagesAndHealth(t *testing.T) {
	st := newMemStore()
	srv := newTestServer(t, st, testConfig())

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Purchase orders</h1>")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	st.pingErr = errors.New("connection refused")
	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unreachable", decode[HealthResponse](t, rec).Store)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec = do(t, srv, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store_healthy":false`)
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 600, Burst: 50, UploadLimit: 1}
	srv := newTestServer(t, newMemStore(), cfg)

	first := do(t, srv, uploadRequest(t, "orders.csv", ordersCSV))
	assert.Equal(t, http.StatusCreated, first.Code)
	second := do(t, srv, uploadRequest(t, "orders.csv", ordersCSV))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionBusy, http.StatusConflict},
		{core.ErrTooManyWrites, http.StatusServiceUnavailable},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{core.ErrWriteAborted, http.StatusBadGateway},
		{core.ErrNoRows, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "32 MB", formatBytes(32<<20))
}
