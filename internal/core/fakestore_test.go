package core

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/procure/internal/config"
	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store"
)

// fakeStore is an in-memory store.Store. Upserts merge on the conflict
// column and assign sequential ids.
type fakeStore struct {
	mu      sync.Mutex
	tables  map[string][]store.Record
	nextID  int64
	upserts int

	fetchErr  error
	failAt    int // 1-based upsert that fails, along with every later one; 0 never fails
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tables: make(map[string][]store.Record)}
}

func (f *fakeStore) seed(table string, rows ...store.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = append(f.tables[table], rows...)
}

func (f *fakeStore) rows(table string) []store.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Record(nil), f.tables[table]...)
}

func (f *fakeStore) Fetch(_ context.Context, table string) ([]store.Record, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.rows(table), nil
}

func (f *fakeStore) Upsert(_ context.Context, table string, rec store.Record, onConflict string) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAt > 0 && f.upserts+1 >= f.failAt {
		err := f.upsertErr
		if err == nil {
			err = errors.New("postgrest POST purchase_orders: status 409: duplicate key value")
		}
		return nil, err
	}
	f.upserts++

	key := frame.AsString(rec[onConflict])
	for i, row := range f.tables[table] {
		if frame.AsString(row[onConflict]) == key {
			for k, v := range rec {
				row[k] = v
			}
			f.tables[table][i] = row
			return row, nil
		}
	}

	f.nextID++
	out := store.Record{"id": f.nextID}
	for k, v := range rec {
		out[k] = v
	}
	f.tables[table] = append(f.tables[table], out)
	return out, nil
}

func testTables() config.TablesConfig {
	return config.TablesConfig{
		Products:       "products",
		Suppliers:      "suppliers",
		CostCenters:    "cost_centers",
		PurchaseOrders: "purchase_orders",
		CategoryView:   "purchase_categories_view",
		AnalysisView:   "purchase_analysis_view",
	}
}

// seedReferences loads one product, supplier and cost center with id 1.
func seedReferences(st *fakeStore) {
	st.seed("products", store.Record{"id": int64(1), "product_code": "P1", "product_name": "Paper"})
	st.seed("suppliers", store.Record{"id": int64(1), "supplier_tax_id": "20123456789", "supplier_name": "Acme"})
	st.seed("cost_centers", store.Record{"id": int64(1), "cost_center_code": "CC01", "cost_center_name": "Ops"})
}

const uploadHeader = "business_code,buyer_user,purchase_type,quantity,taxes,status,order_date,creation_date,approval_date,receipt_date,product_id,supplier_id,cost_center_id,product_code,supplier_tax_id,cost_center_code\n"

func uploadRow(code, product string) string {
	return code + ",jdoe,regular,10,1.90,1,31/01/2024 10:00:00,30/01/2024 09:00:00,31/01/2024 09:30:00,05/02/2024 14:00:00,,,," + product + ",20123456789,CC01\n"
}
