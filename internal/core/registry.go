package core

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/procure/internal/config"
)

// Reference table keys.
const (
	RefProducts    = "products"
	RefSuppliers   = "suppliers"
	RefCostCenters = "cost-centers"
)

// Registry holds the reference tables by key.
type Registry struct {
	tables map[string]ReferenceTable
}

// NewRegistry registers the three reference tables under the configured
// table names.
func NewRegistry(tables config.TablesConfig) *Registry {
	r := &Registry{tables: make(map[string]ReferenceTable, 3)}
	r.Register(ReferenceTable{
		Key:              RefProducts,
		Relation:         "product",
		Table:            tables.Products,
		IDColumn:         "id",
		NaturalKeyColumn: "product_code",
		NameColumn:       "product_name",
		SourceColumn:     "product_code",
		TargetColumn:     ColProductID,
	})
	r.Register(ReferenceTable{
		Key:              RefSuppliers,
		Relation:         "supplier",
		Table:            tables.Suppliers,
		IDColumn:         "id",
		NaturalKeyColumn: "supplier_tax_id",
		NameColumn:       "supplier_name",
		SourceColumn:     "supplier_tax_id",
		TargetColumn:     ColSupplierID,
	})
	r.Register(ReferenceTable{
		Key:              RefCostCenters,
		Relation:         "cost center",
		Table:            tables.CostCenters,
		IDColumn:         "id",
		NaturalKeyColumn: "cost_center_code",
		NameColumn:       "cost_center_name",
		SourceColumn:     "cost_center_code",
		TargetColumn:     ColCostCenterID,
	})
	return r
}

// Register adds a reference table.
// Panics if a table with the same key is already registered.
func (r *Registry) Register(t ReferenceTable) {
	if _, exists := r.tables[t.Key]; exists {
		panic(fmt.Sprintf("reference table already registered: %s", t.Key))
	}
	r.tables[t.Key] = t
}

// Get returns a reference table by key.
func (r *Registry) Get(key string) (ReferenceTable, bool) {
	t, ok := r.tables[key]
	return t, ok
}

// All returns every reference table sorted by key.
func (r *Registry) All() []ReferenceTable {
	out := make([]ReferenceTable, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
