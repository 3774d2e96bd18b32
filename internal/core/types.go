package core

import (
	"github.com/JonMunkholm/procure/internal/frame"
)

// Coercion is how an uploaded column is converted before mapping.
type Coercion int

const (
	CoerceNone Coercion = iota
	CoerceNumeric
	CoerceTimestamp
)

// ColumnSpec describes one purchase-order column.
type ColumnSpec struct {
	Name     string     // column header, lowercase
	Expected frame.Kind // storage kind the quality check expects in the stored table
	Coerce   Coercion   // conversion applied to uploaded text
	Required bool       // upload is rejected without it
}

// Purchase-order column names.
const (
	ColBusinessCode = "business_code"
	ColBuyerUser    = "buyer_user"
	ColPurchaseType = "purchase_type"
	ColQuantity     = "quantity"
	ColTaxes        = "taxes"
	ColStatus       = "status"
	ColOrderDate    = "order_date"
	ColCreationDate = "creation_date"
	ColApprovalDate = "approval_date"
	ColReceiptDate  = "receipt_date"
	ColProductID    = "product_id"
	ColSupplierID   = "supplier_id"
	ColCostCenterID = "cost_center_id"
)

// PurchaseOrderColumns is the declared layout of an uploaded purchase order.
var PurchaseOrderColumns = []ColumnSpec{
	{Name: ColBusinessCode, Expected: frame.KindText, Required: true},
	{Name: ColBuyerUser, Expected: frame.KindText, Required: true},
	{Name: ColPurchaseType, Expected: frame.KindText, Required: true},
	{Name: ColQuantity, Expected: frame.KindDecimal, Coerce: CoerceNumeric, Required: true},
	{Name: ColTaxes, Expected: frame.KindDecimal, Coerce: CoerceNumeric, Required: true},
	{Name: ColStatus, Expected: frame.KindInteger, Coerce: CoerceNumeric, Required: true},
	{Name: ColOrderDate, Expected: frame.KindTimestamp, Coerce: CoerceTimestamp, Required: true},
	{Name: ColCreationDate, Expected: frame.KindTimestamp, Coerce: CoerceTimestamp, Required: true},
	{Name: ColApprovalDate, Expected: frame.KindTimestamp, Coerce: CoerceTimestamp, Required: true},
	{Name: ColReceiptDate, Expected: frame.KindTimestamp, Coerce: CoerceTimestamp, Required: true},
	{Name: ColProductID, Expected: frame.KindInteger, Required: true},
	{Name: ColSupplierID, Expected: frame.KindInteger, Required: true},
	{Name: ColCostCenterID, Expected: frame.KindInteger, Required: true},
}

// RequiredColumns returns the names of every required purchase-order column.
func RequiredColumns() []string {
	return requiredNames(PurchaseOrderColumns)
}

// ExpectedKinds returns the column to storage kind table the quality
// validator checks stored purchase orders against.
func ExpectedKinds() map[string]frame.Kind {
	out := make(map[string]frame.Kind, len(PurchaseOrderColumns))
	for _, spec := range PurchaseOrderColumns {
		out[spec.Name] = spec.Expected
	}
	return out
}

// ReferenceTable binds a reference entity table to the purchase-order
// columns it resolves.
type ReferenceTable struct {
	Key              string // URL-facing name: products, suppliers, cost-centers
	Relation         string // singular name used in warnings: product, supplier, cost center
	Table            string // remote table name
	IDColumn         string // surrogate key column in Table
	NaturalKeyColumn string // business key column in Table
	NameColumn       string // descriptive column in Table
	SourceColumn     string // natural key column in an upload
	TargetColumn     string // surrogate key column in an upload
}
