package core

// maintenance.go is create-or-update for reference data: suppliers, cost
// centers and products. Each request is validated with struct tags before
// one upsert keyed by the table's natural key.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownReference = errors.New("unknown reference table")
)

// RequestError lists the fields that failed validation, keyed by JSON name,
// with the failing rule as value.
type RequestError struct {
	Fields map[string]string
}

func (e *RequestError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name, rule := range e.Fields {
		names = append(names, name+" ("+rule+")")
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, strings.Join(names, ", "))
}

func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidRequest
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// decimal.Decimal is a struct; validate it as a number so min/gt work.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ReferenceRequest is a validated create-or-update of one reference row.
type ReferenceRequest interface {
	Record() store.Record
}

type SupplierRequest struct {
	TaxID string `json:"supplier_tax_id" validate:"required,max=32"`
	Name  string `json:"supplier_name" validate:"required,min=2,max=200"`
}

func (r SupplierRequest) Record() store.Record {
	return store.Record{"supplier_tax_id": r.TaxID, "supplier_name": r.Name}
}

type CostCenterRequest struct {
	Code string `json:"cost_center_code" validate:"required,max=32"`
	Name string `json:"cost_center_name" validate:"required,min=2,max=200"`
}

func (r CostCenterRequest) Record() store.Record {
	return store.Record{"cost_center_code": r.Code, "cost_center_name": r.Name}
}

type ProductRequest struct {
	Code        string          `json:"product_code" validate:"required,max=32"`
	Name        string          `json:"product_name" validate:"required,min=2,max=200"`
	Category    string          `json:"category" validate:"required"`
	Subcategory string          `json:"subcategory" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"min=0"`
}

func (r ProductRequest) Record() store.Record {
	return store.Record{
		"product_code": r.Code,
		"product_name": r.Name,
		"category":     r.Category,
		"subcategory":  r.Subcategory,
		"unit_price":   r.UnitPrice.String(),
	}
}

// DecodeReferenceRequest reads the JSON request body for the reference
// table key.
func DecodeReferenceRequest(key string, body io.Reader) (ReferenceRequest, error) {
	var req ReferenceRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	var err error
	switch key {
	case RefSuppliers:
		var r SupplierRequest
		err = dec.Decode(&r)
		req = r
	case RefCostCenters:
		var r CostCenterRequest
		err = dec.Decode(&r)
		req = r
	case RefProducts:
		var r ProductRequest
		err = dec.Decode(&r)
		req = r
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode body: %w", ErrInvalidRequest, err)
	}
	return req, nil
}

// ValidateRequest runs the struct tags of req.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return &RequestError{Fields: fields}
}

// UpsertReference validates req and writes it to t keyed by t's natural key.
// Text fields are trimmed before validation.
func UpsertReference(ctx context.Context, st store.Store, t ReferenceTable, req ReferenceRequest) (store.Record, error) {
	req = trimRequest(req)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	rec, err := st.Upsert(ctx, t.Table, req.Record(), t.NaturalKeyColumn)
	if err != nil {
		return nil, fmt.Errorf("upsert %s %v: %w", t.Relation, req.Record()[t.NaturalKeyColumn], err)
	}
	return rec, nil
}

// ListReference returns every row of t ordered by natural key.
func ListReference(ctx context.Context, st store.Store, t ReferenceTable) ([]store.Record, error) {
	rows, err := st.Fetch(ctx, t.Table)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Table, err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return frame.AsString(rows[i][t.NaturalKeyColumn]) < frame.AsString(rows[j][t.NaturalKeyColumn])
	})
	return rows, nil
}

func trimRequest(req ReferenceRequest) ReferenceRequest {
	switch r := req.(type) {
	case SupplierRequest:
		r.TaxID, r.Name = strings.TrimSpace(r.TaxID), strings.TrimSpace(r.Name)
		return r
	case CostCenterRequest:
		r.Code, r.Name = strings.TrimSpace(r.Code), strings.TrimSpace(r.Name)
		return r
	case ProductRequest:
		r.Code, r.Name = strings.TrimSpace(r.Code), strings.TrimSpace(r.Name)
		r.Category, r.Subcategory = strings.TrimSpace(r.Category), strings.TrimSpace(r.Subcategory)
		return r
	}
	return req
}
