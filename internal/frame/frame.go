// Package frame provides a small column-oriented record set used to carry
// uploaded spreadsheets and fetched store rows through the ingestion pipeline.
//
// Every column records the storage Kind it resolved to when the frame was
// built or the column was last coerced. Values are one of nil, string, int64,
// decimal.Decimal, time.Time or bool.
package frame

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Column is a named, typed vector of values.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	names []string
	cols  map[string]*Column
	rows  int
}

// New returns an empty frame with the given text columns.
func New(columns ...string) *Frame {
	f := &Frame{cols: make(map[string]*Column, len(columns))}
	for _, name := range columns {
		f.names = append(f.names, name)
		f.cols[name] = &Column{Name: name, Kind: KindNull}
	}
	return f
}

// FromRows builds a frame of text columns from a header and string rows.
// Empty cells become nil. Short rows are padded with nil.
func FromRows(header []string, rows [][]string) *Frame {
	f := New(header...)
	f.rows = len(rows)
	for i, name := range header {
		values := make([]any, len(rows))
		for r, row := range rows {
			if i < len(row) && row[i] != "" {
				values[r] = row[i]
			}
		}
		col := f.cols[name]
		col.Values = values
		col.Kind = InferKind(values)
	}
	return f
}

// FromRecords builds a frame from decoded store records. Columns are the
// union of record keys in sorted order; each column's kind is inferred once
// from the normalized values.
func FromRecords(records []map[string]any) *Frame {
	seen := make(map[string]struct{})
	var names []string
	for _, rec := range records {
		for k := range rec {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	f := New(names...)
	f.rows = len(records)
	for _, name := range names {
		values := make([]any, len(records))
		for r, rec := range records {
			values[r] = Normalize(rec[name])
		}
		kind := InferKind(values)
		if kind == KindDecimal {
			values = widenToDecimal(values)
		}
		col := f.cols[name]
		col.Values = values
		col.Kind = kind
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return f.rows
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the named column or nil.
func (f *Frame) Column(name string) *Column {
	return f.cols[name]
}

// Value returns the value at row i of the named column, or nil when the
// column is absent.
func (f *Frame) Value(name string, i int) any {
	col := f.cols[name]
	if col == nil || i < 0 || i >= len(col.Values) {
		return nil
	}
	return col.Values[i]
}

// Set replaces or appends a column. The values slice must match the frame's
// row count unless the frame has no columns yet.
func (f *Frame) Set(name string, kind Kind, values []any) error {
	if len(f.names) > 0 && len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	if len(f.names) == 0 {
		f.rows = len(values)
	}
	if col, ok := f.cols[name]; ok {
		col.Kind = kind
		col.Values = values
		return nil
	}
	f.names = append(f.names, name)
	f.cols[name] = &Column{Name: name, Kind: kind, Values: values}
	return nil
}

// Row returns row i as a map keyed by column name.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.names))
	for _, name := range f.names {
		row[name] = f.cols[name].Values[i]
	}
	return row
}

// Records returns every row as a map.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}

// Head returns a copy of the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.rows {
		n = f.rows
	}
	if n < 0 {
		n = 0
	}
	return f.Filter(func(i int) bool { return i < n })
}

// Filter returns a copy holding only the rows for which keep returns true.
// Column kinds are carried over unchanged.
func (f *Frame) Filter(keep func(i int) bool) *Frame {
	var idx []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := &Frame{
		names: f.Columns(),
		cols:  make(map[string]*Column, len(f.names)),
		rows:  len(idx),
	}
	for _, name := range f.names {
		src := f.cols[name]
		values := make([]any, len(idx))
		for j, i := range idx {
			values[j] = src.Values[i]
		}
		out.cols[name] = &Column{Name: name, Kind: src.Kind, Values: values}
	}
	return out
}

// Clone returns a deep copy of the frame's column slices.
func (f *Frame) Clone() *Frame {
	return f.Filter(func(int) bool { return true })
}

// InferKind resolves the storage kind of a set of normalized values.
// Integers mixed with decimals resolve to decimal; any other mix is mixed.
func InferKind(values []any) Kind {
	kind := KindNull
	for _, v := range values {
		k := kindOf(v)
		switch {
		case k == KindNull, k == kind:
		case kind == KindNull:
			kind = k
		case (kind == KindInteger && k == KindDecimal) || (kind == KindDecimal && k == KindInteger):
			kind = KindDecimal
		default:
			return KindMixed
		}
	}
	return kind
}

func kindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindText
	case int64:
		return KindInteger
	case decimal.Decimal:
		return KindDecimal
	case time.Time:
		return KindTimestamp
	case bool:
		return KindBool
	default:
		return KindMixed
	}
}

func widenToDecimal(values []any) []any {
	for i, v := range values {
		if n, ok := v.(int64); ok {
			values[i] = decimal.NewFromInt(n)
		}
	}
	return values
}
