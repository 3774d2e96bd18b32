// Package stats computes the descriptive statistics, series and dashboard
// figures shown for stored purchase orders. Every function is a pure
// transformation of a frame.
package stats

import (
	"sort"
	"time"

	"github.com/JonMunkholm/procure/internal/frame"
)

// Column names read by the statistics.
const (
	ColStatus       = "status"
	ColPurchaseType = "purchase_type"
	ColCreationDate = "creation_date"
	ColOrderDate    = "order_date"
	ColQuantity     = "quantity"
	ColCategory     = "category"
	ColSubcategory  = "subcategory"
	ColTotalPrice   = "total_price"
)

// Filter narrows purchase orders. Empty sets and zero dates do not filter.
// From and To are whole days, both inclusive, compared against the
// creation date.
type Filter struct {
	Statuses      []string  `json:"statuses,omitempty"`
	PurchaseTypes []string  `json:"purchase_types,omitempty"`
	From          time.Time `json:"from,omitempty"`
	To            time.Time `json:"to,omitempty"`
}

// Apply returns the rows of f that pass every criterion. Rows whose creation
// date cannot be read are dropped once a date bound is set.
func (flt Filter) Apply(f *frame.Frame) *frame.Frame {
	statuses := toSet(flt.Statuses)
	types := toSet(flt.PurchaseTypes)
	from, to := day(flt.From), day(flt.To)

	return f.Filter(func(i int) bool {
		if len(statuses) > 0 && !statuses[frame.AsString(f.Value(ColStatus, i))] {
			return false
		}
		if len(types) > 0 && !types[frame.AsString(f.Value(ColPurchaseType, i))] {
			return false
		}
		if flt.From.IsZero() && flt.To.IsZero() {
			return true
		}
		t, ok := asTime(f.Value(ColCreationDate, i))
		if !ok {
			return false
		}
		d := day(t)
		if !flt.From.IsZero() && d.Before(from) {
			return false
		}
		if !flt.To.IsZero() && d.After(to) {
			return false
		}
		return true
	})
}

// Options lists the distinct values a Filter can select on.
type Options struct {
	Statuses      []string `json:"statuses"`
	PurchaseTypes []string `json:"purchase_types"`
}

func FilterOptions(f *frame.Frame) Options {
	return Options{
		Statuses:      Distinct(f, ColStatus),
		PurchaseTypes: Distinct(f, ColPurchaseType),
	}
}

// Distinct returns the sorted distinct non-null values of a column as text.
func Distinct(f *frame.Frame, column string) []string {
	col := f.Column(column)
	if col == nil {
		return []string{}
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, v := range col.Values {
		if v == nil {
			continue
		}
		s := frame.AsString(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := frame.ParseTimestamp(x)
		return t, err == nil
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
