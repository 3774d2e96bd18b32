package stats

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/procure/internal/frame"
)

// Count is one bucket of a frequency table.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts counts the non-null values of a column, most frequent first.
// Ties are ordered by value.
func ValueCounts(f *frame.Frame, column string) []Count {
	col := f.Column(column)
	if col == nil {
		return []Count{}
	}
	counts := make(map[string]int)
	for _, v := range col.Values {
		if v != nil {
			counts[frame.AsString(v)]++
		}
	}
	out := make([]Count, 0, len(counts))
	for v, n := range counts {
		out = append(out, Count{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// MonthlyCounts counts rows per calendar month (YYYY-MM) of a date column in
// chronological order. Unreadable dates are left out.
func MonthlyCounts(f *frame.Frame, column string) []Count {
	col := f.Column(column)
	if col == nil {
		return []Count{}
	}
	counts := make(map[string]int)
	for _, v := range col.Values {
		if t, ok := asTime(v); ok {
			counts[t.Format("2006-01")]++
		}
	}
	out := make([]Count, 0, len(counts))
	for month, n := range counts {
		out = append(out, Count{Value: month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Point is the total quantity ordered on one day.
type Point struct {
	Date     string          `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
}

// DemandSeries sums quantity per order day in chronological order. Rows with
// an unreadable order date or no quantity are left out.
func DemandSeries(f *frame.Frame) []Point {
	if !f.Has(ColOrderDate) || !f.Has(ColQuantity) {
		return []Point{}
	}
	totals := make(map[string][]any)
	for i := 0; i < f.Len(); i++ {
		t, ok := asTime(f.Value(ColOrderDate, i))
		if !ok {
			continue
		}
		q := f.Value(ColQuantity, i)
		if q == nil {
			continue
		}
		key := t.Format("2006-01-02")
		totals[key] = append(totals[key], q)
	}
	out := make([]Point, 0, len(totals))
	for d, values := range totals {
		out = append(out, Point{Date: d, Quantity: sumDecimal(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// AtypicalColumn is the 0/1 flag column added by FlagAtypical.
const AtypicalColumn = "atypical"

// DefaultAtypicalQuantile marks the top 5% as atypical.
const DefaultAtypicalQuantile = 0.95

// Atypical is the outcome of FlagAtypical.
type Atypical struct {
	Column    string  `json:"column"`
	Quantile  float64 `json:"quantile"`
	Threshold float64 `json:"threshold"`
	Rows      []int   `json:"rows"`
}

// FlagAtypical marks rows whose value in column is strictly above the
// q-quantile of that column. It returns a copy of f with an integer
// AtypicalColumn. Null values are an error.
func FlagAtypical(f *frame.Frame, column string, q float64) (*frame.Frame, Atypical, error) {
	col := f.Column(column)
	if col == nil {
		return nil, Atypical{}, fmt.Errorf("column %s not found", column)
	}
	values := make([]float64, len(col.Values))
	for i, v := range col.Values {
		d, ok := frame.AsDecimal(v)
		if !ok {
			return nil, Atypical{}, fmt.Errorf("column %s row %d: not a number: %q", column, i+1, frame.AsString(v))
		}
		values[i] = d.InexactFloat64()
	}

	if q < 0 || q > 1 {
		return nil, Atypical{}, fmt.Errorf("quantile %v outside [0, 1]", q)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	threshold := quantile(sorted, q)

	result := Atypical{Column: column, Quantile: q, Threshold: threshold, Rows: []int{}}
	flags := make([]any, len(values))
	for i, v := range values {
		flags[i] = int64(0)
		if v > threshold {
			flags[i] = int64(1)
			result.Rows = append(result.Rows, i)
		}
	}

	out := f.Clone()
	if err := out.Set(AtypicalColumn, frame.KindInteger, flags); err != nil {
		return nil, Atypical{}, err
	}
	return out, result, nil
}
