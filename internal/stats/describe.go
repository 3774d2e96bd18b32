package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/procure/internal/frame"
)

// Summary describes one numeric column. Std is the sample standard
// deviation and is zero with fewer than two values.
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Describe summarizes every integer or decimal column of f, in column order.
// Columns with no values are skipped.
func Describe(f *frame.Frame) []Summary {
	out := []Summary{}
	for _, name := range f.Columns() {
		col := f.Column(name)
		if col.Kind != frame.KindInteger && col.Kind != frame.KindDecimal {
			continue
		}
		values := numbers(col.Values)
		if len(values) == 0 {
			continue
		}
		out = append(out, summarize(name, values))
	}
	return out
}

func summarize(name string, values []float64) Summary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	var std float64
	if len(sorted) > 1 {
		var sq float64
		for _, v := range sorted {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / (n - 1))
	}

	return Summary{
		Column: name,
		Count:  len(sorted),
		Mean:   mean,
		Std:    std,
		Min:    sorted[0],
		P25:    quantile(sorted, 0.25),
		P50:    quantile(sorted, 0.50),
		P75:    quantile(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Quantile returns the q-quantile of a numeric column. Non-numeric values
// are ignored.
func Quantile(f *frame.Frame, column string, q float64) (float64, error) {
	col := f.Column(column)
	if col == nil {
		return 0, fmt.Errorf("column %s not found", column)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile %v outside [0, 1]", q)
	}
	values := numbers(col.Values)
	if len(values) == 0 {
		return 0, fmt.Errorf("column %s has no numeric values", column)
	}
	sort.Float64s(values)
	return quantile(values, q), nil
}

func numbers(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if _, isText := v.(string); isText {
			continue
		}
		if d, ok := frame.AsDecimal(v); ok {
			out = append(out, d.InexactFloat64())
		}
	}
	return out
}

// sumDecimal adds the numeric values of a column exactly.
func sumDecimal(values []any) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		if d, ok := frame.AsDecimal(v); ok {
			total = total.Add(d)
		}
	}
	return total
}
