package core

// quality.go is the advisory data-quality check over stored purchase orders.
//
// Unlike upload validation it never fails: every problem becomes a line in
// the report. Decimal, integer and text checks look at the storage kind the
// column resolved to when the rows were loaded, not at the literal values,
// so a column of numeric-looking text is still reported as not decimal.
// Timestamps are checked value by value against the strict layout.

import (
	"fmt"
	"sort"
	"time"

	"github.com/JonMunkholm/procure/internal/frame"
)

// ColumnNulls is the null count of one column.
type ColumnNulls struct {
	Column string `json:"column"`
	Nulls  int    `json:"nulls"`
}

// ColumnKind pairs a column's expected and actual storage kinds.
type ColumnKind struct {
	Column   string     `json:"column"`
	Expected frame.Kind `json:"expected"`
	Actual   frame.Kind `json:"actual"`
	Present  bool       `json:"present"`
}

// RangeViolation lists the rows of a column holding out-of-range values.
// Rows are 0-based positions in the checked frame.
type RangeViolation struct {
	Column string   `json:"column"`
	Rule   string   `json:"rule"`
	Rows   []int    `json:"rows"`
	Values []string `json:"values"`
}

// QualityReport is the full advisory report.
type QualityReport struct {
	Table           string            `json:"table"`
	Rows            int               `json:"rows"`
	Nulls           []ColumnNulls     `json:"nulls"`
	Kinds           []ColumnKind      `json:"kinds"`
	TypeIssues      map[string]string `json:"type_issues"`
	OutOfRange      []RangeViolation  `json:"out_of_range"`
	NeedsAttention  bool              `json:"needs_attention"`
	Recommendations []string          `json:"recommendations,omitempty"`
}

// ValidateTypes checks every expected column present in f and returns a
// diagnostic per failing column. Absent columns are not reported.
func ValidateTypes(f *frame.Frame, expected map[string]frame.Kind) map[string]string {
	issues := make(map[string]string)
	for _, name := range sortedKeys(expected) {
		col := f.Column(name)
		if col == nil {
			continue
		}
		want := expected[name]
		if want == frame.KindTimestamp {
			if bad := strictTimestampFailures(col); bad > 0 {
				issues[name] = fmt.Sprintf("%d of %d values do not match the date format DD/MM/YYYY HH:MM:SS",
					bad, len(col.Values))
			}
			continue
		}
		if col.Kind != want {
			issues[name] = fmt.Sprintf("expected %s values, column is stored as %s", want, col.Kind)
		}
	}
	return issues
}

func strictTimestampFailures(col *frame.Column) int {
	bad := 0
	for _, v := range col.Values {
		switch x := v.(type) {
		case time.Time:
		case string:
			if _, err := frame.ParseStrictTimestamp(x); err != nil {
				bad++
			}
		default:
			bad++
		}
	}
	return bad
}

// CheckRanges flags negative quantities. Any numeric representation counts,
// whatever the column's storage kind.
func CheckRanges(f *frame.Frame) []RangeViolation {
	col := f.Column(ColQuantity)
	if col == nil {
		return nil
	}
	v := RangeViolation{Column: ColQuantity, Rule: "quantity must not be negative"}
	for i, value := range col.Values {
		if d, ok := frame.AsDecimal(value); ok && d.IsNegative() {
			v.Rows = append(v.Rows, i)
			v.Values = append(v.Values, d.String())
		}
	}
	if len(v.Rows) == 0 {
		return nil
	}
	return []RangeViolation{v}
}

// BuildQualityReport runs every check over f.
func BuildQualityReport(table string, f *frame.Frame) *QualityReport {
	expected := ExpectedKinds()
	report := &QualityReport{
		Table:      table,
		Rows:       f.Len(),
		TypeIssues: ValidateTypes(f, expected),
		OutOfRange: CheckRanges(f),
	}

	hasNulls := false
	for _, name := range f.Columns() {
		n := 0
		for _, v := range f.Column(name).Values {
			if v == nil {
				n++
			}
		}
		if n > 0 {
			hasNulls = true
		}
		report.Nulls = append(report.Nulls, ColumnNulls{Column: name, Nulls: n})
	}

	for _, spec := range PurchaseOrderColumns {
		ck := ColumnKind{Column: spec.Name, Expected: spec.Expected}
		if col := f.Column(spec.Name); col != nil {
			ck.Actual = col.Kind
			ck.Present = true
		}
		report.Kinds = append(report.Kinds, ck)
	}

	if hasNulls {
		report.Recommendations = append(report.Recommendations, "Fill in or remove rows with missing values.")
	}
	if len(report.TypeIssues) > 0 {
		report.Recommendations = append(report.Recommendations, "Correct the columns whose values do not match the expected type or date format.")
	}
	if len(report.OutOfRange) > 0 {
		report.Recommendations = append(report.Recommendations, "Review purchase orders with negative quantities.")
	}
	report.NeedsAttention = len(report.Recommendations) > 0
	return report
}

// Sheets renders the report as workbook sheets for export.
func (r *QualityReport) Sheets(data *frame.Frame) []frame.Sheet {
	nulls := frame.New()
	names := make([]any, len(r.Nulls))
	counts := make([]any, len(r.Nulls))
	for i, n := range r.Nulls {
		names[i], counts[i] = n.Column, int64(n.Nulls)
	}
	_ = nulls.Set("column", frame.KindText, names)
	_ = nulls.Set("nulls", frame.KindInteger, counts)

	kinds := frame.New()
	cols := make([]any, len(r.Kinds))
	want := make([]any, len(r.Kinds))
	got := make([]any, len(r.Kinds))
	issue := make([]any, len(r.Kinds))
	for i, k := range r.Kinds {
		cols[i], want[i] = k.Column, k.Expected.String()
		if k.Present {
			got[i] = k.Actual.String()
		}
		if msg, ok := r.TypeIssues[k.Column]; ok {
			issue[i] = msg
		}
	}
	_ = kinds.Set("column", frame.KindText, cols)
	_ = kinds.Set("expected", frame.KindText, want)
	_ = kinds.Set("actual", frame.KindText, got)
	_ = kinds.Set("issue", frame.KindText, issue)

	sheets := []frame.Sheet{{Name: "nulls", Frame: nulls}, {Name: "types", Frame: kinds}}
	if data != nil {
		flagged := make(map[int]bool)
		for _, v := range r.OutOfRange {
			for _, row := range v.Rows {
				flagged[row] = true
			}
		}
		sheets = append(sheets, frame.Sheet{Name: "out_of_range", Frame: data.Filter(func(i int) bool { return flagged[i] })})
	}
	return sheets
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
