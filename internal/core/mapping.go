package core

import (
	"fmt"

	"github.com/JonMunkholm/procure/internal/frame"
)

// MappingConfirmation is reported when every relationship resolved.
const MappingConfirmation = "All reference fields were mapped successfully."

// MappingWarning reports one relationship with at least one unresolved row.
type MappingWarning struct {
	Relation string `json:"relation"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	Missing  int    `json:"missing"`
	Message  string `json:"message"`
}

// MappingReport is the outcome of a mapping pass: either warnings or a
// single confirmation.
type MappingReport struct {
	Warnings     []MappingWarning `json:"warnings,omitempty"`
	Confirmation string           `json:"confirmation,omitempty"`
}

// Resolved reports whether every relationship resolved on every row.
func (r MappingReport) Resolved() bool {
	return len(r.Warnings) == 0
}

// MapFields returns a copy of f with one nullable integer surrogate column
// per reference table. Each row's id comes from its natural key column when
// the upload has one; otherwise the uploaded id itself is kept if it exists
// in the reference table. A null id is a miss. The input frame is never
// modified.
func MapFields(f *frame.Frame, tables []ReferenceTable, r *Resolver) (*frame.Frame, MappingReport) {
	out := f.Clone()
	var report MappingReport

	for _, t := range tables {
		ids := make([]any, out.Len())
		missing := 0
		bySource := out.Has(t.SourceColumn)

		for i := range ids {
			if bySource {
				key := frame.AsString(out.Value(t.SourceColumn, i))
				if id, ok := r.Lookup(t.Key, key); ok && key != "" {
					ids[i] = id
				}
			} else if id, ok := frame.AsInt64(out.Value(t.TargetColumn, i)); ok && r.HasID(t.Key, id) {
				ids[i] = id
			}
			if ids[i] == nil {
				missing++
			}
		}

		// lengths always match, Set cannot fail here
		_ = out.Set(t.TargetColumn, frame.KindInteger, ids)

		if missing > 0 {
			column := t.TargetColumn
			if bySource {
				column = t.SourceColumn
			}
			report.Warnings = append(report.Warnings, MappingWarning{
				Relation: t.Relation,
				Table:    t.Table,
				Column:   t.TargetColumn,
				Missing:  missing,
				Message: fmt.Sprintf("Some %s references could not be matched: %d of %d rows have a %s not found in %s.",
					t.Relation, missing, out.Len(), column, t.Table),
			})
		}
	}

	if report.Resolved() {
		report.Confirmation = MappingConfirmation
	}
	return out, report
}
