package core

// validation.go checks an uploaded purchase-order file before mapping.
//
// Two gates run in order:
//  1. Header validation: every required column is present. A missing column
//     rejects the upload outright.
//  2. Type coercion: numeric and timestamp columns are converted. The first
//     cell that fails conversion rejects the upload, naming column and row.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/procure/internal/frame"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrCoercion       = errors.New("column type conversion failed")
	ErrNoRows         = errors.New("file has no data rows")
)

// MissingColumnsError lists every required column absent from an upload.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// ValidateColumns returns a *MissingColumnsError naming every required
// column f lacks, in required order.
func ValidateColumns(f *frame.Frame, required []string) error {
	var missing []string
	for _, name := range required {
		if !f.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing}
	}
	return nil
}

// CoerceTypes converts f's columns in place according to specs. Columns
// absent from f are skipped.
func CoerceTypes(f *frame.Frame, specs []ColumnSpec) error {
	for _, spec := range specs {
		if !f.Has(spec.Name) {
			continue
		}
		var err error
		switch spec.Coerce {
		case CoerceNumeric:
			err = f.CoerceNumeric(spec.Name)
		case CoerceTimestamp:
			err = f.CoerceTimestamp(spec.Name)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCoercion, err)
		}
	}
	return nil
}
