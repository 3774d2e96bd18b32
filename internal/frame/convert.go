package frame

// convert.go turns spreadsheet text and decoded store JSON into typed values.
//
// Uploaded cells carry the usual noise: currency symbols and thousands
// separators in numbers, Excel formula prefixes (="value"), several date
// layouts. The Parse* functions clean that up; the Coerce* functions apply
// them to a whole column and fail on the first bad row.

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StrictTimestampLayout is the only layout accepted by ParseStrictTimestamp.
const StrictTimestampLayout = "02/01/2006 15:04:05"

// numericRegex validates that a string is a numeric literal after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Timestamp layouts tried by ParseTimestamp, in order. Slash and dash dates
// are read day-first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
}

var (
	ErrEmptyValue   = errors.New("empty value")
	ErrInvalidValue = errors.New("invalid value")
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, an Excel formula prefix (="...") and surrounding
// quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParseDecimal parses a numeric cell. It accepts currency symbols, thousands
// separators and accounting negatives "(12.50)".
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyValue
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
	}
	return d, nil
}

// ParseInteger parses an integer cell. A decimal literal with no fractional
// part ("12.0") is accepted.
func ParseInteger(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyValue
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := ParseDecimal(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, s)
	}
	if !fitsInt64(d) {
		return 0, fmt.Errorf("%w: %q is out of integer range", ErrInvalidValue, s)
	}
	return d.IntPart(), nil
}

// fitsInt64 reports whether d is a whole number that int64 can hold.
func fitsInt64(d decimal.Decimal) bool {
	return d.IsInteger() && d.BigInt().IsInt64()
}

// ParseTimestamp parses a date or date-time cell trying the known layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmptyValue
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a recognised date", ErrInvalidValue, s)
}

// ParseStrictTimestamp parses s against StrictTimestampLayout only.
func ParseStrictTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(StrictTimestampLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q does not match %s", ErrInvalidValue, s, StrictTimestampLayout)
	}
	return t, nil
}

// AsString renders any frame value as text. Nil renders as "".
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format("2006-01-02T15:04:05")
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// AsInt64 converts integer-valued frame or JSON values to int64.
func AsInt64(v any) (int64, bool) {
	switch x := Normalize(v).(type) {
	case int64:
		return x, true
	case decimal.Decimal:
		if fitsInt64(x) {
			return x.IntPart(), true
		}
	case string:
		if n, err := ParseInteger(x); err == nil {
			return n, true
		}
	}
	return 0, false
}

// AsDecimal converts numeric values, including numeric-looking text, to a
// decimal.
func AsDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case int64:
		return decimal.NewFromInt(x), true
	case decimal.Decimal:
		return x, true
	case string:
		if d, err := ParseDecimal(x); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}

// Normalize maps decoded JSON and driver values onto the frame value set.
// JSON numbers without a fraction or exponent become int64, other numbers
// become decimals. Values outside the set are rendered as text.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil, string, int64, decimal.Decimal, time.Time, bool:
		return x
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n
			}
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
		return s
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint32:
		return int64(x)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// CoerceError reports the first value of a column that failed coercion.
type CoerceError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot convert %q: %v", e.Column, e.Row+1, e.Value, e.Err)
}

func (e *CoerceError) Unwrap() error { return e.Err }

// CoerceDecimal converts every non-null value of the column to a decimal.
func (f *Frame) CoerceDecimal(name string) error {
	return f.coerce(name, KindDecimal, func(v any) (any, error) {
		if d, ok := AsDecimal(v); ok {
			return d, nil
		}
		return nil, ErrInvalidValue
	})
}

// CoerceInteger converts every non-null value of the column to an int64.
func (f *Frame) CoerceInteger(name string) error {
	return f.coerce(name, KindInteger, func(v any) (any, error) {
		if n, ok := AsInt64(v); ok {
			return n, nil
		}
		return nil, ErrInvalidValue
	})
}

// CoerceNumeric converts the column to integers when every value is
// integral and fits an int64, and to decimals otherwise.
func (f *Frame) CoerceNumeric(name string) error {
	if err := f.CoerceDecimal(name); err != nil {
		return err
	}
	col := f.cols[name]
	for _, v := range col.Values {
		if d, ok := v.(decimal.Decimal); ok && !fitsInt64(d) {
			return nil
		}
	}
	for i, v := range col.Values {
		if d, ok := v.(decimal.Decimal); ok {
			col.Values[i] = d.IntPart()
		}
	}
	col.Kind = KindInteger
	return nil
}

// CoerceTimestamp converts every non-null value of the column to a time.
func (f *Frame) CoerceTimestamp(name string) error {
	return f.coerce(name, KindTimestamp, func(v any) (any, error) {
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return ParseTimestamp(x)
		}
		return nil, ErrInvalidValue
	})
}

func (f *Frame) coerce(name string, kind Kind, conv func(any) (any, error)) error {
	col := f.cols[name]
	if col == nil {
		return fmt.Errorf("column %q not found", name)
	}
	out := make([]any, len(col.Values))
	for i, v := range col.Values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		converted, err := conv(v)
		if err != nil {
			return &CoerceError{Column: name, Row: i, Value: AsString(v), Err: err}
		}
		out[i] = converted
	}
	col.Values = out
	col.Kind = kind
	return nil
}
