// Package sqlgen builds the SELECT and upsert statements shared by the SQL
// store backends. Identifiers are validated, never escaped.
package sqlgen

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var (
	ErrInvalidIdent = errors.New("invalid identifier")
	ErrEmptyRecord  = errors.New("record has no columns")
)

// Placeholder renders the bind parameter for argument n (1-based).
type Placeholder func(n int) string

// Dollar renders Postgres-style $1, $2 placeholders.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question renders SQLite-style ? placeholders.
func Question(int) string { return "?" }

// Ident checks that name is a plain SQL identifier.
func Ident(name string) (string, error) {
	if !identRegex.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdent, name)
	}
	return name, nil
}

// Statement is a query and its bind arguments.
type Statement struct {
	Query string
	Args  []any
}

// Upsert builds an INSERT for rec. With a non-empty onConflict column the
// insert updates every other column of the existing row. Columns are sorted
// so statements are deterministic. returning is appended verbatim as the
// RETURNING clause.
func Upsert(table string, rec map[string]any, onConflict string, ph Placeholder, returning string) (Statement, error) {
	if _, err := Ident(table); err != nil {
		return Statement{}, err
	}
	if len(rec) == 0 {
		return Statement{}, ErrEmptyRecord
	}

	cols := make([]string, 0, len(rec))
	for col := range rec {
		if _, err := Ident(col); err != nil {
			return Statement{}, err
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		args[i] = rec[col]
		marks[i] = ph(i + 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s AS t (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	if onConflict != "" {
		if _, err := Ident(onConflict); err != nil {
			return Statement{}, err
		}
		var sets []string
		for _, col := range cols {
			if col != onConflict {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
			}
		}
		if len(sets) == 0 {
			fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", onConflict)
		} else {
			fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET %s", onConflict, strings.Join(sets, ", "))
		}
	}
	if returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(returning)
	}
	return Statement{Query: b.String(), Args: args}, nil
}

// SelectAll builds a SELECT of every column of table.
func SelectAll(table string) (string, error) {
	if _, err := Ident(table); err != nil {
		return "", err
	}
	return "SELECT * FROM " + table, nil
}
