package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/logging"
	"github.com/JonMunkholm/procure/internal/store"
)

var (
	ErrIneligibleRows = errors.New("rows have unresolved references")
	ErrWriteAborted   = errors.New("write aborted")
)

// WriteTarget is where and how purchase orders are upserted.
type WriteTarget struct {
	Table      string   // remote table
	OnConflict string   // business key column the store's uniqueness constraint covers
	Columns    []string // columns sent per row; empty sends every frame column
	Required   []string // columns that must be non-null for a row to be written
}

// WriteResult reports a write loop. On abort, Written holds every key
// already applied and FailedKey the row that stopped the loop.
type WriteResult struct {
	Attempted int       `json:"attempted"`
	Written   []string  `json:"written"`
	FailedRow int       `json:"failed_row,omitempty"` // 1-based, 0 when nothing failed
	FailedKey string    `json:"failed_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	Duration  string    `json:"duration"`
	Finished  time.Time `json:"finished"`
}

// WriteRows upserts f one row at a time in order. Every row is checked for
// eligibility before the first write. The loop then runs detached from ctx's
// cancellation until the end or the first store error; rows written before a
// failure stay written.
func WriteRows(ctx context.Context, st store.Store, target WriteTarget, f *frame.Frame) (WriteResult, error) {
	start := time.Now()
	result := WriteResult{Written: []string{}}

	if err := checkEligible(f, target.Required); err != nil {
		return result, err
	}

	columns := target.Columns
	if len(columns) == 0 {
		columns = f.Columns()
	}

	log := logging.WithFields(ctx, "table", target.Table, "rows", f.Len())
	loopCtx := context.WithoutCancel(ctx)

	for i := 0; i < f.Len(); i++ {
		key := frame.AsString(f.Value(target.OnConflict, i))
		result.Attempted++

		if _, err := st.Upsert(loopCtx, target.Table, toRecord(f, columns, i), target.OnConflict); err != nil {
			result.FailedRow = i + 1
			result.FailedKey = key
			result.Error = err.Error()
			result.Duration = time.Since(start).String()
			result.Finished = time.Now()
			log.Error("write aborted", "row", i+1, "key", key, "written", len(result.Written), "error", err)
			return result, fmt.Errorf("%w at row %d (%s=%s) after %d rows: %w",
				ErrWriteAborted, i+1, target.OnConflict, key, len(result.Written), err)
		}
		result.Written = append(result.Written, key)
	}

	result.Duration = time.Since(start).String()
	result.Finished = time.Now()
	log.Info("write completed", "written", len(result.Written), "duration", result.Duration)
	return result, nil
}

func checkEligible(f *frame.Frame, required []string) error {
	for _, name := range required {
		col := f.Column(name)
		if col == nil {
			return fmt.Errorf("%w: column %s is missing", ErrIneligibleRows, name)
		}
		for i, v := range col.Values {
			if v == nil {
				return fmt.Errorf("%w: row %d has no %s", ErrIneligibleRows, i+1, name)
			}
		}
	}
	return nil
}

// toRecord converts row i to store values: decimals as JSON-safe strings,
// timestamps without a zone, nulls kept.
func toRecord(f *frame.Frame, columns []string, i int) store.Record {
	rec := make(store.Record, len(columns))
	for _, name := range columns {
		if !f.Has(name) {
			continue
		}
		switch v := f.Value(name, i).(type) {
		case decimal.Decimal:
			rec[name] = v.String()
		case time.Time:
			rec[name] = v.Format("2006-01-02T15:04:05")
		default:
			rec[name] = v
		}
	}
	return rec
}
