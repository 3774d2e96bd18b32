package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/procure/internal/store/sqlgen"
)

func TestDecodeRow_KeepsNumberLiterals(t *testing.T) {
	rec, err := decodeRow([]byte(`{"id": 4, "quantity": 2.50, "order_date": "2024-01-31T10:00:00"}`))
	require.NoError(t, err)

	assert.Equal(t, json.Number("4"), rec["id"])
	assert.Equal(t, json.Number("2.50"), rec["quantity"])
	assert.Equal(t, "2024-01-31T10:00:00", rec["order_date"])
}

func TestDecodeRow_Invalid(t *testing.T) {
	_, err := decodeRow([]byte(`not json`))
	assert.Error(t, err)
}

func TestFetch_RejectsBadTableBeforeQuerying(t *testing.T) {
	// a nil pool is never touched when the identifier is rejected
	s := &Store{}
	_, err := s.Fetch(context.Background(), "orders;drop table x")
	assert.ErrorIs(t, err, sqlgen.ErrInvalidIdent)

	_, err = s.Upsert(context.Background(), "orders", map[string]any{"bad col": 1}, "")
	assert.ErrorIs(t, err, sqlgen.ErrInvalidIdent)
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), Options{URL: "postgres://%zz"})
	assert.ErrorContains(t, err, "parse database URL")
}
