package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store"
)

func refTables() []ReferenceTable {
	return NewRegistry(testTables()).All()
}

func productOnly() []ReferenceTable {
	t, _ := NewRegistry(testTables()).Get(RefProducts)
	return []ReferenceTable{t}
}

// =============================================================================
// Resolver
// =============================================================================

func TestLoadReferences(t *testing.T) {
	st := newFakeStore()
	seedReferences(st)
	st.seed("products",
		store.Record{"id": nil, "product_code": "P2"},
		store.Record{"id": int64(3), "product_code": "  "},
		store.Record{"id": "4", "product_code": " P4 "},
	)

	sets, err := LoadReferences(context.Background(), st, refTables())
	require.NoError(t, err)
	require.Len(t, sets, 3)

	var products ReferenceSet
	for _, s := range sets {
		if s.Table.Key == RefProducts {
			products = s
		}
	}
	assert.Equal(t, []Entity{{ID: 1, Key: "P1"}, {ID: 4, Key: "P4"}}, products.Entities)
}

func TestLoadReferences_FetchError(t *testing.T) {
	st := newFakeStore()
	st.fetchErr = errors.New("postgrest GET products: status 500: boom")

	_, err := LoadReferences(context.Background(), st, refTables())
	assert.ErrorContains(t, err, "status 500: boom")
}

func TestResolver_LastDuplicateWins(t *testing.T) {
	r := BuildResolver([]ReferenceSet{{
		Table:    productOnly()[0],
		Entities: []Entity{{ID: 1, Key: "P1"}, {ID: 7, Key: "P1"}},
	}})

	id, ok := r.Lookup(RefProducts, "P1")
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, 1, r.Size(RefProducts))
}

func TestResolver_MissIsNotAnError(t *testing.T) {
	r := BuildResolver(nil)
	_, ok := r.Lookup(RefProducts, "P1")
	assert.False(t, ok)
	_, ok = r.Lookup("unknown", "")
	assert.False(t, ok)
}

// =============================================================================
// Mapper
// =============================================================================

func TestMapFields_ProductScenario(t *testing.T) {
	r := BuildResolver([]ReferenceSet{{Table: productOnly()[0], Entities: []Entity{{ID: 1, Key: "P1"}}}})

	t.Run("known code resolves without warning", func(t *testing.T) {
		f := frame.FromRows([]string{"product_code"}, [][]string{{"P1"}})
		out, report := MapFields(f, productOnly(), r)

		assert.Equal(t, int64(1), out.Value(ColProductID, 0))
		assert.True(t, report.Resolved())
		assert.Equal(t, MappingConfirmation, report.Confirmation)
	})

	t.Run("unknown code is null with one product warning", func(t *testing.T) {
		f := frame.FromRows([]string{"product_code"}, [][]string{{"P9"}, {"P1"}, {"P8"}})
		out, report := MapFields(f, productOnly(), r)

		assert.Nil(t, out.Value(ColProductID, 0))
		assert.Equal(t, int64(1), out.Value(ColProductID, 1))
		assert.Nil(t, out.Value(ColProductID, 2))
		require.Len(t, report.Warnings, 1, "one aggregate warning per relationship")
		assert.Equal(t, "product", report.Warnings[0].Relation)
		assert.Equal(t, 2, report.Warnings[0].Missing)
		assert.Empty(t, report.Confirmation)
	})
}

func TestMapFields_FallsBackToUploadedIDs(t *testing.T) {
	r := BuildResolver([]ReferenceSet{{Table: productOnly()[0], Entities: []Entity{{ID: 1, Key: "P1"}}}})
	f := frame.FromRows([]string{ColProductID}, [][]string{{"1"}, {"2"}, {""}})

	out, report := MapFields(f, productOnly(), r)

	assert.Equal(t, int64(1), out.Value(ColProductID, 0))
	assert.Nil(t, out.Value(ColProductID, 1))
	assert.Nil(t, out.Value(ColProductID, 2))
	assert.Equal(t, frame.KindInteger, out.Column(ColProductID).Kind)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, 2, report.Warnings[0].Missing)
}

func TestMapFields_DoesNotModifyInput(t *testing.T) {
	r := BuildResolver(nil)
	f := frame.FromRows([]string{"product_code"}, [][]string{{"P1"}})

	MapFields(f, productOnly(), r)
	assert.False(t, f.Has(ColProductID))
}

// =============================================================================
// Properties
// =============================================================================

func TestResolverMapperProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	tables := refTables()
	codes := gen.SliceOf(gen.IntRange(0, 9))

	// keys are "K0".."K9"; reference sets hold a random subset
	build := func(known []int) *Resolver {
		var sets []ReferenceSet
		for _, tbl := range tables {
			set := ReferenceSet{Table: tbl}
			for _, k := range known {
				set.Entities = append(set.Entities, Entity{ID: int64(k + 100), Key: fmt.Sprintf("K%d", k)})
			}
			sets = append(sets, set)
		}
		return BuildResolver(sets)
	}
	upload := func(rows []int) *frame.Frame {
		records := make([][]string, len(rows))
		for i, k := range rows {
			key := fmt.Sprintf("K%d", k)
			records[i] = []string{key, key, key}
		}
		return frame.FromRows([]string{"product_code", "supplier_tax_id", "cost_center_code"}, records)
	}

	properties.Property("all keys known gives non-null ids and no warnings", prop.ForAll(
		func(rows []int) bool {
			all := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
			out, report := MapFields(upload(rows), tables, build(all))
			if !report.Resolved() {
				return false
			}
			for _, tbl := range tables {
				for i, k := range rows {
					if out.Value(tbl.TargetColumn, i) != int64(k+100) {
						return false
					}
				}
			}
			return true
		},
		codes,
	))

	properties.Property("warnings name exactly the relationships that miss", prop.ForAll(
		func(rows, known []int) bool {
			knownSet := make(map[int]bool)
			for _, k := range known {
				knownSet[k] = true
			}
			misses := false
			for _, k := range rows {
				if !knownSet[k] {
					misses = true
				}
			}

			_, report := MapFields(upload(rows), tables, build(known))
			if !misses {
				return report.Resolved() && report.Confirmation == MappingConfirmation
			}
			// every table holds the same keys, so all three miss together
			return len(report.Warnings) == len(tables) && report.Confirmation == ""
		},
		codes,
		codes,
	))

	properties.Property("mapping is idempotent", prop.ForAll(
		func(rows, known []int) bool {
			r := build(known)
			f := upload(rows)
			out1, rep1 := MapFields(f, tables, r)
			out2, rep2 := MapFields(f, tables, r)
			return reflect.DeepEqual(out1.Records(), out2.Records()) && reflect.DeepEqual(rep1, rep2)
		},
		codes,
		codes,
	))

	properties.TestingRun(t)
}
