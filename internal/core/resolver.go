package core

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/procure/internal/frame"
	"github.com/JonMunkholm/procure/internal/store"
)

// Entity is one reference row reduced to its keys.
type Entity struct {
	ID  int64
	Key string
}

// ReferenceSet is the full content of one reference table.
type ReferenceSet struct {
	Table    ReferenceTable
	Entities []Entity
}

// LoadReferences fetches every reference table once, concurrently. Rows
// without a usable id or natural key are skipped. Sets come back in the
// order of tables.
func LoadReferences(ctx context.Context, st store.Store, tables []ReferenceTable) ([]ReferenceSet, error) {
	sets := make([]ReferenceSet, len(tables))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tables {
		i, t := i, t
		g.Go(func() error {
			rows, err := st.Fetch(gctx, t.Table)
			if err != nil {
				return fmt.Errorf("load %s references: %w", t.Relation, err)
			}
			sets[i] = referenceSet(t, rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

func referenceSet(t ReferenceTable, rows []store.Record) ReferenceSet {
	set := ReferenceSet{Table: t, Entities: make([]Entity, 0, len(rows))}
	for _, row := range rows {
		id, ok := frame.AsInt64(row[t.IDColumn])
		if !ok {
			continue
		}
		key := normalizeKey(frame.AsString(frame.Normalize(row[t.NaturalKeyColumn])))
		if key == "" {
			continue
		}
		set.Entities = append(set.Entities, Entity{ID: id, Key: key})
	}
	return set
}

// Resolver maps natural keys to surrogate ids per reference table. It is
// immutable once built.
type Resolver struct {
	byKey map[string]map[string]int64
	ids   map[string]map[int64]struct{}
}

// BuildResolver indexes the reference sets. When a natural key repeats the
// last entity seen wins.
func BuildResolver(sets []ReferenceSet) *Resolver {
	r := &Resolver{
		byKey: make(map[string]map[string]int64, len(sets)),
		ids:   make(map[string]map[int64]struct{}, len(sets)),
	}
	for _, set := range sets {
		keys := make(map[string]int64, len(set.Entities))
		ids := make(map[int64]struct{}, len(set.Entities))
		for _, e := range set.Entities {
			keys[normalizeKey(e.Key)] = e.ID
			ids[e.ID] = struct{}{}
		}
		r.byKey[set.Table.Key] = keys
		r.ids[set.Table.Key] = ids
	}
	return r
}

// Lookup returns the surrogate id for a natural key. An unknown table or key
// is a miss.
func (r *Resolver) Lookup(table, naturalKey string) (int64, bool) {
	id, ok := r.byKey[table][normalizeKey(naturalKey)]
	return id, ok
}

// HasID reports whether id exists in the table.
func (r *Resolver) HasID(table string, id int64) bool {
	_, ok := r.ids[table][id]
	return ok
}

// Size returns the number of distinct natural keys indexed for table.
func (r *Resolver) Size(table string) int {
	return len(r.byKey[table])
}

func normalizeKey(s string) string {
	return strings.TrimSpace(s)
}
