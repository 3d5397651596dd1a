package memory

import (
	"sync"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

var (
	_ vtab.Table      = (*table)(nil)
	_ vtab.Connection = (*connection)(nil)
)

// table is one registered virtual table instance (spec §4.6). mu
// serializes access to the committed chain head and to acquiring the
// single pending-writer slot — "one writer at a time per table" (spec §5
// "Shared-resource policy").
type table struct {
	schema *sql.TableSchema
	pkCmp  Comparator
	idxCmp map[string]Comparator

	mu        sync.Mutex
	committed *BaseLayer
	writer    *connection // non-nil while some connection holds the pending layer
}

func newTable(schema *sql.TableSchema) *table {
	t := &table{schema: schema, pkCmp: ColumnComparator(schema.PrimaryKey.Columns), idxCmp: make(map[string]Comparator)}
	indexes := make(map[string]indexTree, len(schema.Indexes))
	for _, idx := range schema.Indexes {
		t.idxCmp[idx.Name] = ColumnComparator(idx.Columns)
		indexes[idx.Name] = NewTree(t.idxCmp[idx.Name])
	}
	t.committed = newBaseLayer(nil, snapshot{primary: NewTree(t.pkCmp), indexes: indexes})
	return t
}

func (t *table) Schema() *sql.TableSchema { return t.schema }

func (t *table) OpenConnection(ctx *sql.Context) (vtab.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &connection{id: sql.NewConnectionID(), table: t, readLayer: t.committed}, nil
}

func (t *table) pkColumns() []sql.IndexColumn { return t.schema.PrimaryKey.Columns }

var _ vtab.TableIndexer = (*table)(nil)

// AddIndex backfills a new secondary index from every row already
// committed (spec §4.8 "indexesToCreate"), then appends it to the live
// schema so later scans (Module.BestIndex) see it. Schemas are otherwise
// immutable after registration (spec §5); this in-place append is the one
// exception, since a vtab.Table instance holds onto its original *schema
// pointer for its whole lifetime and there is no mechanism to swap it out
// from under live connections.
func (t *table) AddIndex(idx sql.Index) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer != nil {
		return sql.ErrMisuse.New("cannot alter indexes on " + t.schema.Name + " while a write is pending")
	}
	cmp := ColumnComparator(idx.Columns)
	tree := NewTree(cmp)
	it := t.committed.primary.Ascend(nil, nil)
	for {
		e, ok := it.Next()
		if !ok {
			break
		}
		row := e.Val.(sql.Row)
		key := extractKey(idx.Columns, row)
		tree = addPK(tree, key, Key(e.Key))
	}
	snap := t.committed.snapshot.clone()
	snap.indexes[idx.Name] = tree
	t.committed = newBaseLayer(t.committed, snap)
	t.idxCmp[idx.Name] = cmp
	t.schema.Indexes = append(t.schema.Indexes, idx)
	return nil
}

// DropIndex discards idx's tree and removes it from the live schema (spec
// §4.8 "indexesToDrop").
func (t *table) DropIndex(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writer != nil {
		return sql.ErrMisuse.New("cannot alter indexes on " + t.schema.Name + " while a write is pending")
	}
	snap := t.committed.snapshot.clone()
	delete(snap.indexes, name)
	t.committed = newBaseLayer(t.committed, snap)
	delete(t.idxCmp, name)
	kept := t.schema.Indexes[:0:0]
	for _, idx := range t.schema.Indexes {
		if idx.Name != name {
			kept = append(kept, idx)
		}
	}
	t.schema.Indexes = kept
	return nil
}
