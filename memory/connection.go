package memory

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// connection is one consumer session's handle to a table (spec §4.5, §4.6
// "Connection state"). It implements both sql.TxConnection (the narrow
// transaction surface sql.Context holds without an import cycle) and
// vtab.Connection (OpenCursor/Update).
type connection struct {
	id    sql.ConnectionID
	table *table

	// readLayer is the committed-chain head this connection's reads are
	// stable against for the lifetime of the current statement (spec §5
	// "Readers see their readLayer..."). Refreshed to the live chain head
	// whenever a cursor opens with no pending write layer of its own.
	readLayer *BaseLayer

	pending    *transactionLayer
	savepoints map[int]savepointSnapshot
}

func (c *connection) ID() sql.ConnectionID { return c.id }

func (c *connection) Begin(ctx *sql.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	if c.pending != nil {
		return nil
	}
	if c.table.writer != nil && c.table.writer != c {
		return sql.ErrMisuse.New("table " + c.table.schema.Name + " already has a pending writer")
	}
	c.table.writer = c
	c.pending = newTransactionLayer(c.table.committed)
	c.readLayer = c.table.committed
	c.savepoints = make(map[int]savepointSnapshot)
	return nil
}

func (c *connection) begun() bool { return c.pending != nil }

func (c *connection) ensureBegun(ctx *sql.Context) error {
	if c.begun() {
		return nil
	}
	return c.Begin(ctx)
}

func (c *connection) Commit(ctx *sql.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	c.table.committed = newBaseLayer(c.pending.parent, c.pending.snapshot)
	collapse(c.table.committed)
	c.pending = nil
	c.savepoints = nil
	if c.table.writer == c {
		c.table.writer = nil
	}
	return nil
}

func (c *connection) Rollback(ctx *sql.Context) error {
	c.table.mu.Lock()
	defer c.table.mu.Unlock()
	c.pending = nil
	c.savepoints = nil
	if c.table.writer == c {
		c.table.writer = nil
	}
	return nil
}

// CreateSavepoint snapshots the pending layer's current tree roots (spec
// §4.6). Because those trees are persistent, capturing the roots here is
// the entire cost — no traversal of the data is needed to make it safe to
// keep writing against c.pending afterward.
func (c *connection) CreateSavepoint(ctx *sql.Context, index int) error {
	if err := c.ensureBegun(ctx); err != nil {
		return err
	}
	c.savepoints[index] = savepointSnapshot{parent: c.pending.parent, snap: c.pending.snapshot.clone()}
	return nil
}

func (c *connection) ReleaseSavepoint(ctx *sql.Context, index int) error {
	delete(c.savepoints, index)
	return nil
}

func (c *connection) RollbackToSavepoint(ctx *sql.Context, index int) error {
	snap, ok := c.savepoints[index]
	if !ok {
		return sql.ErrMisuse.New("no such savepoint")
	}
	c.pending.parent = snap.parent
	c.pending.snapshot = snap.snap.clone()
	for i := range c.savepoints {
		if i >= index {
			delete(c.savepoints, i)
		}
	}
	return nil
}

// effective returns the snapshot reads and writes should see right now:
// the pending layer's own view if this connection is writing, otherwise a
// freshly refreshed read of the committed chain head.
func (c *connection) effective() snapshot {
	if c.pending != nil {
		return c.pending.snapshot
	}
	c.table.mu.Lock()
	c.readLayer = c.table.committed
	c.table.mu.Unlock()
	return c.readLayer.snapshot
}

func (c *connection) OpenCursor(ctx *sql.Context) (vtab.Cursor, error) {
	return &cursor{conn: c, schema: c.table.schema, pkCols: c.table.pkColumns()}, nil
}

// Update applies one INSERT/UPDATE/DELETE to the pending layer, implicitly
// beginning one if the caller never called Begin — autocommit DML against
// a bare connection, which sql/program's mutation emitters rely on (spec
// §4.6 "Primary write"). The returned value is the single leading
// primary-key column (the common case this protocol targets — an
// auto-increment/rowid-style key); composite primary keys still enforce
// uniqueness correctly but are reported back only by their first column,
// a simplification recorded in DESIGN.md since callers only test the
// result for NULL (an IGNORE-dropped write), never its exact value.
func (c *connection) Update(ctx *sql.Context, op sql.RowOp, flatRow sql.FlatRow, policy vtab.ConflictPolicy) (sql.Value, error) {
	if err := c.ensureBegun(ctx); err != nil {
		return sql.Null, err
	}
	pkCols := c.table.pkColumns()
	snap := c.pending.snapshot

	switch op {
	case sql.RowOpInsert:
		newRow := flatRow.New()
		pk := extractKey(pkCols, newRow)
		if _, exists := snap.primary.Get(pk); exists {
			switch policy {
			case vtab.ConflictIgnore:
				return sql.Null, nil
			case vtab.ConflictReplace:
				oldRow, _ := snap.primary.Get(pk)
				snap = removeFromIndexes(snap, c.table.schema, pk, oldRow.(sql.Row))
			default:
				return sql.Null, sql.ErrPrimaryKeyExists.New(keysString(pk), c.table.schema.Name)
			}
		}
		snap.primary = snap.primary.Insert(pk, newRow.Clone())
		snap = addToIndexes(snap, c.table.schema, pk, newRow)
		c.pending.snapshot = snap
		return pkValue(pk), nil

	case sql.RowOpUpdate:
		oldRow := flatRow.Old()
		newRow := flatRow.New()
		oldPK := extractKey(pkCols, oldRow)
		newPK := extractKey(pkCols, newRow)
		if !keysEqual(oldPK, newPK) {
			if _, exists := snap.primary.Get(newPK); exists {
				return sql.Null, sql.ErrPrimaryKeyExists.New(keysString(newPK), c.table.schema.Name)
			}
			snap.primary, _ = snap.primary.Delete(oldPK)
		}
		snap.primary = snap.primary.Insert(newPK, newRow.Clone())
		for _, idx := range c.table.schema.Indexes {
			oldIdxKey := extractKey(idx.Columns, oldRow)
			newIdxKey := extractKey(idx.Columns, newRow)
			snap.indexes[idx.Name] = removePK(snap.indexes[idx.Name], oldIdxKey, oldPK)
			snap.indexes[idx.Name] = addPK(snap.indexes[idx.Name], newIdxKey, newPK)
		}
		c.pending.snapshot = snap
		return pkValue(newPK), nil

	case sql.RowOpDelete:
		oldRow := flatRow.Old()
		pk := extractKey(pkCols, oldRow)
		snap.primary, _ = snap.primary.Delete(pk)
		snap = removeFromIndexes(snap, c.table.schema, pk, oldRow)
		c.pending.snapshot = snap
		return pkValue(pk), nil
	}
	return sql.Null, sql.ErrInternal.New("unrecognized row operation")
}

func pkValue(k Key) sql.Value {
	if len(k) == 0 {
		return sql.IntValue(1)
	}
	return k[0]
}

func extractKey(cols []sql.IndexColumn, row sql.Row) Key {
	key := make(Key, len(cols))
	for i, c := range cols {
		key[i] = row[c.ColumnIndex]
	}
	return key
}

func keysEqual(a, b Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sql.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func keysString(k Key) string {
	s := ""
	for i, v := range k {
		if i > 0 {
			s += ","
		}
		s += v.String()
	}
	return s
}

func addPK(t indexTree, key Key, pk Key) indexTree {
	var list []Key
	if v, ok := t.Get(key); ok {
		list = v.([]Key)
	}
	list = append(list, pk)
	return t.Insert(key, list)
}

func removePK(t indexTree, key Key, pk Key) indexTree {
	v, ok := t.Get(key)
	if !ok {
		return t
	}
	list := v.([]Key)
	out := list[:0:0]
	for _, k := range list {
		if !keysEqual(k, pk) {
			out = append(out, k)
		}
	}
	if len(out) == 0 {
		t, _ = t.Delete(key)
		return t
	}
	return t.Insert(key, out)
}

func addToIndexes(snap snapshot, schema *sql.TableSchema, pk Key, row sql.Row) snapshot {
	for _, idx := range schema.Indexes {
		key := extractKey(idx.Columns, row)
		snap.indexes[idx.Name] = addPK(snap.indexes[idx.Name], key, pk)
	}
	return snap
}

func removeFromIndexes(snap snapshot, schema *sql.TableSchema, pk Key, row sql.Row) snapshot {
	for _, idx := range schema.Indexes {
		key := extractKey(idx.Columns, row)
		snap.indexes[idx.Name] = removePK(snap.indexes[idx.Name], key, pk)
	}
	snap.primary, _ = snap.primary.Delete(pk)
	return snap
}
