package program

import (
	"io"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/constraints"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/vtab"
)

// enqueueDeferred hands any deferred CHECK constraints schema declares for
// op off to ctx's queue, so they run at commit instead of being silently
// dropped by CheckImmediate (spec §4.4). A context with no queue attached
// (e.g. a bare sql.NewContext in a package-level test) simply skips this —
// deferred constraints are an opt-in refinement over CheckImmediate, not a
// replacement for it.
func enqueueDeferred(ctx *sql.Context, engine *constraints.Engine, schema *sql.TableSchema, conn vtab.Connection, op sql.RowOp, flat sql.FlatRow) {
	if ctx.Deferred == nil {
		return
	}
	for _, entry := range engine.Deferred(schema, conn.ID(), op, flat) {
		ctx.Deferred.Enqueue(entry)
	}
}

// openInsert streams Source (already reordered into the table's full
// column order by the builder), checks constraints, and writes each
// resulting row via the table's connection, yielding the flat (OLD=NULL,
// NEW=row) row downstream for an optional RETURNING projection (spec
// §4.1, §4.4, §4.5).
func (e *Emitter) openInsert(ctx *sql.Context, n *plan.Insert) (sql.RowIter, error) {
	source, err := e.Open(ctx, n.Source)
	if err != nil {
		return nil, err
	}
	conn, err := connectionFor(ctx, n.Schema.Name, n.Table)
	if err != nil {
		source.Close(ctx)
		return nil, err
	}
	return &insertIter{e: e, n: n, source: source, conn: conn}, nil
}

type insertIter struct {
	e      *Emitter
	n      *plan.Insert
	source sql.RowIter
	conn   vtab.Connection
}

func (it *insertIter) Next(ctx *sql.Context) (sql.Row, error) {
	width := len(it.n.Schema.Columns)
	for {
		newRow, err := it.source.Next(ctx)
		if err != nil {
			return nil, err
		}
		flat := sql.NewFlatRow(make(sql.Row, width), newRow, width)
		if err := it.e.Constraints.CheckImmediate(ctx, it.n.Schema, sql.RowOpInsert, flat); err != nil {
			return nil, err
		}
		enqueueDeferred(ctx, it.e.Constraints, it.n.Schema, it.conn, sql.RowOpInsert, flat)
		pk, err := it.conn.Update(ctx, sql.RowOpInsert, flat, it.n.Policy)
		if err != nil {
			return nil, err
		}
		if pk.IsNull() && it.n.Policy == vtab.ConflictIgnore {
			continue // dropped by IGNORE, doesn't reach RETURNING
		}
		return flat.Row, nil
	}
}

func (it *insertIter) Close(ctx *sql.Context) error { return it.source.Close(ctx) }

// openUpdate streams Source (OLD rows), applies Assignments under a pushed
// frame describing the OLD row, checks constraints against the resulting
// NEW row, and writes via the connection.
func (e *Emitter) openUpdate(ctx *sql.Context, n *plan.Update) (sql.RowIter, error) {
	source, err := e.Open(ctx, n.Source)
	if err != nil {
		return nil, err
	}
	conn, err := connectionFor(ctx, n.Schema.Name, n.Table)
	if err != nil {
		source.Close(ctx)
		return nil, err
	}
	slot := sql.NewSlot(ctx.Rows, n.Descriptor)
	return &updateIter{e: e, n: n, source: source, conn: conn, slot: slot}, nil
}

type updateIter struct {
	e      *Emitter
	n      *plan.Update
	source sql.RowIter
	conn   vtab.Connection
	slot   *sql.Slot
}

func (it *updateIter) Next(ctx *sql.Context) (sql.Row, error) {
	oldRow, err := it.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	it.slot.Set(oldRow)
	newRow := oldRow.Clone()
	for _, a := range it.n.Assignments {
		v, err := a.Expr.Eval(ctx)
		if err != nil {
			return nil, err
		}
		newRow[a.ColumnIndex] = v
	}
	flat := sql.NewFlatRow(oldRow, newRow, len(it.n.Schema.Columns))
	if err := it.e.Constraints.CheckImmediate(ctx, it.n.Schema, sql.RowOpUpdate, flat); err != nil {
		return nil, err
	}
	enqueueDeferred(ctx, it.e.Constraints, it.n.Schema, it.conn, sql.RowOpUpdate, flat)
	if _, err := it.conn.Update(ctx, sql.RowOpUpdate, flat, it.n.Policy); err != nil {
		return nil, err
	}
	return flat.Row, nil
}

func (it *updateIter) Close(ctx *sql.Context) error {
	it.slot.Close()
	return it.source.Close(ctx)
}

// openDelete streams Source (OLD rows) and removes each via the
// connection.
func (e *Emitter) openDelete(ctx *sql.Context, n *plan.Delete) (sql.RowIter, error) {
	source, err := e.Open(ctx, n.Source)
	if err != nil {
		return nil, err
	}
	conn, err := connectionFor(ctx, n.Schema.Name, n.Table)
	if err != nil {
		source.Close(ctx)
		return nil, err
	}
	return &deleteIter{e: e, n: n, source: source, conn: conn}, nil
}

type deleteIter struct {
	e      *Emitter
	n      *plan.Delete
	source sql.RowIter
	conn   vtab.Connection
}

func (it *deleteIter) Next(ctx *sql.Context) (sql.Row, error) {
	oldRow, err := it.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	width := len(it.n.Schema.Columns)
	flat := sql.NewFlatRow(oldRow, make(sql.Row, width), width)
	if err := it.e.Constraints.CheckImmediate(ctx, it.n.Schema, sql.RowOpDelete, flat); err != nil {
		return nil, err
	}
	if _, err := it.conn.Update(ctx, sql.RowOpDelete, flat, it.n.Policy); err != nil {
		return nil, err
	}
	return flat.Row, nil
}

func (it *deleteIter) Close(ctx *sql.Context) error { return it.source.Close(ctx) }

// openConstraintCheck is a standalone guard over a flat-row stream,
// re-running NOT NULL/CHECK without performing the write itself — useful
// when a caller needs to validate rows independent of the table's own
// connection; no package in this repo builds one. The mutation
// opens above perform this inline rather than composing with this node,
// since they already have a live FlatRow at hand (see DESIGN.md).
func (e *Emitter) openConstraintCheck(ctx *sql.Context, n *plan.ConstraintCheck) (sql.RowIter, error) {
	input, err := e.Open(ctx, n.Input)
	if err != nil {
		return nil, err
	}
	return &constraintCheckIter{e: e, n: n, input: input}, nil
}

type constraintCheckIter struct {
	e     *Emitter
	n     *plan.ConstraintCheck
	input sql.RowIter
}

func (it *constraintCheckIter) Next(ctx *sql.Context) (sql.Row, error) {
	row, err := it.input.Next(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	width := len(row) / 2
	flat := sql.FlatRow{Row: row, Width: width}
	if err := it.e.Constraints.CheckImmediate(ctx, it.n.Schema, it.n.Op, flat); err != nil {
		return nil, err
	}
	return row, nil
}

func (it *constraintCheckIter) Close(ctx *sql.Context) error { return it.input.Close(ctx) }
