package constraints_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/constraints"
	"github.com/Digithought/quereus-sub010/sql/expression"
)

// fakeConn is the minimal sql.TxConnection a test needs to populate
// ctx.Connections with, without pulling in a real vtab.Connection/memory
// table.
type fakeConn struct{ id sql.ConnectionID }

func (f fakeConn) ID() sql.ConnectionID                                  { return f.id }
func (f fakeConn) Begin(ctx *sql.Context) error                          { return nil }
func (f fakeConn) Commit(ctx *sql.Context) error                         { return nil }
func (f fakeConn) Rollback(ctx *sql.Context) error                       { return nil }
func (f fakeConn) CreateSavepoint(ctx *sql.Context, index int) error     { return nil }
func (f fakeConn) ReleaseSavepoint(ctx *sql.Context, index int) error    { return nil }
func (f fakeConn) RollbackToSavepoint(ctx *sql.Context, index int) error { return nil }

func widgetsSchema() *sql.TableSchema {
	typ := sql.ScalarType{Affinity: sql.AffinityInteger}
	return &sql.TableSchema{
		Name:    "widgets",
		Columns: []sql.Column{{Name: "quantity", Affinity: sql.AffinityInteger}},
		Checks: []sql.CheckConstraint{{
			Name:     "positive_quantity",
			Ops:      sql.RowOpInsert | sql.RowOpUpdate,
			Deferred: true,
			Expr: expression.NewBinary(expression.Gt,
				expression.NewColumnReference(1, "widgets", "quantity", typ),
				expression.NewLiteral(sql.IntValue(0), typ),
				typ),
		}},
	}
}

func enqueueQuantity(t *testing.T, q *constraints.Queue, connID sql.ConnectionID, quantity int64) {
	engine := constraints.NewEngine()
	flat := sql.NewFlatRow(nil, sql.Row{sql.IntValue(quantity)}, 1)
	entries := engine.Deferred(widgetsSchema(), connID, sql.RowOpInsert, flat)
	require.Len(t, entries, 1)
	q.Enqueue(entries[0])
}

func TestRunDeferredRowsPassesWhenConstraintHolds(t *testing.T) {
	q := constraints.NewQueue()
	connID := sql.NewConnectionID()
	enqueueQuantity(t, q, connID, 5)

	ctx := sql.NewContext(nil, nil)
	ctx.Connections["widgets"] = fakeConn{id: connID}
	require.NoError(t, q.RunDeferredRows(ctx))
}

func TestRunDeferredRowsFailsWhenConstraintViolated(t *testing.T) {
	q := constraints.NewQueue()
	connID := sql.NewConnectionID()
	enqueueQuantity(t, q, connID, -1)

	ctx := sql.NewContext(nil, nil)
	ctx.Connections["widgets"] = fakeConn{id: connID}
	err := q.RunDeferredRows(ctx)
	require.True(t, sql.ErrCheckViolation.Is(err))
}

func TestRunDeferredRowsFallsBackToTableName(t *testing.T) {
	q := constraints.NewQueue()
	connID := sql.NewConnectionID()
	enqueueQuantity(t, q, connID, 5)

	// The connection registered under the table's qualified name now has a
	// different ID (e.g. the original connection was replaced), so
	// resolution must fall back to the table-name match rather than fail.
	ctx := sql.NewContext(nil, nil)
	ctx.Connections["widgets"] = fakeConn{id: sql.NewConnectionID()}
	require.NoError(t, q.RunDeferredRows(ctx))
}

func TestRunDeferredRowsErrorsWhenConnectionGone(t *testing.T) {
	q := constraints.NewQueue()
	enqueueQuantity(t, q, sql.NewConnectionID(), 5)

	ctx := sql.NewContext(nil, nil)
	err := q.RunDeferredRows(ctx)
	require.True(t, sql.ErrMisuse.Is(err))
}

func TestQueueLayersMirrorSavepoints(t *testing.T) {
	q := constraints.NewQueue()
	connID := sql.NewConnectionID()
	ctx := sql.NewContext(nil, nil)
	ctx.Connections["widgets"] = fakeConn{id: connID}

	enqueueQuantity(t, q, connID, 5) // base layer: passes
	q.BeginLayer()
	enqueueQuantity(t, q, connID, -1) // savepoint layer: would fail
	q.RollbackLayer()                 // ROLLBACK TO discards it

	require.NoError(t, q.RunDeferredRows(ctx))
}
