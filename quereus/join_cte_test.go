package quereus_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/quereus"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// countFn is a minimal COUNT(*) implementation a test registers directly,
// mirroring how a real embedder supplies aggregate function bodies (spec
// §1 — the engine core ships no built-in function bodies of its own).
type countFn struct{}

func (countFn) Name() string { return "count" }
func (countFn) ReturnType(argTypes []sql.ScalarType) sql.ScalarType {
	return sql.ScalarType{Affinity: sql.AffinityInteger}
}
func (countFn) NewAccumulator() sql.Accumulator { return &countAcc{} }

type countAcc struct{ n int64 }

func (a *countAcc) Update(args []sql.Value) error { a.n++; return nil }
func (a *countAcc) Eval() (sql.Value, error)      { return sql.IntValue(a.n), nil }

func ordersSchema() *sql.TableSchema {
	return &sql.TableSchema{
		Name: "orders",
		Columns: []sql.Column{
			{Name: "id", Affinity: sql.AffinityInteger},
			{Name: "user_id", Affinity: sql.AffinityInteger},
			{Name: "amount", Affinity: sql.AffinityInteger},
		},
		PrimaryKey: sql.PrimaryKey{Columns: []sql.IndexColumn{{ColumnIndex: 0}}},
		Module:     "memory",
	}
}

func colValue(i int64) ast.Expr { return &ast.Literal{Value: i} }

// joinFixture seeds users(1,"alice")/(2,"bob") and orders(1,1,100): alice
// has one order, bob has none — exactly the shape an inner join drops a
// row for and a left join must still emit with NULLs.
func joinFixture(t *testing.T) (*quereus.Engine, *quereus.Session) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	ctx := s.Context()
	require.NoError(t, e.Catalog().CreateTable(ctx, ordersSchema()))
	_, tbl, ok := e.Catalog().Table("", "orders")
	require.True(t, ok)
	conn, err := tbl.OpenConnection(ctx)
	require.NoError(t, err)
	newRow := sql.Row{sql.IntValue(1), sql.IntValue(1), sql.IntValue(100)}
	_, err = conn.Update(ctx, sql.RowOpInsert, sql.NewFlatRow(nil, newRow, len(newRow)), vtab.ConflictAbort)
	require.NoError(t, err)
	require.NoError(t, conn.Commit(ctx))
	return e, s
}

func usersOrdersJoin(kind ast.JoinKind) *ast.SelectStatement {
	return &ast.SelectStatement{
		From: []ast.FromSource{{
			Table: "orders",
			Join: &ast.JoinSource{
				Left: &ast.FromSource{Table: "users"},
				Kind: kind,
				On: &ast.BinaryExpr{
					Op:    ast.OpEq,
					Left:  &ast.ColumnRef{Table: "orders", Column: "user_id"},
					Right: &ast.ColumnRef{Table: "users", Column: "id"},
				},
			},
		}},
		Columns: []ast.SelectColumn{
			{Expr: &ast.ColumnRef{Table: "users", Column: "name"}},
			{Expr: &ast.ColumnRef{Table: "orders", Column: "amount"}},
		},
		OrderBy: []ast.OrderTerm{{Expr: &ast.ColumnRef{Column: "name"}}},
	}
}

func TestInnerJoinDropsUnmatchedRow(t *testing.T) {
	_, s := joinFixture(t)
	stmt, err := s.PrepareStatements([]ast.Statement{usersOrdersJoin(ast.JoinInner)})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	// bob has no order, so an inner join yields only alice's row.
	require.Len(t, rows, 1)
	require.Equal(t, "alice", rows[0][0].String())
	require.Equal(t, int64(100), rows[0][1].Int)
}

func TestLeftJoinEmitsNullForUnmatchedRow(t *testing.T) {
	_, s := joinFixture(t)
	stmt, err := s.PrepareStatements([]ast.Statement{usersOrdersJoin(ast.JoinLeft)})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "alice", rows[0][0].String())
	require.Equal(t, int64(100), rows[0][1].Int)
	require.Equal(t, "bob", rows[1][0].String())
	require.True(t, rows[1][1].IsNull())
}

func TestGroupByAggregateCountsRowsPerGroup(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Functions().RegisterAggregate(countFn{})
	s := e.NewSession()
	seedUsers(t, e, s)

	sel := &ast.SelectStatement{
		From:    []ast.FromSource{{Table: "users"}},
		GroupBy: []ast.Expr{&ast.ColumnRef{Column: "name"}},
		Columns: []ast.SelectColumn{
			{Expr: &ast.ColumnRef{Column: "name"}},
			{Expr: &ast.FunctionCall{Name: "count", Star: true}},
		},
		OrderBy: []ast.OrderTerm{{Expr: &ast.ColumnRef{Column: "name"}}},
	}
	stmt, err := s.PrepareStatements([]ast.Statement{sel})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 2) // alice and bob, one user row each
	for _, row := range rows {
		require.Equal(t, int64(1), row[1].Int)
	}
}

// recursiveCounter builds WITH RECURSIVE c(n) AS (SELECT 1 <setOp> <term>)
// SELECT <outer> FROM c, per spec.md §8's two end-to-end scenarios.
func recursiveCounter(setOp ast.SetOpKind, term *ast.SelectStatement, outer ast.SelectColumn) *ast.SelectStatement {
	with := &ast.WithClause{CTEs: []ast.CommonTableExpr{{
		Name:        "c",
		ColumnNames: []string{"n"},
		Recursive:   true,
		Query: &ast.SetOperation{
			Op: setOp,
			Left: &ast.SelectStatement{
				Columns: []ast.SelectColumn{{Expr: colValue(1)}},
			},
			Right: term,
		},
	}}}
	return &ast.SelectStatement{
		With:    with,
		From:    []ast.FromSource{{Table: "c"}},
		Columns: []ast.SelectColumn{outer},
	}
}

func TestRecursiveCTEUnionAllCountsUpToFive(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()

	term := &ast.SelectStatement{
		From:  []ast.FromSource{{Table: "c"}},
		Where: &ast.BinaryExpr{Op: ast.OpLt, Left: &ast.ColumnRef{Column: "n"}, Right: colValue(5)},
		Columns: []ast.SelectColumn{{
			Expr: &ast.BinaryExpr{Op: ast.OpAdd, Left: &ast.ColumnRef{Column: "n"}, Right: colValue(1)},
		}},
	}
	sel := recursiveCounter(ast.SetOpUnionAll, term, ast.SelectColumn{Expr: &ast.ColumnRef{Column: "n"}})

	stmt, err := s.PrepareStatements([]ast.Statement{sel})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	for i, row := range rows {
		require.Equal(t, int64(i+1), row[0].Int)
	}
}

func TestRecursiveCTEUnionDistinctDropsDuplicates(t *testing.T) {
	e := newTestEngine(t, nil)
	e.Functions().RegisterAggregate(countFn{})
	s := e.NewSession()

	// The recursive term re-derives the same n (no +1), so after the
	// first step UNION's dedup drops it as a duplicate and the queue
	// empties — exactly the "duplicates dropped" scenario.
	term := &ast.SelectStatement{
		From:    []ast.FromSource{{Table: "c"}},
		Where:   &ast.BinaryExpr{Op: ast.OpLt, Left: &ast.ColumnRef{Column: "n"}, Right: colValue(3)},
		Columns: []ast.SelectColumn{{Expr: &ast.ColumnRef{Column: "n"}}},
	}
	sel := recursiveCounter(ast.SetOpUnion, term, ast.SelectColumn{Expr: &ast.FunctionCall{Name: "count", Star: true}})

	stmt, err := s.PrepareStatements([]ast.Statement{sel})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0][0].Int)
}
