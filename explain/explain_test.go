package explain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/catalog"
	"github.com/Digithought/quereus-sub010/explain"
	"github.com/Digithought/quereus-sub010/memory"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// fakeParser stands in for the out-of-scope real SQL parser (spec §4.1.1):
// it ignores the text and always returns the ast.Statement it was built
// with, letting these tests exercise explain's plan/emit walk without a
// parser dependency.
type fakeParser struct {
	stmt ast.Statement
}

func (f fakeParser) Parse(string) (ast.Statement, error) { return f.stmt, nil }

func newTestCatalog(t *testing.T) *catalog.Catalog {
	modules := vtab.NewRegistry()
	modules.Register(memory.NewModule())
	c := catalog.NewCatalog(modules, sql.NewFunctionRegistry())
	ctx := sql.NewContext(nil, nil)
	require.NoError(t, c.CreateTable(ctx, &sql.TableSchema{
		Name:       "users",
		Columns:    []sql.Column{{Name: "id", Affinity: sql.AffinityInteger}, {Name: "name", Affinity: sql.AffinityText, Nullable: true}},
		PrimaryKey: sql.PrimaryKey{Columns: []sql.IndexColumn{{ColumnIndex: 0}}},
		Module:     "memory",
	}))
	return c
}

func selectStarFromUsers() *ast.SelectStatement {
	return &ast.SelectStatement{
		From:    []ast.FromSource{{Table: "users"}},
		Columns: []ast.SelectColumn{{Star: true}},
	}
}

func TestQueryPlanFlattensScanAndFilter(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	stmt := selectStarFromUsers()
	stmt.Where = &ast.BinaryExpr{Op: ast.OpGt, Left: &ast.ColumnRef{Column: "id"}, Right: &ast.Literal{Value: int64(0)}}

	rows, err := explain.QueryPlan(fakeParser{stmt}, c, "SELECT * FROM users WHERE id > 0")
	require.NoError(err)
	require.NotEmpty(rows)

	var sawScan, sawFilter bool
	for _, r := range rows {
		if r.Op == "Scan" {
			sawScan = true
			require.Equal("users", r.ObjectName)
		}
		if r.Op == "Filter" {
			sawFilter = true
		}
		require.Equal(0, r.SubqueryLevel)
	}
	require.True(sawScan)
	require.True(sawFilter)
}

func TestSchedulerProgramAssignsDependencies(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	rows, err := explain.SchedulerProgram(fakeParser{selectStarFromUsers()}, c, "SELECT * FROM users")
	require.NoError(err)
	require.NotEmpty(rows)

	root := rows[len(rows)-1]
	require.False(root.IsSubprogram)
	require.Equal(0, root.ParentAddress)
	// The root Project depends on exactly the scan emitted before it.
	require.Len(root.Dependencies, 1)
	require.Equal(rows[0].Address, root.Dependencies[0])
}

func TestExecutionTraceReportsPhasesWithoutExecuting(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	rows, err := explain.ExecutionTrace(fakeParser{selectStarFromUsers()}, c, "SELECT * FROM users")
	require.NoError(err)
	require.Len(rows, 3)
	require.Equal("parse", rows[0].Phase)
	require.Equal("plan", rows[1].Phase)
	require.Equal("emit/schedule", rows[2].Phase)
}

func TestQueryPlanReturnsNilForDDL(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog(t)
	ddl := &ast.CreateTableStatement{Table: "widgets", Columns: []ast.ColumnDef{{Name: "id", Affinity: "INTEGER", PrimaryKey: true}}}
	rows, err := explain.QueryPlan(fakeParser{ddl}, c, "CREATE TABLE widgets (id INTEGER PRIMARY KEY)")
	require.NoError(err)
	require.Nil(rows)
}
