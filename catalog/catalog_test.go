package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/catalog"
	"github.com/Digithought/quereus-sub010/memory"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

func newTestCatalog() *catalog.Catalog {
	modules := vtab.NewRegistry()
	modules.Register(memory.NewModule())
	return catalog.NewCatalog(modules, sql.NewFunctionRegistry())
}

func usersSchema() *sql.TableSchema {
	return &sql.TableSchema{
		Name:    "users",
		Columns: []sql.Column{{Name: "id", Affinity: sql.AffinityInteger}, {Name: "name", Affinity: sql.AffinityText, Nullable: true}},
		PrimaryKey: sql.PrimaryKey{
			Columns: []sql.IndexColumn{{ColumnIndex: 0}},
		},
		Module: "memory",
	}
}

func TestCreateAndLookupTable(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	require.NoError(c.CreateTable(ctx, usersSchema()))

	schema, tbl, ok := c.Table("", "USERS")
	require.True(ok)
	require.NotNil(tbl)
	require.Equal("users", schema.Name)

	_, _, ok = c.Table("", "missing")
	require.False(ok)
}

func TestCreateTableTwiceFails(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	require.NoError(c.CreateTable(ctx, usersSchema()))
	err := c.CreateTable(ctx, usersSchema())
	require.True(sql.ErrTableExists.Is(err))
}

func TestCreateTableUnknownModule(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	schema := usersSchema()
	schema.Module = "leveldb"
	err := c.CreateTable(ctx, schema)
	require.True(sql.ErrUnknownModule.Is(err))
}

func TestDropTable(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	require.NoError(c.CreateTable(ctx, usersSchema()))
	require.NoError(c.DropTable(ctx, "", "users"))
	_, _, ok := c.Table("", "users")
	require.False(ok)

	require.True(sql.ErrUnknownTable.Is(c.DropTable(ctx, "", "users")))
}

func TestCreateIndexBackfillsAndIsQueryable(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	schema := usersSchema()
	require.NoError(c.CreateTable(ctx, schema))

	_, tbl, ok := c.Table("", "users")
	require.True(ok)
	conn, err := tbl.OpenConnection(ctx)
	require.NoError(err)
	newRow := sql.Row{sql.IntValue(1), sql.TextValue("alice")}
	_, err = conn.Update(ctx, sql.RowOpInsert, sql.NewFlatRow(nil, newRow, len(newRow)), vtab.ConflictAbort)
	require.NoError(err)
	require.NoError(conn.Commit(ctx))

	idx := &sql.Index{Name: "by_name", Columns: []sql.IndexColumn{{ColumnIndex: 1}}}
	require.NoError(c.CreateIndex(ctx, "users", idx))

	updated, _, _ := c.Table("", "users")
	require.Len(updated.Indexes, 1)
	require.Equal("by_name", updated.Indexes[0].Name)

	require.True(sql.ErrIndexExists.Is(c.CreateIndex(ctx, "users", idx)))

	require.NoError(c.DropIndex(ctx, "users", "by_name"))
	updated, _, _ = c.Table("", "users")
	require.Len(updated.Indexes, 0)
}

func TestDiffCreatesMissingTable(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	declared := []ast.Statement{
		&ast.CreateTableStatement{
			Table: "widgets",
			Columns: []ast.ColumnDef{
				{Name: "id", Affinity: "INTEGER", PrimaryKey: true},
				{Name: "sku", Affinity: "TEXT"},
			},
		},
	}

	diff, err := c.Diff("", declared)
	require.NoError(err)
	require.Len(diff.TablesToCreate, 1)
	require.Equal("widgets", diff.TablesToCreate[0].Name)
	require.Empty(diff.TablesToDrop)

	require.NoError(diff.Apply(ctx, c))
	_, _, ok := c.Table("", "widgets")
	require.True(ok)

	ddl := diff.MigrationDDL()
	require.Len(ddl, 1)
	require.Contains(ddl[0], "CREATE TABLE")
}

func TestDiffDropsUndeclaredTableAndAltersColumns(t *testing.T) {
	require := require.New(t)
	c := newTestCatalog()
	ctx := sql.NewContext(nil, nil)

	require.NoError(c.CreateTable(ctx, usersSchema()))
	stale := usersSchema()
	stale.Name = "stale"
	require.NoError(c.CreateTable(ctx, stale))

	declared := []ast.Statement{
		&ast.CreateTableStatement{
			Table: "users",
			Columns: []ast.ColumnDef{
				{Name: "id", Affinity: "INTEGER", PrimaryKey: true},
				{Name: "email", Affinity: "TEXT"},
			},
		},
	}

	diff, err := c.Diff("", declared)
	require.NoError(err)
	require.Equal([]string{"stale"}, diff.TablesToDrop)
	require.Len(diff.TablesToAlter, 1)
	require.Equal([]string{"email"}, columnAddNames(diff.TablesToAlter[0].ColumnsToAdd))
	require.Equal([]string{"name"}, diff.TablesToAlter[0].ColumnsToDrop)

	require.NoError(diff.Apply(ctx, c))
	_, _, ok := c.Table("", "stale")
	require.False(ok)
	updated, _, _ := c.Table("", "users")
	require.Len(updated.Columns, 2)
}

func columnAddNames(cols []sql.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
