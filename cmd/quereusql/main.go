// Command quereusql is a minimal demonstration of the Engine/Session/
// Statement lifecycle (spec §6.1), mirroring the structure of the
// teacher's _example/main.go: build a module registry, register a
// database/table, prepare a few statements, iterate their results, and
// print. It is demonstration scaffolding, not a SQL shell — there is no
// network listener and no real SQL text parser (both out of scope per
// spec.md's Non-goals), so the statements below are built as ast.Statement
// values directly and served through a canned lookup Parser rather than
// parsed from arbitrary text.
package main

import (
	"fmt"
	"io"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/memory"
	"github.com/Digithought/quereus-sub010/quereus"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

const tableName = "mytable"

// cannedParser maps a handful of literal SQL strings, used only by this
// demo's calls to Session.Prepare, to pre-built statements. A real
// embedder supplies a real SQL parser satisfying quereus.Parser; this
// engine does not ship one (spec.md Non-goals: "an actual SQL text
// parser").
type cannedParser struct {
	statements map[string][]ast.Statement
}

func (p cannedParser) Parse(sqlText string) ([]ast.Statement, error) {
	batch, ok := p.statements[sqlText]
	if !ok {
		return nil, fmt.Errorf("cannedParser: no statement registered for %q", sqlText)
	}
	return batch, nil
}

const selectByIDSQL = "SELECT id, name FROM mytable WHERE id = ?1"
const selectAllSQL = "SELECT id, name FROM mytable ORDER BY id"

func main() {
	modules := vtab.NewRegistry()
	modules.Register(memory.NewModule())

	parser := cannedParser{statements: map[string][]ast.Statement{
		selectByIDSQL: {selectByID()},
		selectAllSQL:  {selectAll()},
	}}

	engine := quereus.New(parser, modules, &quereus.Config{})
	session := engine.NewSession()

	if err := createTestTable(engine, session); err != nil {
		panic(err)
	}

	fmt.Println("-- all rows --")
	if err := runAndPrint(session, selectAllSQL, nil); err != nil {
		panic(err)
	}

	fmt.Println("-- bound lookup, id = 2 --")
	if err := runAndPrint(session, selectByIDSQL, map[int]interface{}{1: 2}); err != nil {
		panic(err)
	}
}

// createTestTable registers mytable's schema and inserts its seed rows
// directly against the catalog and the table's own connection, the way
// the teacher's createTestDatabase builds a memory.Table by hand rather
// than through SQL DML.
func createTestTable(engine *quereus.Engine, session *quereus.Session) error {
	ctx := session.Context()
	schema := &sql.TableSchema{
		Name: tableName,
		Columns: []sql.Column{
			{Name: "id", Affinity: sql.AffinityInteger},
			{Name: "name", Affinity: sql.AffinityText, Nullable: true},
		},
		PrimaryKey: sql.PrimaryKey{Columns: []sql.IndexColumn{{ColumnIndex: 0}}},
		Module:     "memory",
	}
	if err := engine.Catalog().CreateTable(ctx, schema); err != nil {
		return err
	}

	_, table, ok := engine.Catalog().Table("", tableName)
	if !ok {
		return fmt.Errorf("quereusql: %s not found after create", tableName)
	}
	conn, err := table.OpenConnection(ctx)
	if err != nil {
		return err
	}

	seed := []struct {
		id   int64
		name string
	}{
		{1, "Jane Doe"},
		{2, "John Doe"},
		{3, "Jane Deo"},
	}
	for _, row := range seed {
		newRow := sql.Row{sql.IntValue(row.id), sql.TextValue(row.name)}
		flat := sql.NewFlatRow(nil, newRow, len(newRow))
		if _, err := conn.Update(ctx, sql.RowOpInsert, flat, vtab.ConflictAbort); err != nil {
			return err
		}
	}
	return conn.Commit(ctx)
}

// runAndPrint prepares sqlText against session, optionally binds
// positional parameters, and prints every result row, streamed through
// Statement.IterateRows.
func runAndPrint(session *quereus.Session, sqlText string, params map[int]interface{}) error {
	stmt, err := session.Prepare(sqlText)
	if err != nil {
		return err
	}
	defer stmt.Finalize()

	for idx, v := range params {
		if err := stmt.Bind(idx, v); err != nil {
			return err
		}
	}

	iter, err := stmt.IterateRows()
	if err != nil {
		return err
	}
	names := stmt.ColumnNames()
	for {
		row, err := iter.Next(session.Context())
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for i, v := range row {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("%s=%s", names[i], v.String())
		}
		fmt.Println()
	}
	return nil
}

func selectAll() *ast.SelectStatement {
	return &ast.SelectStatement{
		From: []ast.FromSource{{Table: tableName}},
		Columns: []ast.SelectColumn{
			{Expr: &ast.ColumnRef{Column: "id"}},
			{Expr: &ast.ColumnRef{Column: "name"}},
		},
		OrderBy: []ast.OrderTerm{{Expr: &ast.ColumnRef{Column: "id"}}},
	}
}

func selectByID() *ast.SelectStatement {
	return &ast.SelectStatement{
		From: []ast.FromSource{{Table: tableName}},
		Columns: []ast.SelectColumn{
			{Expr: &ast.ColumnRef{Column: "id"}},
			{Expr: &ast.ColumnRef{Column: "name"}},
		},
		Where: &ast.BinaryExpr{
			Op:    ast.OpEq,
			Left:  &ast.ColumnRef{Column: "id"},
			Right: &ast.BindParameter{Index: 1},
		},
	}
}
