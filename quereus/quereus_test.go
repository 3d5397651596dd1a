package quereus_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/memory"
	"github.com/Digithought/quereus-sub010/quereus"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// canned is a quereus.Parser that serves one fixed batch regardless of the
// text given, mirroring explain_test.go's fakeParser but at the batch
// granularity quereus.Parser requires.
type canned struct{ batch []ast.Statement }

func (c canned) Parse(string) ([]ast.Statement, error) { return c.batch, nil }

func newTestEngine(t *testing.T, cfg *quereus.Config) *quereus.Engine {
	modules := vtab.NewRegistry()
	modules.Register(memory.NewModule())
	return quereus.New(canned{}, modules, cfg)
}

func usersSchema() *sql.TableSchema {
	return &sql.TableSchema{
		Name:       "users",
		Columns:    []sql.Column{{Name: "id", Affinity: sql.AffinityInteger}, {Name: "name", Affinity: sql.AffinityText, Nullable: true}},
		PrimaryKey: sql.PrimaryKey{Columns: []sql.IndexColumn{{ColumnIndex: 0}}},
		Module:     "memory",
	}
}

func seedUsers(t *testing.T, e *quereus.Engine, s *quereus.Session) {
	ctx := s.Context()
	require.NoError(t, e.Catalog().CreateTable(ctx, usersSchema()))
	_, tbl, ok := e.Catalog().Table("", "users")
	require.True(t, ok)
	conn, err := tbl.OpenConnection(ctx)
	require.NoError(t, err)
	for _, row := range []struct {
		id   int64
		name string
	}{{1, "alice"}, {2, "bob"}} {
		newRow := sql.Row{sql.IntValue(row.id), sql.TextValue(row.name)}
		_, err := conn.Update(ctx, sql.RowOpInsert, sql.NewFlatRow(nil, newRow, len(newRow)), vtab.ConflictAbort)
		require.NoError(t, err)
	}
	require.NoError(t, conn.Commit(ctx))
}

func selectAllUsers() *ast.SelectStatement {
	return &ast.SelectStatement{
		From:    []ast.FromSource{{Table: "users"}},
		Columns: []ast.SelectColumn{{Star: true}},
	}
}

func TestPrepareAndAllReturnsRows(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	stmt, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt.Finalize()

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestGetReturnsFirstRow(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	stmt, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt.Finalize()

	row, err := stmt.Get()
	require.NoError(t, err)
	require.NotNil(t, row)
}

func TestBindPositionalParameter(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	sel := &ast.SelectStatement{
		From:    []ast.FromSource{{Table: "users"}},
		Columns: []ast.SelectColumn{{Star: true}},
		Where: &ast.BinaryExpr{
			Op:    ast.OpEq,
			Left:  &ast.ColumnRef{Column: "id"},
			Right: &ast.BindParameter{Index: 1},
		},
	}
	stmt, err := s.PrepareStatements([]ast.Statement{sel})
	require.NoError(t, err)
	defer stmt.Finalize()

	require.Equal(t, 1, stmt.ParameterCount())
	require.NoError(t, stmt.Bind(1, 2))

	rows, err := stmt.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRunInsertCommitsAutocommit(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	insert := &ast.InsertStatement{
		Table:   "users",
		Columns: []string{"id", "name"},
		Values:  [][]ast.Expr{{&ast.Literal{Value: int64(3)}, &ast.Literal{Value: "carol"}}},
	}
	stmt, err := s.PrepareStatements([]ast.Statement{insert})
	require.NoError(t, err)
	require.NoError(t, stmt.Run())
	require.NoError(t, stmt.Finalize())

	stmt2, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt2.Finalize()
	rows, err := stmt2.All()
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestReadOnlyEngineRejectsMutation(t *testing.T) {
	e := newTestEngine(t, &quereus.Config{ReadOnly: true})
	s := e.NewSession()
	// seed through the catalog directly (bypassing the read-only statement
	// path), mirroring how an embedder pre-loads a read-only snapshot.
	ctx := s.Context()
	require.NoError(t, e.Catalog().CreateTable(ctx, usersSchema()))

	insert := &ast.InsertStatement{
		Table:   "users",
		Columns: []string{"id", "name"},
		Values:  [][]ast.Expr{{&ast.Literal{Value: int64(1)}, &ast.Literal{Value: "alice"}}},
	}
	_, err := s.PrepareStatements([]ast.Statement{insert})
	require.True(t, sql.ErrReadOnly.Is(err))
}

func TestTransactionControlStatements(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	batch := []ast.Statement{
		&ast.BeginStatement{},
		&ast.InsertStatement{
			Table:   "users",
			Columns: []string{"id", "name"},
			Values:  [][]ast.Expr{{&ast.Literal{Value: int64(3)}, &ast.Literal{Value: "carol"}}},
		},
		&ast.SavepointStatement{Name: "s1"},
		&ast.InsertStatement{
			Table:   "users",
			Columns: []string{"id", "name"},
			Values:  [][]ast.Expr{{&ast.Literal{Value: int64(4)}, &ast.Literal{Value: "dave"}}},
		},
		&ast.RollbackStatement{To: "s1"},
		&ast.CommitStatement{},
	}
	stmt, err := s.PrepareStatements(batch)
	require.NoError(t, err)
	require.NoError(t, stmt.Run())
	for i := 1; i < len(batch); i++ {
		ok, err := stmt.NextStatement()
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, stmt.Run())
	}
	_, err = stmt.NextStatement()
	require.True(t, sql.ErrNoMoreStatements.Is(err))
	require.NoError(t, stmt.Finalize())

	stmt2, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt2.Finalize()
	rows, err := stmt2.All()
	require.NoError(t, err)
	// alice, bob, carol: dave was rolled back to the savepoint.
	require.Len(t, rows, 3)
}

func TestIterateRowsStreamsAndClosesCleanly(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	stmt, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt.Finalize()

	iter, err := stmt.IterateRows()
	require.NoError(t, err)
	count := 0
	for {
		_, err := iter.Next(s.Context())
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 2, count)
}

func TestBusyStatementRejectsReentry(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	stmt, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	defer stmt.Finalize()

	_, err = stmt.IterateRows()
	require.NoError(t, err)

	_, err = stmt.All()
	require.True(t, sql.ErrStatementBusy.Is(err))
}

func TestFinalizedStatementRejectsBind(t *testing.T) {
	e := newTestEngine(t, nil)
	s := e.NewSession()
	seedUsers(t, e, s)

	stmt, err := s.PrepareStatements([]ast.Statement{selectAllUsers()})
	require.NoError(t, err)
	require.NoError(t, stmt.Finalize())

	err = stmt.Bind(1, 1)
	require.True(t, sql.ErrStatementFinalized.Is(err))
}
