package plan

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/vtab"
)

// TableScan reads rows from one virtual-table connection, driven by the
// access path a prior xBestIndex call chose (spec §4.1, §4.5).
type TableScan struct {
	TableName string
	Alias     string
	Table     vtab.Table
	Schema    *sql.TableSchema
	Attrs     []sql.AttributeID // one per column, in schema order
	Plan      *vtab.BestIndexResult
	ArgExprs  []sql.Expression // parallel to Plan.ConstraintUsage, non-nil where ArgvIndex>0
	typ       sql.RelationalType
	est       sql.Estimate
}

func NewTableScan(tableName, alias string, table vtab.Table, schema *sql.TableSchema, attrs []sql.AttributeID, bestIndex *vtab.BestIndexResult, argExprs []sql.Expression) *TableScan {
	return &TableScan{
		TableName: tableName,
		Alias:     alias,
		Table:     table,
		Schema:    schema,
		Attrs:     attrs,
		Plan:      bestIndex,
		ArgExprs:  argExprs,
		typ:       sql.RelationalType{Columns: schema.Columns, ReadOnly: schema.IsReadOnly},
		est:       sql.Estimate{Cost: bestIndex.EstimatedCost, Rows: bestIndex.EstimatedRows},
	}
}

func (s *TableScan) RelType() sql.RelationalType { return s.typ }
func (s *TableScan) Children() []sql.Node        { return nil }
func (s *TableScan) Estimate() sql.Estimate      { return s.est }

func (s *TableScan) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct {
		Table, Alias string
		IdxNum       int
		IdxStr       string
	}{s.TableName, s.Alias, s.Plan.IdxNum, s.Plan.IdxStr})
}

func (s *TableScan) String() string {
	if s.Alias != "" && s.Alias != s.TableName {
		return "Scan(" + s.TableName + " AS " + s.Alias + ")"
	}
	return "Scan(" + s.TableName + ")"
}

// TableFunctionCall invokes a registered table-valued function (used by the
// explain/introspection surface, spec §4.7).
type TableFunctionCall struct {
	FuncName string
	Args     []sql.Expression
	Attrs    []sql.AttributeID
	typ      sql.RelationalType
	Run      func(ctx *sql.Context, args []sql.Value) (sql.RowIter, error)
}

func NewTableFunctionCall(name string, args []sql.Expression, attrs []sql.AttributeID, typ sql.RelationalType, run func(ctx *sql.Context, args []sql.Value) (sql.RowIter, error)) *TableFunctionCall {
	return &TableFunctionCall{FuncName: name, Args: args, Attrs: attrs, typ: typ, Run: run}
}

func (t *TableFunctionCall) RelType() sql.RelationalType { return t.typ }
func (t *TableFunctionCall) Children() []sql.Node        { return nil }
func (t *TableFunctionCall) Estimate() sql.Estimate      { return sql.Estimate{Cost: 1, Rows: 1} }
func (t *TableFunctionCall) Identity() sql.NodeIdentity {
	return sql.StructuralIdentity(struct{ Name string }{t.FuncName})
}
func (t *TableFunctionCall) String() string { return t.FuncName + "(...)" }
