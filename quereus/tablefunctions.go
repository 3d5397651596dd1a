package quereus

import (
	"strings"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/explain"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
)

// explainFunctionNames are the table-valued functions package explain
// implements (spec §4.7). planbuilder.buildTableFunctionSource refuses
// every table function by design (package sql/planbuilder's doc comment
// on that stub) since resolving one means reparsing and replanning a
// second, independent statement — work only this package, which already
// holds the engine's Parser and Catalog, can do.
var explainFunctionNames = map[string]bool{
	"query_plan":        true,
	"scheduler_program": true,
	"execution_trace":   true,
}

// explainParserAdapter narrows the engine's batch Parser down to the
// single-statement explain.Parser contract, rejecting any SQL text that
// parses to more than one statement since query_plan('...') et al. only
// ever describe one.
type explainParserAdapter struct{ parser Parser }

func (a explainParserAdapter) Parse(sqlText string) (ast.Statement, error) {
	batch, err := a.parser.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	if len(batch) != 1 {
		return nil, sql.ErrMisuse.New("explain argument must be exactly one statement")
	}
	return batch[0], nil
}

// tryBuildExplainTableFunction recognizes `SELECT ... FROM query_plan(sql)`
// (and scheduler_program/execution_trace) as a top-level, single-source
// FROM clause and builds its plan directly against package explain,
// without ever reaching planbuilder.buildTableFunctionSource. Any other
// shape (the function joined to something else, wrapped in a subquery)
// falls through to the normal builder, which raises ErrUnsupported for it
// exactly as it always has.
func (s *Session) tryBuildExplainTableFunction(sel *ast.SelectStatement) (*planbuilder.Plan, bool, error) {
	if len(sel.From) != 1 || sel.From[0].TableFunc == nil || sel.From[0].Join != nil {
		return nil, false, nil
	}
	call := sel.From[0].TableFunc
	if !explainFunctionNames[call.Name] {
		return nil, false, nil
	}
	if len(call.Args) != 1 {
		return nil, false, sql.ErrMisuse.New(call.Name + "() takes exactly one argument")
	}
	lit, ok := call.Args[0].(*ast.Literal)
	if !ok {
		return nil, false, sql.ErrUnsupported.New(call.Name + "() argument must be a string literal")
	}
	text, ok := lit.Value.(string)
	if !ok {
		return nil, false, sql.ErrMisuse.New(call.Name + "() argument must be a string")
	}

	parser := explainParserAdapter{s.engine.parser}
	switch call.Name {
	case "query_plan":
		rows, err := explain.QueryPlan(parser, s.engine.catalog, text)
		if err != nil {
			return nil, true, err
		}
		return planFromRows(queryPlanColumns, queryPlanRow, rows), true, nil
	case "scheduler_program":
		rows, err := explain.SchedulerProgram(parser, s.engine.catalog, text)
		if err != nil {
			return nil, true, err
		}
		return planFromRows(schedulerProgramColumns, schedulerProgramRow, rows), true, nil
	case "execution_trace":
		rows, err := explain.ExecutionTrace(parser, s.engine.catalog, text)
		if err != nil {
			return nil, true, err
		}
		return planFromRows(executionTraceColumns, executionTraceRow, rows), true, nil
	}
	return nil, false, nil
}

var queryPlanColumns = []sql.Column{
	{Name: "id", Affinity: sql.AffinityInteger},
	{Name: "parentId", Affinity: sql.AffinityInteger},
	{Name: "subqueryLevel", Affinity: sql.AffinityInteger},
	{Name: "op", Affinity: sql.AffinityText},
	{Name: "detail", Affinity: sql.AffinityText},
	{Name: "objectName", Affinity: sql.AffinityText, Nullable: true},
	{Name: "alias", Affinity: sql.AffinityText, Nullable: true},
	{Name: "estimatedCost", Affinity: sql.AffinityReal},
	{Name: "estimatedRows", Affinity: sql.AffinityInteger},
}

func queryPlanRow(r explain.PlanRow) sql.Row {
	return sql.Row{
		sql.IntValue(int64(r.ID)), sql.IntValue(int64(r.ParentID)), sql.IntValue(int64(r.SubqueryLevel)),
		sql.TextValue(r.Op), sql.TextValue(r.Detail), sql.TextValue(r.ObjectName), sql.TextValue(r.Alias),
		sql.FloatValue(r.EstimatedCost), sql.IntValue(r.EstimatedRows),
	}
}

var schedulerProgramColumns = []sql.Column{
	{Name: "address", Affinity: sql.AffinityInteger},
	{Name: "instructionId", Affinity: sql.AffinityText},
	{Name: "dependencies", Affinity: sql.AffinityText},
	{Name: "description", Affinity: sql.AffinityText},
	{Name: "isSubprogram", Affinity: sql.AffinityInteger},
	{Name: "parentAddress", Affinity: sql.AffinityInteger},
}

func schedulerProgramRow(r explain.ProgramRow) sql.Row {
	deps := make([]string, len(r.Dependencies))
	for i, d := range r.Dependencies {
		deps[i] = sql.IntValue(int64(d)).String()
	}
	return sql.Row{
		sql.IntValue(int64(r.Address)), sql.TextValue(r.InstructionID), sql.TextValue(strings.Join(deps, ",")),
		sql.TextValue(r.Description), sql.BoolValue(r.IsSubprogram), sql.IntValue(int64(r.ParentAddress)),
	}
}

var executionTraceColumns = []sql.Column{
	{Name: "phase", Affinity: sql.AffinityText},
	{Name: "durationNanos", Affinity: sql.AffinityInteger},
	{Name: "estimatedRowsMem", Affinity: sql.AffinityInteger},
}

func executionTraceRow(r explain.TraceRow) sql.Row {
	return sql.Row{sql.TextValue(r.Phase), sql.IntValue(r.DurationNanos), sql.IntValue(r.EstimatedRowsMem)}
}

// planFromRows wraps an already-computed result set (produced by package
// explain, never executed against a table) as a *plan.Values literal
// node, the cheapest sql.Node the emitter already knows how to open.
func planFromRows[T any](columns []sql.Column, toRow func(T) sql.Row, rows []T) *planbuilder.Plan {
	attrs := make([]sql.AttributeID, len(columns))
	allocator := sql.NewAttributeAllocator()
	for i := range columns {
		attrs[i] = allocator.Next()
	}
	names := make([]string, len(columns))
	literalRows := make([][]sql.Expression, len(rows))
	for i, r := range rows {
		row := toRow(r)
		exprs := make([]sql.Expression, len(row))
		for j, v := range row {
			exprs[j] = expression.NewLiteral(v, sql.ScalarType{Affinity: columns[j].Affinity, Nullable: columns[j].Nullable})
		}
		literalRows[i] = exprs
	}
	for i, c := range columns {
		names[i] = c.Name
	}
	node := plan.NewValues(literalRows, attrs, sql.RelationalType{Columns: columns, ReadOnly: true})
	return &planbuilder.Plan{Node: node, ColumnNames: names}
}
