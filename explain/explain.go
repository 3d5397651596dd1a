// Package explain implements the three introspection table-valued
// functions spec §4.7 describes — query_plan, scheduler_program,
// execution_trace — each of which reparses and rebuilds a statement in
// "dry mode" (plan/emit only, never executed) and reports on the result.
//
// Grounded on the teacher's EXPLAIN support (sql/rowexec/describe.go's
// plan-to-string walk in the retrieval pack, and analyzer "TrackProcess"
// timing); generalized from a single flattened string into structured rows
// per spec §4.7's {id, parentId, subqueryLevel, op, detail, ...} shape,
// and from "describe an already-analyzed node" to "reparse the given SQL
// text first", since this engine has no separate analyzer pass to hook.
package explain

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/planbuilder"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// Parser is the narrow dependency every entry point here needs: turning
// the SQL text a call like query_plan('SELECT ...') carries into the AST
// planbuilder.Build consumes. Real SQL parsing is out of scope (spec
// §4.1.1 "the parser is out of scope... the boundary contract with the
// (out-of-scope) parser"); whatever embeds this engine supplies one.
type Parser interface {
	Parse(sqlText string) (ast.Statement, error)
}

func buildPlan(parser Parser, cat planbuilder.Catalog, sqlText string) (*planbuilder.Plan, error) {
	stmt, err := parser.Parse(sqlText)
	if err != nil {
		return nil, sql.ErrParse.New(err.Error())
	}
	b := planbuilder.NewBuilder(cat, sql.NewAttributeAllocator(), nil)
	return b.Build(stmt, scope.NewMultiScope())
}

// collectSubqueries walks expr looking for Exists/InSubquery/ScalarSubquery
// nodes (package sql/expression), the only scalar expressions that embed a
// relational sql.Node.
func collectSubqueries(expr sql.Expression) []sql.Node {
	var out []sql.Node
	var walk func(e sql.Expression)
	walk = func(e sql.Expression) {
		switch t := e.(type) {
		case *expression.Exists:
			out = append(out, t.Query)
		case *expression.InSubquery:
			out = append(out, t.Query)
		case *expression.ScalarSubquery:
			out = append(out, t.Query)
		}
		for _, c := range e.Children() {
			walk(c)
		}
	}
	walk(expr)
	return out
}
