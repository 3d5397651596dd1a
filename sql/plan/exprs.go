package plan

import "github.com/Digithought/quereus-sub010/sql"

// ScalarExpressionsOf returns the direct scalar expressions n evaluates per
// row. sql.Node.Children() only exposes relational inputs, so anything that
// needs to walk every scalar expression a plan reaches — the explain
// surface's subquery-level tracking (spec §4.7), the statement API's
// bind-parameter inventory (spec §6) — needs this instead.
func ScalarExpressionsOf(n sql.Node) []sql.Expression {
	switch t := n.(type) {
	case *Filter:
		return []sql.Expression{t.Predicate}
	case *Join:
		return []sql.Expression{t.On}
	case *Project:
		exprs := make([]sql.Expression, len(t.Projections))
		for i, p := range t.Projections {
			exprs[i] = p.Expr
		}
		return exprs
	case *Aggregate:
		exprs := append([]sql.Expression(nil), t.GroupBy...)
		for _, agg := range t.Aggregates {
			exprs = append(exprs, agg.Args...)
		}
		return exprs
	case *Sort:
		exprs := make([]sql.Expression, len(t.Terms))
		for i, term := range t.Terms {
			exprs[i] = term.Expr
		}
		return exprs
	case *LimitOffset:
		var exprs []sql.Expression
		if t.Limit != nil {
			exprs = append(exprs, t.Limit)
		}
		if t.Offset != nil {
			exprs = append(exprs, t.Offset)
		}
		return exprs
	case *Update:
		exprs := make([]sql.Expression, len(t.Assignments))
		for i, a := range t.Assignments {
			exprs[i] = a.Expr
		}
		return exprs
	case *TableScan:
		return t.ArgExprs
	case *TableFunctionCall:
		return t.Args
	}
	return nil
}
