package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// buildAggregate builds the Aggregate node for a SELECT with GROUP BY
// and/or aggregate expressions (spec §4.1 step 3). It also populates
// b.aggSubst so buildProjection resolves each aggregate call to the
// Aggregate node's output column rather than re-evaluating the function
// over ungrouped rows.
func (b *Builder) buildAggregate(cur relBuild, s *ast.SelectStatement, sc scope.Scope) (relBuild, error) {
	groupExprs := make([]sql.Expression, len(s.GroupBy))
	groupAttrs := make([]sql.AttributeID, len(s.GroupBy))
	var bindings []scope.Binding
	for i, g := range s.GroupBy {
		ge, err := b.buildExpr(g, sc)
		if err != nil {
			return relBuild{}, err
		}
		groupExprs[i] = ge
		attr := b.Attrs.Next()
		groupAttrs[i] = attr
		name := ""
		if cr, ok := g.(*ast.ColumnRef); ok {
			name = cr.Column
		}
		bindings = append(bindings, scope.Binding{Attribute: attr, Type: ge.Type(), Column: name})
	}

	aggCalls := collectAggregateCalls(s.Columns, b)
	aggs := make([]plan.AggregateExpr, len(aggCalls))
	subst := make(map[ast.Expr]*expression.ColumnReference, len(aggCalls))
	attrs := append([]sql.AttributeID{}, groupAttrs...)
	for i, fc := range aggCalls {
		fn, _ := b.Catalog.Functions().Lookup(fc.Name)
		aggFn := fn.(sql.AggregateFunction)
		args := make([]sql.Expression, 0, len(fc.Args))
		for _, a := range fc.Args {
			ae, err := b.buildExpr(a, sc)
			if err != nil {
				return relBuild{}, err
			}
			args = append(args, ae)
		}
		argTypes := make([]sql.ScalarType, len(args))
		for j, a := range args {
			argTypes[j] = a.Type()
		}
		t := aggFn.ReturnType(argTypes)
		attr := b.Attrs.Next()
		aggs[i] = plan.AggregateExpr{Fn: aggFn, Args: args, Attribute: attr, Alias: fc.Name}
		bindings = append(bindings, scope.Binding{Attribute: attr, Type: t, Column: fc.Name})
		subst[fc] = expression.NewColumnReference(attr, "", fc.Name, t)
		attrs = append(attrs, attr)
	}
	b.aggSubst = subst

	node := plan.NewAggregate(cur.Node, groupExprs, groupAttrs, aggs, descriptorOf(cur.Attrs))
	return relBuild{Node: node, Attrs: attrs, Scope: scope.NewRegisteredScope("", bindings)}, nil
}

func collectAggregateCalls(cols []ast.SelectColumn, b *Builder) []*ast.FunctionCall {
	var out []*ast.FunctionCall
	for _, c := range cols {
		if c.Star {
			continue
		}
		walkExpr(c.Expr, func(e ast.Expr) {
			if fc, ok := e.(*ast.FunctionCall); ok {
				if fn, found := b.Catalog.Functions().Lookup(fc.Name); found {
					if _, isAgg := fn.(sql.AggregateFunction); isAgg {
						out = append(out, fc)
					}
				}
			}
		})
	}
	return out
}
