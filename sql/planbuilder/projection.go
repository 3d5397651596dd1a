package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/plan"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// buildProjection implements spec §4.1 step 3/4: expand `*`/`table.*`,
// build each scalar projection, and wrap Input in a Project (spec notes
// Project is only introduced "when there are non-aggregate projections" —
// here it is built unconditionally for simplicity, since a Project whose
// columns are already exactly Input's is a cheap identity wrapper and the
// emitter can special-case it away if ever worth the optimization).
func (b *Builder) buildProjection(cur relBuild, cols []ast.SelectColumn, sc scope.Scope) (relBuild, []string, error) {
	var projs []plan.Projection
	var names []string
	var bindings []scope.Binding

	for _, c := range cols {
		if c.Star {
			for _, binding := range sc.Columns() {
				if c.Table != "" && binding.Table != c.Table {
					continue
				}
				attr := b.Attrs.Next()
				projs = append(projs, plan.Projection{
					Expr:      columnRef(binding.Attribute, binding),
					Attribute: attr,
					Alias:     binding.Column,
				})
				names = append(names, binding.Column)
				bindings = append(bindings, scope.Binding{Attribute: attr, Type: binding.Type, Column: binding.Column})
			}
			continue
		}
		e, err := b.buildExpr(c.Expr, sc)
		if err != nil {
			return relBuild{}, nil, err
		}
		alias := c.Alias
		if alias == "" {
			alias = exprDisplayName(c.Expr)
		}
		attr := b.Attrs.Next()
		projs = append(projs, plan.Projection{Expr: e, Attribute: attr, Alias: alias})
		names = append(names, alias)
		bindings = append(bindings, scope.Binding{Attribute: attr, Type: e.Type(), Column: alias})
	}

	node := plan.NewProject(cur.Node, projs, descriptorOf(cur.Attrs))
	attrs := make([]sql.AttributeID, len(projs))
	for i, p := range projs {
		attrs[i] = p.Attribute
	}
	out := relBuild{Node: node, Attrs: attrs, Scope: scope.NewRegisteredScope("", bindings)}
	return out, names, nil
}

// exprDisplayName derives the column name of an unaliased select-list
// expression: the source column name for a bare column reference, or the
// empty string for any other expression.
func exprDisplayName(e ast.Expr) string {
	if cr, ok := e.(*ast.ColumnRef); ok {
		return cr.Column
	}
	return ""
}

// applyDistinct implements `SELECT DISTINCT` as grouping by every
// projected column with no aggregate expressions, the standard
// translation (spec is silent on DISTINCT's plan shape; this keeps the
// plan-node surface to Aggregate rather than introducing a dedicated
// dedup node).
func (b *Builder) applyDistinct(cur relBuild) relBuild {
	groupExprs := make([]sql.Expression, len(cur.Attrs))
	groupAttrs := make([]sql.AttributeID, len(cur.Attrs))
	bindings := make([]scope.Binding, len(cur.Attrs))
	cols := cur.Node.RelType().Columns
	for i, attr := range cur.Attrs {
		t := scalarTypeOf(cols[i])
		groupExprs[i] = expression.NewColumnReference(attr, "", cols[i].Name, t)
		fresh := b.Attrs.Next()
		groupAttrs[i] = fresh
		bindings[i] = scope.Binding{Attribute: fresh, Type: t, Column: cols[i].Name}
	}
	node := plan.NewAggregate(cur.Node, groupExprs, groupAttrs, nil, descriptorOf(cur.Attrs))
	return relBuild{Node: node, Attrs: groupAttrs, Scope: scope.NewRegisteredScope("", bindings)}
}
