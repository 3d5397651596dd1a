package planbuilder

import (
	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// buildCorrelatedSubquery builds stmt with outer threaded into its own
// scope chain, so WHERE/SELECT-list expressions inside the subquery can
// reference the enclosing query's columns (spec §4.1 "Subquery
// correlation"); buildSelectCore folds outer into its combinedScope.
func (b *Builder) buildCorrelatedSubquery(stmt ast.Statement, outer scope.Scope) (sql.Node, error) {
	rb, _, err := b.buildQueryBody(stmt, outer)
	if err != nil {
		return nil, err
	}
	return rb.Node, nil
}
