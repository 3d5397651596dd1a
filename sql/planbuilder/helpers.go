package planbuilder

import (
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
)

func colRefLiteral(attr sql.AttributeID, col sql.Column) sql.Expression {
	return expression.NewColumnReference(attr, "", col.Name, scalarTypeOf(col))
}

func nullLiteral(col sql.Column) sql.Expression {
	return expression.NewLiteral(sql.Null, sql.ScalarType{Affinity: col.Affinity, Nullable: true})
}
