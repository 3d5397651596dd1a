// Package expression implements the scalar plan-node variants named in
// spec.md §9 ("a plan node is a tagged variant"): Literal, ColumnReference,
// unary/binary operators, function calls, CASE, CAST, and the
// subquery-bearing expressions (EXISTS, IN, scalar subquery). Each type
// implements sql.Expression directly, so its Eval method is itself the
// "callable" the instruction emitter hands to the scheduler (spec §4.2).
package expression

import "github.com/Digithought/quereus-sub010/sql"

// Literal is a constant scalar value.
type Literal struct {
	Value sql.Value
	Typ   sql.ScalarType
}

func NewLiteral(v sql.Value, t sql.ScalarType) *Literal {
	return &Literal{Value: v, Typ: t}
}

func (l *Literal) Type() sql.ScalarType                     { return l.Typ }
func (l *Literal) Children() []sql.Expression               { return nil }
func (l *Literal) Eval(ctx *sql.Context) (sql.Value, error) { return l.Value, nil }
func (l *Literal) String() string                           { return l.Value.String() }
