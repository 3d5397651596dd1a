package expression

import (
	"io"

	"github.com/Digithought/quereus-sub010/sql"
)

// Exists evaluates a (possibly correlated) subquery and reports whether it
// produced any row. Correlated subqueries rely on the enclosing row context
// already being installed when Eval runs (spec §4.1 "Subquery
// correlation").
type Exists struct {
	Runner sql.SubqueryRunner
	Query  sql.Node
	Negate bool
}

func NewExists(runner sql.SubqueryRunner, query sql.Node, negate bool) *Exists {
	return &Exists{Runner: runner, Query: query, Negate: negate}
}

func (e *Exists) Type() sql.ScalarType {
	return sql.ScalarType{Affinity: sql.AffinityInteger, Nullable: false}
}
func (e *Exists) Children() []sql.Expression { return nil }
func (e *Exists) String() string             { return "EXISTS(...)" }

func (e *Exists) Eval(ctx *sql.Context) (sql.Value, error) {
	iter, err := e.Runner.Run(ctx, e.Query)
	if err != nil {
		return sql.Null, err
	}
	defer iter.Close(ctx)
	_, err = iter.Next(ctx)
	found := err == nil
	if err != nil && err != io.EOF {
		return sql.Null, err
	}
	if e.Negate {
		found = !found
	}
	return sql.BoolValue(found), nil
}

// InSubquery evaluates Operand against every row a (possibly correlated)
// subquery produces.
type InSubquery struct {
	Operand sql.Expression
	Runner  sql.SubqueryRunner
	Query   sql.Node
	Negate  bool
}

func NewInSubquery(operand sql.Expression, runner sql.SubqueryRunner, query sql.Node, negate bool) *InSubquery {
	return &InSubquery{Operand: operand, Runner: runner, Query: query, Negate: negate}
}

func (i *InSubquery) Type() sql.ScalarType {
	return sql.ScalarType{Affinity: sql.AffinityInteger, Nullable: true}
}
func (i *InSubquery) Children() []sql.Expression { return []sql.Expression{i.Operand} }
func (i *InSubquery) String() string             { return i.Operand.String() + " IN (...)" }

func (i *InSubquery) Eval(ctx *sql.Context) (sql.Value, error) {
	operand, err := i.Operand.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	iter, err := i.Runner.Run(ctx, i.Query)
	if err != nil {
		return sql.Null, err
	}
	defer iter.Close(ctx)

	sawNull := false
	found := false
	for {
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return sql.Null, err
		}
		if len(row) == 0 {
			continue
		}
		if row[0].IsNull() {
			sawNull = true
			continue
		}
		if operand.IsNull() {
			continue
		}
		if sql.Equal(operand, row[0]) {
			found = true
			break
		}
	}
	result := found
	if i.Negate {
		result = !found
	}
	if !found && sawNull && !operand.IsNull() {
		// SQL NULL-propagation: x IN (set containing NULL, no match) is
		// UNKNOWN, not FALSE.
		return sql.Null, nil
	}
	return sql.BoolValue(result), nil
}

// ScalarSubquery evaluates a subquery expected to yield exactly one row,
// one column, and returns that value (NULL if the subquery is empty).
type ScalarSubquery struct {
	Runner sql.SubqueryRunner
	Query  sql.Node
	Typ    sql.ScalarType
}

func NewScalarSubquery(runner sql.SubqueryRunner, query sql.Node, t sql.ScalarType) *ScalarSubquery {
	return &ScalarSubquery{Runner: runner, Query: query, Typ: t}
}

func (s *ScalarSubquery) Type() sql.ScalarType       { return s.Typ }
func (s *ScalarSubquery) Children() []sql.Expression { return nil }
func (s *ScalarSubquery) String() string             { return "(SELECT ...)" }

func (s *ScalarSubquery) Eval(ctx *sql.Context) (sql.Value, error) {
	iter, err := s.Runner.Run(ctx, s.Query)
	if err != nil {
		return sql.Null, err
	}
	defer iter.Close(ctx)
	row, err := iter.Next(ctx)
	if err == io.EOF {
		return sql.Null, nil
	}
	if err != nil {
		return sql.Null, err
	}
	if len(row) == 0 {
		return sql.Null, nil
	}
	return row[0], nil
}
