package expression

import "github.com/Digithought/quereus-sub010/sql"

// PositionalRef reads a column by its index in the row held by the
// innermost active frame of sql.RowContext, rather than by attribute
// identity. It exists solely for plan-builder-internal passthrough wiring
// (re-exposing an inner node's columns under a CTE's or subquery's own
// fresh attribute IDs) where the inner row's shape, not its attribute IDs,
// is what's known at build time.
type PositionalRef struct {
	Index int
	Typ   sql.ScalarType
}

func NewPositionalRef(index int, t sql.ScalarType) *PositionalRef {
	return &PositionalRef{Index: index, Typ: t}
}

func (p *PositionalRef) Type() sql.ScalarType       { return p.Typ }
func (p *PositionalRef) Children() []sql.Expression { return nil }
func (p *PositionalRef) String() string             { return "$#" }

// Eval reads position Index of whatever row the innermost active scope
// frame currently holds. It relies on the emitter installing the source
// node's raw row (not yet attribute-resolved) as the newest frame before
// evaluating a passthrough Project's expressions — see sql/program's
// handling of plan.Project immediately wrapping a Materialize/EphemeralScan
// or subquery source.
func (p *PositionalRef) Eval(ctx *sql.Context) (sql.Value, error) {
	row := ctx.Rows.Current()
	if row == nil || p.Index >= len(row) {
		return sql.Null, sql.ErrInternal.New("positional reference out of range")
	}
	return row[p.Index], nil
}
