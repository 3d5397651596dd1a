package expression

import (
	"fmt"

	"github.com/Digithought/quereus-sub010/sql"
)

// BindVar reads a bound parameter, by 1-based position or by name, from the
// executing Context (spec §6 "statement.bind").
type BindVar struct {
	Index int
	Name  string
	Typ   sql.ScalarType
}

func NewPositionalBindVar(index int, t sql.ScalarType) *BindVar {
	return &BindVar{Index: index, Typ: t}
}

func NewNamedBindVar(name string, t sql.ScalarType) *BindVar {
	return &BindVar{Name: name, Typ: t}
}

func (b *BindVar) Type() sql.ScalarType       { return b.Typ }
func (b *BindVar) Children() []sql.Expression { return nil }

func (b *BindVar) Eval(ctx *sql.Context) (sql.Value, error) {
	if b.Name != "" {
		if v, ok := ctx.ParamsByName[b.Name]; ok {
			return v, nil
		}
		return sql.Null, sql.ErrUnknownParameter.New(b.Name)
	}
	if v, ok := ctx.ParamsByIndex[b.Index]; ok {
		return v, nil
	}
	return sql.Null, sql.ErrUnknownParameter.New(fmt.Sprintf("$%d", b.Index))
}

func (b *BindVar) String() string {
	if b.Name != "" {
		return "@" + b.Name
	}
	return fmt.Sprintf("$%d", b.Index)
}
