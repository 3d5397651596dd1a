package expression

import (
	"fmt"

	"github.com/Digithought/quereus-sub010/sql"
)

// ColumnReference resolves to exactly one row descriptor in the active
// scope stack at runtime, via its Attribute ID (spec §3 invariants). Name
// and Table are retained only for String()/diagnostics — execution never
// looks a column up by name.
type ColumnReference struct {
	Attribute sql.AttributeID
	Name      string
	Table     string
	Typ       sql.ScalarType
}

func NewColumnReference(attr sql.AttributeID, table, name string, t sql.ScalarType) *ColumnReference {
	return &ColumnReference{Attribute: attr, Name: name, Table: table, Typ: t}
}

func (c *ColumnReference) Type() sql.ScalarType       { return c.Typ }
func (c *ColumnReference) Children() []sql.Expression { return nil }

func (c *ColumnReference) Eval(ctx *sql.Context) (sql.Value, error) {
	v, ok := ctx.Rows.Resolve(c.Attribute)
	if !ok {
		return sql.Null, sql.ErrInternal.New(fmt.Sprintf("attribute %d not bound in active row context", c.Attribute))
	}
	return v, nil
}

func (c *ColumnReference) String() string {
	if c.Table != "" {
		return fmt.Sprintf("%s.%s", c.Table, c.Name)
	}
	return c.Name
}
