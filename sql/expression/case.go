package expression

import "github.com/Digithought/quereus-sub010/sql"

// CaseBranch is one WHEN/THEN pair of a CASE expression.
type CaseBranch struct {
	When sql.Expression
	Then sql.Expression
}

// Case implements both the "simple" (CASE operand WHEN ...) and "searched"
// (CASE WHEN cond ...) forms; Operand is nil for the searched form.
type Case struct {
	Operand sql.Expression
	Whens   []CaseBranch
	Else    sql.Expression
	Typ     sql.ScalarType
}

func NewCase(operand sql.Expression, whens []CaseBranch, els sql.Expression, t sql.ScalarType) *Case {
	return &Case{Operand: operand, Whens: whens, Else: els, Typ: t}
}

func (c *Case) Type() sql.ScalarType { return c.Typ }

func (c *Case) Children() []sql.Expression {
	var out []sql.Expression
	if c.Operand != nil {
		out = append(out, c.Operand)
	}
	for _, w := range c.Whens {
		out = append(out, w.When, w.Then)
	}
	if c.Else != nil {
		out = append(out, c.Else)
	}
	return out
}

func (c *Case) Eval(ctx *sql.Context) (sql.Value, error) {
	var operand sql.Value
	if c.Operand != nil {
		v, err := c.Operand.Eval(ctx)
		if err != nil {
			return sql.Null, err
		}
		operand = v
	}
	for _, w := range c.Whens {
		whenVal, err := w.When.Eval(ctx)
		if err != nil {
			return sql.Null, err
		}
		matched := false
		if c.Operand != nil {
			matched = !whenVal.IsNull() && !operand.IsNull() && sql.Equal(operand, whenVal)
		} else {
			matched = !whenVal.IsNull() && whenVal.Truthy()
		}
		if matched {
			return w.Then.Eval(ctx)
		}
	}
	if c.Else != nil {
		return c.Else.Eval(ctx)
	}
	return sql.Null, nil
}

func (c *Case) String() string { return "CASE ... END" }

// Cast coerces Operand's value to the affinity named by Typ.
type Cast struct {
	Operand sql.Expression
	Typ     sql.ScalarType
}

func NewCast(operand sql.Expression, t sql.ScalarType) *Cast {
	return &Cast{Operand: operand, Typ: t}
}

func (c *Cast) Type() sql.ScalarType       { return c.Typ }
func (c *Cast) Children() []sql.Expression { return []sql.Expression{c.Operand} }
func (c *Cast) String() string             { return "CAST(" + c.Operand.String() + ")" }

func (c *Cast) Eval(ctx *sql.Context) (sql.Value, error) {
	v, err := c.Operand.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	if v.IsNull() {
		return sql.Null, nil
	}
	return coerce(v, c.Typ.Affinity)
}

func coerce(v sql.Value, aff sql.Affinity) (sql.Value, error) {
	switch aff {
	case sql.AffinityText:
		return sql.TextValue(v.String()), nil
	case sql.AffinityInteger:
		switch v.Kind {
		case sql.KindInt64, sql.KindBigInt:
			return v, nil
		case sql.KindFloat64:
			return sql.IntValue(int64(v.Float)), nil
		default:
			return sql.Null, sql.ErrUnsupported.New("CAST to INTEGER from " + v.Kind.String())
		}
	case sql.AffinityReal:
		return sql.FloatValue(asFloat(v)), nil
	case sql.AffinityBlob:
		return sql.BlobValue([]byte(v.String())), nil
	default:
		return v, nil
	}
}
