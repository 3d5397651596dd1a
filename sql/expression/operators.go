package expression

import (
	"math/big"
	"strings"

	"github.com/Digithought/quereus-sub010/sql"
)

type BinaryOp string

const (
	Add    BinaryOp = "+"
	Sub    BinaryOp = "-"
	Mul    BinaryOp = "*"
	Div    BinaryOp = "/"
	Mod    BinaryOp = "%"
	Eq     BinaryOp = "="
	Neq    BinaryOp = "<>"
	Lt     BinaryOp = "<"
	Lte    BinaryOp = "<="
	Gt     BinaryOp = ">"
	Gte    BinaryOp = ">="
	And    BinaryOp = "AND"
	Or     BinaryOp = "OR"
	Concat BinaryOp = "||"
	Like   BinaryOp = "LIKE"
)

// Binary is an arithmetic, comparison, boolean, or string binary operator.
// AND/OR short-circuit with SQL three-valued-logic semantics.
type Binary struct {
	Op          BinaryOp
	Left, Right sql.Expression
	Typ         sql.ScalarType
}

func NewBinary(op BinaryOp, l, r sql.Expression, t sql.ScalarType) *Binary {
	return &Binary{Op: op, Left: l, Right: r, Typ: t}
}

func (b *Binary) Type() sql.ScalarType       { return b.Typ }
func (b *Binary) Children() []sql.Expression { return []sql.Expression{b.Left, b.Right} }
func (b *Binary) String() string {
	return b.Left.String() + " " + string(b.Op) + " " + b.Right.String()
}

func (b *Binary) Eval(ctx *sql.Context) (sql.Value, error) {
	if b.Op == And || b.Op == Or {
		return b.evalLogical(ctx)
	}

	l, err := b.Left.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	r, err := b.Right.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	if l.IsNull() || r.IsNull() {
		switch b.Op {
		case Eq, Neq, Lt, Lte, Gt, Gte, Like:
			return sql.Null, nil
		default:
			if l.IsNull() || r.IsNull() {
				return sql.Null, nil
			}
		}
	}

	switch b.Op {
	case Eq:
		return sql.BoolValue(sql.Equal(l, r)), nil
	case Neq:
		return sql.BoolValue(!sql.Equal(l, r)), nil
	case Lt:
		return sql.BoolValue(sql.Compare(l, r) < 0), nil
	case Lte:
		return sql.BoolValue(sql.Compare(l, r) <= 0), nil
	case Gt:
		return sql.BoolValue(sql.Compare(l, r) > 0), nil
	case Gte:
		return sql.BoolValue(sql.Compare(l, r) >= 0), nil
	case Concat:
		return sql.TextValue(l.String() + r.String()), nil
	case Like:
		return sql.BoolValue(likeMatch(l.String(), r.String())), nil
	case Add, Sub, Mul, Div, Mod:
		return evalArith(b.Op, l, r)
	default:
		return sql.Null, sql.ErrUnsupported.New("operator " + string(b.Op))
	}
}

// evalLogical implements SQL three-valued AND/OR: a NULL operand only
// determines the result if the other side cannot already decide it
// (false short-circuits AND, true short-circuits OR).
func (b *Binary) evalLogical(ctx *sql.Context) (sql.Value, error) {
	l, err := b.Left.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	if b.Op == And && !l.IsNull() && !l.Truthy() {
		return sql.BoolValue(false), nil
	}
	if b.Op == Or && !l.IsNull() && l.Truthy() {
		return sql.BoolValue(true), nil
	}
	r, err := b.Right.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	if l.IsNull() || r.IsNull() {
		if b.Op == And && (!r.IsNull() && !r.Truthy()) {
			return sql.BoolValue(false), nil
		}
		if b.Op == Or && (!r.IsNull() && r.Truthy()) {
			return sql.BoolValue(true), nil
		}
		return sql.Null, nil
	}
	if b.Op == And {
		return sql.BoolValue(l.Truthy() && r.Truthy()), nil
	}
	return sql.BoolValue(l.Truthy() || r.Truthy()), nil
}

func evalArith(op BinaryOp, l, r sql.Value) (sql.Value, error) {
	if l.Kind == sql.KindFloat64 || r.Kind == sql.KindFloat64 {
		lf, rf := asFloat(l), asFloat(r)
		switch op {
		case Add:
			return sql.FloatValue(lf + rf), nil
		case Sub:
			return sql.FloatValue(lf - rf), nil
		case Mul:
			return sql.FloatValue(lf * rf), nil
		case Div:
			if rf == 0 {
				return sql.Null, nil
			}
			return sql.FloatValue(lf / rf), nil
		}
	}
	if l.Kind == sql.KindBigInt || r.Kind == sql.KindBigInt {
		lb, rb := asBig(l), asBig(r)
		out := new(big.Int)
		switch op {
		case Add:
			out.Add(lb, rb)
		case Sub:
			out.Sub(lb, rb)
		case Mul:
			out.Mul(lb, rb)
		case Div:
			if rb.Sign() == 0 {
				return sql.Null, nil
			}
			out.Div(lb, rb)
		case Mod:
			if rb.Sign() == 0 {
				return sql.Null, nil
			}
			out.Mod(lb, rb)
		}
		return sql.BigIntValue(out), nil
	}
	li, ri := l.Int, r.Int
	switch op {
	case Add:
		return sql.IntValue(li + ri), nil
	case Sub:
		return sql.IntValue(li - ri), nil
	case Mul:
		return sql.IntValue(li * ri), nil
	case Div:
		if ri == 0 {
			return sql.Null, nil
		}
		return sql.IntValue(li / ri), nil
	case Mod:
		if ri == 0 {
			return sql.Null, nil
		}
		return sql.IntValue(li % ri), nil
	}
	return sql.Null, sql.ErrUnsupported.New("operator " + string(op))
}

func asFloat(v sql.Value) float64 {
	switch v.Kind {
	case sql.KindInt64:
		return float64(v.Int)
	case sql.KindFloat64:
		return v.Float
	case sql.KindBigInt:
		f := new(big.Float).SetInt(v.Big)
		out, _ := f.Float64()
		return out
	default:
		return 0
	}
}

func asBig(v sql.Value) *big.Int {
	switch v.Kind {
	case sql.KindBigInt:
		return v.Big
	case sql.KindInt64:
		return big.NewInt(v.Int)
	default:
		return big.NewInt(0)
	}
}

// likeMatch implements a minimal SQL LIKE with % and _ wildcards.
func likeMatch(text, pattern string) bool {
	return likeMatchRunes([]rune(text), []rune(pattern))
}

func likeMatchRunes(text, pattern []rune) bool {
	if len(pattern) == 0 {
		return len(text) == 0
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(text); i++ {
			if likeMatchRunes(text[i:], pattern[1:]) {
				return true
			}
		}
		return false
	case '_':
		if len(text) == 0 {
			return false
		}
		return likeMatchRunes(text[1:], pattern[1:])
	default:
		if len(text) == 0 || !strings.EqualFold(string(text[0]), string(pattern[0])) {
			return false
		}
		return likeMatchRunes(text[1:], pattern[1:])
	}
}

// Unary is NOT or unary minus.
type UnaryOp string

const (
	Neg UnaryOp = "-"
	Not UnaryOp = "NOT"
)

type Unary struct {
	Op      UnaryOp
	Operand sql.Expression
	Typ     sql.ScalarType
}

func NewUnary(op UnaryOp, operand sql.Expression, t sql.ScalarType) *Unary {
	return &Unary{Op: op, Operand: operand, Typ: t}
}

func (u *Unary) Type() sql.ScalarType       { return u.Typ }
func (u *Unary) Children() []sql.Expression { return []sql.Expression{u.Operand} }
func (u *Unary) String() string             { return string(u.Op) + " " + u.Operand.String() }

func (u *Unary) Eval(ctx *sql.Context) (sql.Value, error) {
	v, err := u.Operand.Eval(ctx)
	if err != nil {
		return sql.Null, err
	}
	if u.Op == Not {
		if v.IsNull() {
			return sql.Null, nil
		}
		return sql.BoolValue(!v.Truthy()), nil
	}
	// Neg
	if v.IsNull() {
		return sql.Null, nil
	}
	switch v.Kind {
	case sql.KindInt64:
		return sql.IntValue(-v.Int), nil
	case sql.KindFloat64:
		return sql.FloatValue(-v.Float), nil
	case sql.KindBigInt:
		return sql.BigIntValue(new(big.Int).Neg(v.Big)), nil
	default:
		return sql.Null, sql.ErrUnsupported.New("unary - on " + v.Kind.String())
	}
}
