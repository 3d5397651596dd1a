package expression

import "github.com/Digithought/quereus-sub010/sql"

// Function calls a scalar function registered in the database's
// sql.FunctionRegistry. The function body itself is an external
// collaborator (spec §1); this node only resolves the name once at build
// time and evaluates its arguments at run time.
type Function struct {
	Fn   sql.ScalarFunction
	Args []sql.Expression
	Typ  sql.ScalarType
}

func NewFunction(fn sql.ScalarFunction, args []sql.Expression, t sql.ScalarType) *Function {
	return &Function{Fn: fn, Args: args, Typ: t}
}

func (f *Function) Type() sql.ScalarType       { return f.Typ }
func (f *Function) Children() []sql.Expression { return f.Args }

func (f *Function) Eval(ctx *sql.Context) (sql.Value, error) {
	args := make([]sql.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return sql.Null, err
		}
		args[i] = v
	}
	return f.Fn.Eval(ctx, args)
}

func (f *Function) String() string {
	s := f.Fn.Name() + "("
	for i, a := range f.Args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s + ")"
}
