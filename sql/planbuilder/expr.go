package planbuilder

import (
	"fmt"
	"math/big"

	"github.com/Digithought/quereus-sub010/ast"
	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
	"github.com/Digithought/quereus-sub010/sql/scope"
)

// buildExpr resolves one scalar AST expression against sc, the way the
// teacher's expression builder walks a vitess expr tree (spec §4.1).
func (b *Builder) buildExpr(e ast.Expr, sc scope.Scope) (sql.Expression, error) {
	if b.aggSubst != nil {
		if ref, ok := b.aggSubst[e]; ok {
			return ref, nil
		}
	}
	switch x := e.(type) {
	case *ast.Literal:
		return buildLiteral(x), nil

	case *ast.ColumnRef:
		var binding scope.Binding
		var ok bool
		if x.Table != "" {
			binding, ok = sc.ResolveQualified(x.Table, x.Column)
		} else {
			binding, ok = sc.Resolve(x.Column)
		}
		if !ok {
			return nil, sql.ErrUnknownColumn.New(qualify(x.Table, x.Column))
		}
		return columnRef(binding.Attribute, binding), nil

	case *ast.BindParameter:
		if x.Name != "" {
			return expression.NewNamedBindVar(x.Name, sql.ScalarType{Affinity: sql.AffinityText, Nullable: true}), nil
		}
		idx := x.Index
		if idx == 0 {
			b.nextPositional++
			idx = b.nextPositional
		}
		return expression.NewPositionalBindVar(idx, sql.ScalarType{Affinity: sql.AffinityText, Nullable: true}), nil

	case *ast.BinaryExpr:
		return b.buildBinary(x, sc)

	case *ast.UnaryExpr:
		operand, err := b.buildExpr(x.Operand, sc)
		if err != nil {
			return nil, err
		}
		op := expression.Not
		if x.Op == ast.OpNeg {
			op = expression.Neg
		}
		return expression.NewUnary(op, operand, operand.Type()), nil

	case *ast.FunctionCall:
		return b.buildFunctionCall(x, sc)

	case *ast.CaseExpr:
		return b.buildCase(x, sc)

	case *ast.CastExpr:
		operand, err := b.buildExpr(x.Operand, sc)
		if err != nil {
			return nil, err
		}
		aff := affinityOf(x.Affinity)
		return expression.NewCast(operand, sql.ScalarType{Affinity: aff, Nullable: true}), nil

	case *ast.ExistsExpr:
		sub, err := b.buildCorrelatedSubquery(x.Query, sc)
		if err != nil {
			return nil, err
		}
		return expression.NewExists(b.Runner, sub, x.Not), nil

	case *ast.InSubqueryExpr:
		operand, err := b.buildExpr(x.Operand, sc)
		if err != nil {
			return nil, err
		}
		sub, err := b.buildCorrelatedSubquery(x.Query, sc)
		if err != nil {
			return nil, err
		}
		return expression.NewInSubquery(operand, b.Runner, sub, x.Not), nil

	case *ast.ScalarSubquery:
		sub, err := b.buildCorrelatedSubquery(x.Query, sc)
		if err != nil {
			return nil, err
		}
		t := sql.ScalarType{Affinity: sql.AffinityText, Nullable: true}
		if cols := sub.RelType().Columns; len(cols) > 0 {
			t = scalarTypeOf(cols[0])
		}
		return expression.NewScalarSubquery(b.Runner, sub, t), nil

	default:
		return nil, sql.ErrUnsupported.New(fmt.Sprintf("expression type %T", e))
	}
}

func qualify(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}

func buildLiteral(l *ast.Literal) *expression.Literal {
	switch v := l.Value.(type) {
	case nil:
		return expression.NewLiteral(sql.Null, sql.ScalarType{Affinity: sql.AffinityNumeric, Nullable: true})
	case int64:
		return expression.NewLiteral(sql.IntValue(v), sql.ScalarType{Affinity: sql.AffinityInteger})
	case *big.Int:
		return expression.NewLiteral(sql.BigIntValue(v), sql.ScalarType{Affinity: sql.AffinityInteger})
	case float64:
		return expression.NewLiteral(sql.FloatValue(v), sql.ScalarType{Affinity: sql.AffinityReal})
	case string:
		return expression.NewLiteral(sql.TextValue(v), sql.ScalarType{Affinity: sql.AffinityText})
	case []byte:
		return expression.NewLiteral(sql.BlobValue(v), sql.ScalarType{Affinity: sql.AffinityBlob})
	default:
		return expression.NewLiteral(sql.Null, sql.ScalarType{Affinity: sql.AffinityNumeric, Nullable: true})
	}
}

func (b *Builder) buildBinary(x *ast.BinaryExpr, sc scope.Scope) (sql.Expression, error) {
	l, err := b.buildExpr(x.Left, sc)
	if err != nil {
		return nil, err
	}
	r, err := b.buildExpr(x.Right, sc)
	if err != nil {
		return nil, err
	}
	op := expression.BinaryOp(x.Op)
	resultType := sql.ScalarType{Affinity: sql.AffinityInteger, Nullable: l.Type().Nullable || r.Type().Nullable}
	switch x.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		resultType.Affinity = widestAffinity(l.Type().Affinity, r.Type().Affinity)
	case ast.OpConcat:
		resultType.Affinity = sql.AffinityText
	}
	return expression.NewBinary(op, l, r, resultType), nil
}

func widestAffinity(a, bb sql.Affinity) sql.Affinity {
	if a == sql.AffinityReal || bb == sql.AffinityReal {
		return sql.AffinityReal
	}
	return sql.AffinityInteger
}

func (b *Builder) buildFunctionCall(x *ast.FunctionCall, sc scope.Scope) (sql.Expression, error) {
	fnAny, ok := b.Catalog.Functions().Lookup(x.Name)
	if !ok {
		return nil, sql.ErrUnknownFunction.New(x.Name)
	}
	fn, ok := fnAny.(sql.ScalarFunction)
	if !ok {
		return nil, sql.ErrUnsupported.New("aggregate function " + x.Name + " used outside an aggregate context")
	}
	args := make([]sql.Expression, 0, len(x.Args))
	for _, a := range x.Args {
		ae, err := b.buildExpr(a, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, ae)
	}
	argTypes := make([]sql.ScalarType, len(args))
	for i, a := range args {
		argTypes[i] = a.Type()
	}
	return expression.NewFunction(fn, args, fn.ReturnType(argTypes)), nil
}

func (b *Builder) buildCase(x *ast.CaseExpr, sc scope.Scope) (sql.Expression, error) {
	var operand sql.Expression
	var err error
	if x.Operand != nil {
		operand, err = b.buildExpr(x.Operand, sc)
		if err != nil {
			return nil, err
		}
	}
	branches := make([]expression.CaseBranch, 0, len(x.Whens))
	var resultType sql.ScalarType
	for _, w := range x.Whens {
		when, err := b.buildExpr(w.When, sc)
		if err != nil {
			return nil, err
		}
		then, err := b.buildExpr(w.Then, sc)
		if err != nil {
			return nil, err
		}
		resultType = then.Type()
		branches = append(branches, expression.CaseBranch{When: when, Then: then})
	}
	var els sql.Expression
	if x.Else != nil {
		els, err = b.buildExpr(x.Else, sc)
		if err != nil {
			return nil, err
		}
	}
	resultType.Nullable = true
	return expression.NewCase(operand, branches, els, resultType), nil
}
