package expression_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Digithought/quereus-sub010/sql"
	"github.com/Digithought/quereus-sub010/sql/expression"
)

func intLit(v int64) sql.Expression {
	return expression.NewLiteral(sql.IntValue(v), sql.ScalarType{Affinity: sql.AffinityInteger})
}

func TestBinaryArithmetic(t *testing.T) {
	ctx := sql.NewContext(nil, nil)
	e := expression.NewBinary(expression.Add, intLit(2), intLit(3), sql.ScalarType{Affinity: sql.AffinityInteger})
	v, err := e.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), v.Int)
}

func TestBinaryThreeValuedAnd(t *testing.T) {
	ctx := sql.NewContext(nil, nil)
	falseLit := expression.NewLiteral(sql.IntValue(0), sql.ScalarType{Affinity: sql.AffinityInteger})
	nullLit := expression.NewLiteral(sql.Null, sql.ScalarType{Affinity: sql.AffinityInteger, Nullable: true})

	// FALSE AND NULL = FALSE (short-circuits, doesn't propagate NULL).
	e := expression.NewBinary(expression.And, falseLit, nullLit, sql.ScalarType{Affinity: sql.AffinityInteger})
	v, err := e.Eval(ctx)
	require.NoError(t, err)
	require.False(t, v.Truthy())

	// TRUE AND NULL = NULL.
	trueLit := expression.NewLiteral(sql.IntValue(1), sql.ScalarType{Affinity: sql.AffinityInteger})
	e2 := expression.NewBinary(expression.And, trueLit, nullLit, sql.ScalarType{Affinity: sql.AffinityInteger})
	v2, err := e2.Eval(ctx)
	require.NoError(t, err)
	require.True(t, v2.IsNull())
}

func TestCaseSearchedForm(t *testing.T) {
	ctx := sql.NewContext(nil, nil)
	cond := expression.NewBinary(expression.Gt, intLit(5), intLit(3), sql.ScalarType{Affinity: sql.AffinityInteger})
	c := expression.NewCase(nil, []expression.CaseBranch{{When: cond, Then: intLit(100)}}, intLit(-1), sql.ScalarType{Affinity: sql.AffinityInteger})
	v, err := c.Eval(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(100), v.Int)
}
