package sql

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareOrdersNullFirst(t *testing.T) {
	require.Equal(t, -1, Compare(Null, IntValue(1)))
	require.Equal(t, 1, Compare(IntValue(1), Null))
	require.Equal(t, 0, Compare(Null, Null))
}

func TestCompareCrossNumericKinds(t *testing.T) {
	require.Equal(t, 0, Compare(IntValue(3), FloatValue(3.0)))
	require.Equal(t, -1, Compare(IntValue(2), BigIntValue(big.NewInt(3))))
	require.True(t, Equal(BigIntValue(big.NewInt(5)), IntValue(5)))
}

func TestConstraintFailureIsExactlyFalseOrZero(t *testing.T) {
	require.True(t, IntValue(0).IsConstraintFailure())
	require.False(t, Null.IsConstraintFailure())
	require.False(t, IntValue(1).IsConstraintFailure())
	require.False(t, TextValue("").IsConstraintFailure())
}
