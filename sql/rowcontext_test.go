package sql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowContextResolvesThroughIndex(t *testing.T) {
	rc := NewRowContext()
	outerRow := Row{IntValue(1), TextValue("outer")}
	outerTok := rc.Push(RowDescriptor{1: 0, 2: 1}, func() Row { return outerRow })

	innerRow := Row{IntValue(99)}
	innerTok := rc.Push(RowDescriptor{1: 0}, func() Row { return innerRow })

	v, ok := rc.Resolve(1)
	require.True(t, ok)
	require.Equal(t, int64(99), v.Int)

	require.True(t, rc.CheckIndexCoherent())

	rc.Pop(innerTok)

	v, ok = rc.Resolve(1)
	require.True(t, ok)
	require.Equal(t, int64(1), v.Int)
	require.True(t, rc.CheckIndexCoherent())

	rc.Pop(outerTok)
	_, ok = rc.Resolve(1)
	require.False(t, ok)
}

func TestSlotStreaming(t *testing.T) {
	rc := NewRowContext()
	slot := NewSlot(rc, RowDescriptor{10: 0})
	defer slot.Close()

	slot.Set(Row{IntValue(5)})
	v, ok := rc.Resolve(10)
	require.True(t, ok)
	require.Equal(t, int64(5), v.Int)

	slot.Set(Row{IntValue(6)})
	v, ok = rc.Resolve(10)
	require.True(t, ok)
	require.Equal(t, int64(6), v.Int)
}

func TestWithContextReleasesOnError(t *testing.T) {
	rc := NewRowContext()
	err := WithContext(rc, RowDescriptor{1: 0}, Row{IntValue(1)}, func() error {
		_, ok := rc.Resolve(1)
		require.True(t, ok)
		return ErrInternal.New("boom")
	})
	require.Error(t, err)
	_, ok := rc.Resolve(1)
	require.False(t, ok)
}
