package sql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type shape struct {
	Op  string
	Col int
}

func TestStructuralIdentityStableAndChildSensitive(t *testing.T) {
	a := StructuralIdentity(shape{Op: "filter", Col: 1}, 7, 9)
	b := StructuralIdentity(shape{Op: "filter", Col: 1}, 7, 9)
	require.Equal(t, a, b)

	c := StructuralIdentity(shape{Op: "filter", Col: 1}, 7, 10)
	require.NotEqual(t, a, c)

	d := StructuralIdentity(shape{Op: "filter", Col: 2}, 7, 9)
	require.NotEqual(t, a, d)
}
