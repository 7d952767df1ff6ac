package cdf

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameIndex(t *testing.T) {
	names := make([]string, 500)
	for i := range names {
		names[i] = fmt.Sprintf("probe_set_%05d_at", i)
	}
	idx, err := BuildNameIndex(names)
	require.NoError(t, err)
	require.Equal(t, len(names), idx.Len())

	for i, name := range names {
		got, ok := idx.Lookup(name)
		require.True(t, ok, name)
		require.Equal(t, i, got, name)
	}

	_, ok := idx.Lookup("missing_at")
	require.False(t, ok)
	_, ok = idx.Lookup("")
	require.False(t, ok)
}

func TestNameIndexDuplicatesAndBlanks(t *testing.T) {
	idx, err := BuildNameIndex([]string{"a", "", "b", "a"})
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	got, ok := idx.Lookup("a")
	require.True(t, ok)
	require.Equal(t, 0, got, "duplicates resolve to the first occurrence")

	got, ok = idx.Lookup("b")
	require.True(t, ok)
	require.Equal(t, 2, got)
}

func TestNameIndexEmpty(t *testing.T) {
	idx, err := BuildNameIndex(nil)
	require.NoError(t, err)
	require.Zero(t, idx.Len())
	_, ok := idx.Lookup("x")
	require.False(t, ok)
}
