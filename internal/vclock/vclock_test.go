package vclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareEqual(t *testing.T) {
	a := Clock{"dev-a": 3, "dev-b": 1}
	b := a.Clone()
	assert.Equal(t, Equal, Compare(a, b))
}

func TestCompareLessGreater(t *testing.T) {
	a := Clock{"dev-a": 1}
	b := a.Increment("dev-a")
	assert.Equal(t, Less, Compare(a, b))
	assert.Equal(t, Greater, Compare(b, a))
}

func TestCompareConcurrent(t *testing.T) {
	a := Clock{"dev-a": 2, "dev-b": 0}
	b := Clock{"dev-a": 1, "dev-b": 1}
	assert.Equal(t, Concurrent, Compare(a, b))
	assert.Equal(t, Concurrent, Compare(b, a))
}

func TestCompareMissingEntriesAreZero(t *testing.T) {
	a := Clock{"dev-a": 1}
	b := Clock{"dev-a": 1, "dev-b": 2}
	assert.Equal(t, Less, Compare(a, b))
}

func TestCompareEmptyClocks(t *testing.T) {
	assert.Equal(t, Equal, Compare(nil, Clock{}))
}

func TestIncrementDoesNotMutateReceiver(t *testing.T) {
	a := Clock{"dev-a": 1}
	b := a.Increment("dev-a")
	require.Equal(t, uint64(1), a["dev-a"])
	require.Equal(t, uint64(2), b["dev-a"])
}

func TestMergeTakesComponentwiseMax(t *testing.T) {
	a := Clock{"dev-a": 3, "dev-b": 1}
	b := Clock{"dev-a": 1, "dev-b": 5, "dev-c": 2}
	m := Merge(a, b)
	assert.Equal(t, Clock{"dev-a": 3, "dev-b": 5, "dev-c": 2}, m)
}

func TestDominates(t *testing.T) {
	a := Clock{"dev-a": 2}
	b := Clock{"dev-a": 1}
	assert.True(t, Dominates(a, b))
	assert.False(t, Dominates(b, a))
	assert.True(t, Dominates(a, a))
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "concurrent", Concurrent.String())
}
