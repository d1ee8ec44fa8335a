package synclist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndFindSelf(t *testing.T) {
	l := New()
	assert.True(t, l.Add("/a/b"))
	assert.Equal(t, Self, l.Find("/a/b"))
}

func TestAddDuplicateRejected(t *testing.T) {
	l := New()
	assert.True(t, l.Add("/a/b"))
	assert.False(t, l.Add("/a/b"))
}

func TestChildCoveredByAncestor(t *testing.T) {
	l := New()
	require := assert.New(t)
	require.True(l.Add("/a"))
	require.True(l.Covered("/a/b/c"))
	require.Equal(Child, l.Find("/a/b/c"))
	// Adding a path already covered by an ancestor is a no-op.
	require.False(l.Add("/a/b"))
}

func TestAddAncestorCollapsesDescendants(t *testing.T) {
	l := New()
	assert.True(t, l.Add("/a/b"))
	assert.True(t, l.Add("/a/c"))
	assert.ElementsMatch(t, []string{"/a/b", "/a/c"}, l.Paths())

	// Adding the common ancestor collapses both prior entries.
	assert.True(t, l.Add("/a"))
	assert.Equal(t, []string{"/a"}, l.Paths())
	assert.True(t, l.Covered("/a/b"))
	assert.True(t, l.Covered("/a/anything/else"))
}

func TestAddRootCollapsesEverything(t *testing.T) {
	l := New()
	l.Add("/a/b")
	l.Add("/x/y")
	assert.True(t, l.Add("/"))
	assert.Equal(t, []string{"/"}, l.Paths())
	assert.True(t, l.Covered("/anything"))
}

func TestStrangerPaths(t *testing.T) {
	l := New()
	l.Add("/a/b")
	assert.Equal(t, Stranger, l.Find("/x/y"))
	assert.False(t, l.Covered("/x/y"))
}

func TestEdgeSplitOnDivergence(t *testing.T) {
	l := New()
	assert.True(t, l.Add("/abc"))
	assert.True(t, l.Add("/abd"))
	assert.Equal(t, Self, l.Find("/abc"))
	assert.Equal(t, Self, l.Find("/abd"))
	assert.Equal(t, Stranger, l.Find("/ab"))
}

func TestDelExactEntry(t *testing.T) {
	l := New()
	l.Add("/a/b")
	l.Add("/a/c")
	assert.True(t, l.Del("/a/b"))
	assert.Equal(t, Stranger, l.Find("/a/b"))
	assert.Equal(t, Self, l.Find("/a/c"))
}

func TestDelMissingEntry(t *testing.T) {
	l := New()
	l.Add("/a/b")
	assert.False(t, l.Del("/a/x"))
}

func TestDelMergesSiblingEdges(t *testing.T) {
	l := New()
	l.Add("/abc")
	l.Add("/abd")
	assert.True(t, l.Del("/abd"))
	assert.Equal(t, Self, l.Find("/abc"))
}

func TestCleanNormalizesPath(t *testing.T) {
	assert.Equal(t, "/", Clean(""))
	assert.Equal(t, "/a/b", Clean("a/b"))
	assert.Equal(t, "/a/b", Clean("/a//b/"))
}
