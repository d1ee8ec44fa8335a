package indexer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zisync/zisync/internal/metastore"
)

func newTestIndexer(t *testing.T) (*Indexer, *metastore.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := metastore.Open(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil, nil, logger), store
}

func TestIndexInsertsNewFile(t *testing.T) {
	ix, store := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	tree := &metastore.Tree{TreeUUID: "tree-1", RootPath: root}
	require.NoError(t, ix.Index(context.Background(), tree, nil))

	m, err := store.Get(context.Background(), "tree-1", "/a.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, metastore.FileTypeRegular, m.Type)
	assert.Equal(t, int64(5), m.Length)
	assert.NotEmpty(t, m.SHA1)
	assert.Equal(t, uint64(1), m.Clock["tree-1"])
}

func TestIndexSkipsIgnoredDir(t *testing.T) {
	ix, store := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".zstm", "session"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".zstm", "session", "partial"), []byte("x"), 0o644))

	tree := &metastore.Tree{TreeUUID: "tree-1", RootPath: root}
	require.NoError(t, ix.Index(context.Background(), tree, nil))

	rows, err := store.Scan(context.Background(), "tree-1", "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIndexTombstonesDeletedFile(t *testing.T) {
	ix, store := newTestIndexer(t)
	root := t.TempDir()
	filePath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	tree := &metastore.Tree{TreeUUID: "tree-1", RootPath: root}
	require.NoError(t, ix.Index(context.Background(), tree, nil))

	require.NoError(t, os.Remove(filePath))
	require.NoError(t, ix.Index(context.Background(), tree, nil))

	m, err := store.Get(context.Background(), "tree-1", "/a.txt")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.True(t, m.IsTombstone())
	assert.Equal(t, uint64(2), m.Clock["tree-1"])
}

func TestIndexNoopWhenUnchanged(t *testing.T) {
	ix, store := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	tree := &metastore.Tree{TreeUUID: "tree-1", RootPath: root}
	require.NoError(t, ix.Index(context.Background(), tree, nil))
	first, err := store.Get(context.Background(), "tree-1", "/a.txt")
	require.NoError(t, err)

	require.NoError(t, ix.Index(context.Background(), tree, nil))
	second, err := store.Get(context.Background(), "tree-1", "/a.txt")
	require.NoError(t, err)

	assert.Equal(t, first.USN, second.USN)
	assert.Equal(t, first.Clock["tree-1"], second.Clock["tree-1"])
}
