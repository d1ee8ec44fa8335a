package wireclient

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/treelock"
	"github.com/zisync/zisync/internal/wire"
	"github.com/zisync/zisync/internal/wireserver"
)

type fixedResolver struct{ root string }

func (r fixedResolver) TreeRoot(string) (string, bool) { return r.root, true }

func newTestServer(t *testing.T, root string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := wireserver.New(wireserver.Config{
		Resolver: fixedResolver{root: root},
		Locks:    &treelock.Set{},
		Logger:   logger,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestClient_PushFile_CreatesRemoteFile(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "hello.txt"), []byte("hello world"), 0o644))

	ts := newTestServer(t, dstRoot)
	c := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	meta := &metastore.FileMeta{Path: "/hello.txt", Type: metastore.FileTypeRegular, Length: 11}
	headers := wire.SessionHeaders{RemoteTreeUUID: "dst-tree", LocalTreeUUID: "src-tree", TotalSize: 11, TotalFiles: 1}

	n, err := c.PushFile(context.Background(), ts.URL, headers, srcRoot, meta, true)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	got, err := os.ReadFile(filepath.Join(dstRoot, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestClient_PushFile_Directory(t *testing.T) {
	srcRoot := t.TempDir()
	dstRoot := t.TempDir()

	ts := newTestServer(t, dstRoot)
	c := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	meta := &metastore.FileMeta{Path: "/subdir", Type: metastore.FileTypeDirectory}
	headers := wire.SessionHeaders{RemoteTreeUUID: "dst-tree", LocalTreeUUID: "src-tree"}

	_, err := c.PushFile(context.Background(), ts.URL, headers, srcRoot, meta, true)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dstRoot, "subdir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestClient_PullFile_WritesLocalFile(t *testing.T) {
	remoteRoot := t.TempDir()
	localRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(remoteRoot, "doc.txt"), []byte("pulled content"), 0o644))

	ts := newTestServer(t, remoteRoot)
	c := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	headers := wire.SessionHeaders{RemoteTreeUUID: "remote-tree", LocalTreeUUID: "local-tree"}
	meta, n, err := c.PullFile(context.Background(), ts.URL, headers, localRoot, "/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)
	assert.Equal(t, "/doc.txt", meta.Path)

	got, err := os.ReadFile(filepath.Join(localRoot, "doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, "pulled content", string(got))
}

func TestClient_PushFile_PeerError(t *testing.T) {
	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "x.txt"), []byte("x"), 0o644))

	ts := newTestServer(t, t.TempDir())
	c := New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	meta := &metastore.FileMeta{Path: "/x.txt", Type: metastore.FileTypeRegular, Length: 1}
	// Missing RemoteTreeUUID triggers the server's header validation error.
	headers := wire.SessionHeaders{LocalTreeUUID: "src-tree"}

	_, err := c.PushFile(context.Background(), ts.URL, headers, srcRoot, meta, true)
	assert.Error(t, err)
}
