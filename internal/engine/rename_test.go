package engine

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/treelock"
	"github.com/zisync/zisync/internal/wireserver"
)

// TestEngine_SyncOnce_RenameTransfersNoBytes renames an already-synced
// file locally and asserts the resulting plan carries it as a rename
// action (matched by content hash) rather than a remove-and-reinsert, so
// the data phase never re-transfers the unchanged bytes.
func TestEngine_SyncOnce_RenameTransfersNoBytes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	sy, err := e.CreateSync(ctx, "rename", metastore.PermReadWrite, metastore.SyncNormal)
	require.NoError(t, err)

	localRoot := t.TempDir()
	localTree, err := e.CreateTree(ctx, sy.SyncUUID, localRoot, metastore.RoleNone)
	require.NoError(t, err)

	remoteRoot := t.TempDir()
	remoteTree, err := e.CreateTree(ctx, sy.SyncUUID, remoteRoot, metastore.RoleNone)
	require.NoError(t, err)

	peerServer := httptest.NewServer(wireserver.New(wireserver.Config{
		Resolver: fixedResolver{root: remoteRoot},
		Locks:    &treelock.Set{},
		Logger:   testLogger(),
	}))
	t.Cleanup(peerServer.Close)
	e.RegisterPeer(localTree.TreeUUID, peerServer.URL)

	original := filepath.Join(localRoot, "report.txt")
	require.NoError(t, os.WriteFile(original, []byte("quarterly numbers"), 0o644))

	_, err = e.SyncOnce(ctx, sy.SyncUUID, localTree.TreeUUID, remoteTree.TreeUUID)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(remoteRoot, "report.txt"))
	require.NoError(t, err)

	renamed := filepath.Join(localRoot, "report-final.txt")
	require.NoError(t, os.Rename(original, renamed))

	plan, err := e.SyncOnce(ctx, sy.SyncUUID, localTree.TreeUUID, remoteTree.TreeUUID)
	require.NoError(t, err)

	require.Len(t, plan.PushRenames, 1)
	assert.Equal(t, "/report-final.txt", plan.PushRenames[0].Path)
	assert.Empty(t, plan.PushDatas, "a pure rename must not be planned as a data transfer")

	remoteMeta, err := e.store.Get(ctx, remoteTree.TreeUUID, "/report-final.txt")
	require.NoError(t, err)
	require.NotNil(t, remoteMeta)
	assert.Equal(t, "quarterly numbers", mustReadFile(t, filepath.Join(remoteRoot, "report.txt")))
}

func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
