package metastore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zisync/zisync/internal/vclock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(context.Background(), ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	m, err := s.Get(context.Background(), "tree-a", "/missing")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestApplyBatchAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := &FileMeta{
		TreeUUID: "tree-a", Path: "/a.txt", Type: FileTypeRegular,
		Length: 10, MtimeMS: 1000, SHA1: "deadbeef", Status: StatusNormal,
		USN: 1, Clock: vclock.Clock{"tree-a": 1},
		CreatedAt: 1, UpdatedAt: 1,
	}
	require.NoError(t, s.ApplyBatch(ctx, "tree-a", []BatchOp{{Meta: meta}}))

	got, err := s.Get(ctx, "tree-a", "/a.txt")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "deadbeef", got.SHA1)
	assert.Equal(t, uint64(1), got.Clock["tree-a"])
}

func TestScanOrdersByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/c", "/a", "/b"} {
		m := &FileMeta{TreeUUID: "t", Path: p, Type: FileTypeRegular, Status: StatusNormal,
			USN: 1, Clock: vclock.New()}
		require.NoError(t, s.ApplyBatch(ctx, "t", []BatchOp{{Meta: m}}))
	}

	rows, err := s.Scan(ctx, "t", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"/a", "/b", "/c"}, []string{rows[0].Path, rows[1].Path, rows[2].Path})
}

func TestScanIncludesTombstones(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &FileMeta{TreeUUID: "t", Path: "/a", Status: StatusRemoved, USN: 2, Clock: vclock.New()}
	require.NoError(t, s.ApplyBatch(ctx, "t", []BatchOp{{Meta: m}}))

	rows, err := s.Scan(ctx, "t", "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsTombstone())
}

func TestAllocateUSNsIsMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AllocateUSNs(ctx, "tree-a", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := s.AllocateUSNs(ctx, "tree-a", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), second)
}

func TestAllocateUSNsPerTreeIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.AllocateUSNs(ctx, "tree-a", 5)
	require.NoError(t, err)
	b, err := s.AllocateUSNs(ctx, "tree-b", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(1), b)
}

func TestDeviceSyncTreeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertDevice(ctx, &Device{DeviceUUID: "dev-1", Name: "laptop", CreatedAt: 1}))
	d, err := s.GetDevice(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "laptop", d.Name)

	require.NoError(t, s.UpsertSync(ctx, &Sync{
		SyncUUID: "sync-1", Name: "docs", Permission: PermReadWrite,
		Type: SyncNormal, CreatorUUID: "dev-1", CreatedAt: 1,
	}))
	sy, err := s.GetSync(ctx, "sync-1")
	require.NoError(t, err)
	require.NotNil(t, sy)
	assert.Equal(t, PermReadWrite, sy.Permission)

	require.NoError(t, s.UpsertTree(ctx, &Tree{
		TreeUUID: "tree-1", SyncUUID: "sync-1", DeviceID: "dev-1",
		RootPath: "/home/me/docs", Role: RoleNone, Enabled: true, CreatedAt: 1,
	}))
	trees, err := s.ListTreesBySync(ctx, "sync-1")
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "/home/me/docs", trees[0].RootPath)
}
