package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEffective_DefaultTree(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
	}

	name, tree, err := MatchTree(cfg, "laptop")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	var buf bytes.Buffer
	err = RenderEffective(resolved, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `tree "laptop"`)
	assert.Contains(t, output, "local_path")
	assert.Contains(t, output, "/home/toni/Projects")
	assert.Contains(t, output, "[filter]")
	assert.Contains(t, output, "[transfers]")
	assert.Contains(t, output, "[safety]")
	assert.Contains(t, output, "[sync]")
	assert.Contains(t, output, "[logging]")
	assert.Contains(t, output, "[network]")
}

func TestRenderEffective_OptionalFieldsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trees = map[string]Tree{
		"work": {
			LocalPath:   "/home/toni/Work",
			SyncUUID:    "22222222-2222-2222-2222-222222222222",
			PeerAddress: "192.168.1.5:41001",
			Favorites:   []string{"src"},
		},
	}

	name, tree, err := MatchTree(cfg, "work")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	var buf bytes.Buffer
	err = RenderEffective(resolved, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "sync_uuid")
	assert.Contains(t, output, "peer_address")
	assert.Contains(t, output, "favorites")
}

func TestRenderEffective_FilterListsShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filter.SkipFiles = []string{"*.tmp", "*.swp"}
	cfg.Filter.SkipDirs = []string{"node_modules"}
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
	}

	name, tree, err := MatchTree(cfg, "laptop")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	var buf bytes.Buffer
	err = RenderEffective(resolved, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "skip_files")
	assert.Contains(t, output, "*.tmp")
	assert.Contains(t, output, "skip_dirs")
	assert.Contains(t, output, "node_modules")
}

func TestRenderEffective_LogFileShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.LogFile = "/var/log/zisync.log"
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
	}

	name, tree, err := MatchTree(cfg, "laptop")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	var buf bytes.Buffer
	err = RenderEffective(resolved, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "log_file")
}

func TestRenderEffective_UserAgentShown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.UserAgent = "zisync/test"
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
	}

	name, tree, err := MatchTree(cfg, "laptop")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	var buf bytes.Buffer
	err = RenderEffective(resolved, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "user_agent")
}

// failWriter is a writer that always fails, used to exercise error paths
// in the errWriter pattern.
type failWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestRenderEffective_WriteError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
	}

	name, tree, err := MatchTree(cfg, "laptop")
	require.NoError(t, err)
	resolved := ResolveTree(cfg, name, &tree)

	err = RenderEffective(resolved, failWriter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWriteFailed)
}

func TestJoinQuoted(t *testing.T) {
	assert.Equal(t, `"a", "b", "c"`, joinQuoted([]string{"a", "b", "c"}))
	assert.Equal(t, `"single"`, joinQuoted([]string{"single"}))
	assert.Equal(t, "", joinQuoted(nil))
}
