package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a debug-level logger that writes to stderr, ensuring
// all config debug output appears in test output for CI visibility.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	tomlContent := `
[device]
device_uuid = "11111111-1111-1111-1111-111111111111"
discover_port = 41000
route_port = 41001
data_port = 41002
transfer_thread_count = 4
download_cache_volume = "4GiB"

[filter]
skip_files = ["*.tmp", "*.swp"]
skip_dirs = ["node_modules", ".git"]
skip_dotfiles = true
skip_symlinks = true
max_file_size = "1GB"
ignore_marker = ".syncignore"

[transfers]
upload_limit = "5MB/s"
download_limit = "10MB/s"
transfer_order = "size_asc"

[safety]
big_delete_threshold = 500
big_delete_percentage = 25
big_delete_min_items = 5
min_free_space = "2GB"
use_local_trash = false
disable_hash_validation = true
sync_dir_permissions = "0755"
sync_file_permissions = "0644"
tombstone_retention_days = 14

[sync]
sync_interval = "10m"
fullscan_frequency = 6
websocket = false
dry_run = true
verify_interval = "168h"
shutdown_timeout = "60s"

[logging]
log_level = "debug"
log_file = "/tmp/zisync.log"
log_format = "json"
log_retention_days = 7

[network]
connect_timeout = "30s"
data_timeout = "120s"
user_agent = "zisync/test"
force_http_11 = true
`

	path := writeTestConfig(t, tomlContent)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "11111111-1111-1111-1111-111111111111", cfg.Device.DeviceUUID)
	assert.Equal(t, 41000, cfg.Device.DiscoverPort)
	assert.Equal(t, 41001, cfg.Device.RoutePort)
	assert.Equal(t, 41002, cfg.Device.DataPort)
	assert.Equal(t, 4, cfg.Device.TransferThreadCount)
	assert.Equal(t, "4GiB", cfg.Device.DownloadCacheVolume)

	assert.Equal(t, []string{"*.tmp", "*.swp"}, cfg.Filter.SkipFiles)
	assert.Equal(t, []string{"node_modules", ".git"}, cfg.Filter.SkipDirs)
	assert.True(t, cfg.Filter.SkipDotfiles)
	assert.True(t, cfg.Filter.SkipSymlinks)
	assert.Equal(t, "1GB", cfg.Filter.MaxFileSize)
	assert.Equal(t, ".syncignore", cfg.Filter.IgnoreMarker)

	assert.Equal(t, "5MB/s", cfg.Transfers.UploadLimit)
	assert.Equal(t, "10MB/s", cfg.Transfers.DownloadLimit)
	assert.Equal(t, "size_asc", cfg.Transfers.TransferOrder)

	assert.Equal(t, 500, cfg.Safety.BigDeleteThreshold)
	assert.Equal(t, 25, cfg.Safety.BigDeletePercentage)
	assert.Equal(t, 5, cfg.Safety.BigDeleteMinItems)
	assert.Equal(t, "2GB", cfg.Safety.MinFreeSpace)
	assert.False(t, cfg.Safety.UseLocalTrash)
	assert.True(t, cfg.Safety.DisableHashValidation)
	assert.Equal(t, "0755", cfg.Safety.SyncDirPermissions)
	assert.Equal(t, "0644", cfg.Safety.SyncFilePermissions)
	assert.Equal(t, 14, cfg.Safety.TombstoneRetentionDays)

	assert.Equal(t, "10m", cfg.Sync.SyncInterval)
	assert.Equal(t, 6, cfg.Sync.FullscanFrequency)
	assert.False(t, cfg.Sync.Websocket)
	assert.True(t, cfg.Sync.DryRun)
	assert.Equal(t, "168h", cfg.Sync.VerifyInterval)
	assert.Equal(t, "60s", cfg.Sync.ShutdownTimeout)

	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "/tmp/zisync.log", cfg.Logging.LogFile)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
	assert.Equal(t, 7, cfg.Logging.LogRetentionDays)

	assert.Equal(t, "30s", cfg.Network.ConnectTimeout)
	assert.Equal(t, "120s", cfg.Network.DataTimeout)
	assert.Equal(t, "zisync/test", cfg.Network.UserAgent)
	assert.True(t, cfg.Network.ForceHTTP11)
}

func TestLoad_MinimalConfig_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Device.TransferThreadCount)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, "5m", cfg.Sync.SyncInterval)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeTestConfig(t, `[filter
not valid toml`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml", testLogger(t))
	require.Error(t, err)
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, "[device]\ntransfer_thread_count = 0\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer_thread_count")
}

func TestLoadOrDefault_FileExists(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"debug\"\n")
	cfg, err := LoadOrDefault(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoadOrDefault_FileNotFound(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.toml", testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, 8, cfg.Device.TransferThreadCount)
}

func TestLoad_PartialConfig_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"warn\"\n")
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.LogLevel)
	assert.Equal(t, 8, cfg.Device.TransferThreadCount)
	assert.Equal(t, "5m", cfg.Sync.SyncInterval)
	assert.Equal(t, ".zisyncignore", cfg.Filter.IgnoreMarker)
}

func TestLoad_BandwidthSchedule(t *testing.T) {
	path := writeTestConfig(t, `
[transfers]
bandwidth_schedule = [
    { time = "08:00", limit = "5MB/s" },
    { time = "18:00", limit = "50MB/s" },
    { time = "23:00", limit = "0" },
]
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Transfers.BandwidthSchedule, 3)
	assert.Equal(t, "08:00", cfg.Transfers.BandwidthSchedule[0].Time)
	assert.Equal(t, "5MB/s", cfg.Transfers.BandwidthSchedule[0].Limit)
	assert.Equal(t, "18:00", cfg.Transfers.BandwidthSchedule[1].Time)
	assert.Equal(t, "23:00", cfg.Transfers.BandwidthSchedule[2].Time)
}

// --- Tree section tests ---

func TestLoad_SingleTreeSection(t *testing.T) {
	path := writeTestConfig(t, `
[logging]
log_level = "debug"

[tree.laptop]
local_path = "/home/toni/Projects"
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Trees, 1)

	tree := cfg.Trees["laptop"]
	assert.Equal(t, "/home/toni/Projects", tree.LocalPath)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoad_MultipleTreeSections(t *testing.T) {
	path := writeTestConfig(t, `
[filter]
skip_dotfiles = true

[tree.laptop]
local_path = "/home/toni/Projects"
peer_address = "192.168.1.5:41001"

[tree.backup]
local_path = "/mnt/backup/Projects"
favorites = ["notes.md", "src"]
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Trees, 2)

	laptop := cfg.Trees["laptop"]
	assert.Equal(t, "/home/toni/Projects", laptop.LocalPath)
	assert.Equal(t, "192.168.1.5:41001", laptop.PeerAddress)

	backup := cfg.Trees["backup"]
	assert.Equal(t, "/mnt/backup/Projects", backup.LocalPath)
	assert.Equal(t, []string{"notes.md", "src"}, backup.Favorites)
}

func TestLoad_TreeWithAllFlatFields(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"
sync_uuid = "22222222-2222-2222-2222-222222222222"
peer_address = "192.168.1.5:41001"
favorites = ["src"]
enabled = false
sync_interval = "10m"
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	tree := cfg.Trees["laptop"]
	assert.Equal(t, "/home/toni/Projects", tree.LocalPath)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", tree.SyncUUID)
	assert.Equal(t, "192.168.1.5:41001", tree.PeerAddress)
	assert.Equal(t, []string{"src"}, tree.Favorites)
	require.NotNil(t, tree.Enabled)
	assert.False(t, *tree.Enabled)
	assert.Equal(t, "10m", tree.SyncInterval)
}

func TestLoad_TreeWithSectionOverride(t *testing.T) {
	path := writeTestConfig(t, `
[filter]
skip_dotfiles = false

[tree.laptop]
local_path = "/home/toni/Projects"

[tree.laptop.filter]
skip_dotfiles = true
skip_dirs = ["vendor"]
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	tree := cfg.Trees["laptop"]
	require.NotNil(t, tree.Filter)
	assert.True(t, tree.Filter.SkipDotfiles)
	assert.Equal(t, []string{"vendor"}, tree.Filter.SkipDirs)
	assert.False(t, cfg.Filter.SkipDotfiles)
}

// --- ResolveTreeConfig tests ---

func TestResolveTreeConfig_SingleTree_AutoSelect(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "laptop", resolved.Name)
	assert.Equal(t, "/home/toni/Projects", resolved.LocalPath)
}

func TestResolveTreeConfig_NoTrees_Error(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"debug\"\n")
	_, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trees")
}

func TestResolveTreeConfig_MultipleTrees_NoSelector_Error(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"

[tree.backup]
local_path = "/mnt/backup"
`)
	_, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple trees")
}

func TestResolveTreeConfig_CLITreeSelector(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"

[tree.backup]
local_path = "/mnt/backup"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{Tree: "backup"},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "backup", resolved.Name)
}

func TestResolveTreeConfig_EnvTreeSelector(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"

[tree.backup]
local_path = "/mnt/backup"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path, Tree: "laptop"},
		CLIOverrides{},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "laptop", resolved.Name)
}

func TestResolveTreeConfig_CLITreeOverridesEnv(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"

[tree.backup]
local_path = "/mnt/backup"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path, Tree: "laptop"},
		CLIOverrides{Tree: "backup"},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "backup", resolved.Name)
}

func TestResolveTreeConfig_CLIConfigPathOverridesEnv(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: "/wrong/path"},
		CLIOverrides{ConfigPath: path},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "laptop", resolved.Name)
}

func TestResolveTreeConfig_CLIDryRunOverride(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"
`)
	dryRun := true
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{DryRun: &dryRun},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.True(t, resolved.Sync.DryRun)
}

func TestResolveTreeConfig_InvalidConfigFile(t *testing.T) {
	path := writeTestConfig(t, `[invalid toml`)
	_, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.Error(t, err)
}

func TestResolveTreeConfig_NoConfigFile_NoTrees_Error(t *testing.T) {
	_, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: "/nonexistent/config.toml"},
		CLIOverrides{},
		testLogger(t),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trees")
}

func TestResolveTreeConfig_PerTreeOverridesApplied(t *testing.T) {
	path := writeTestConfig(t, `
[filter]
skip_dotfiles = false

[sync]
sync_interval = "5m"

[tree.laptop]
local_path = "/home/toni/Projects"
sync_interval = "10m"

[tree.laptop.filter]
skip_dotfiles = true
skip_dirs = ["vendor"]
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.NoError(t, err)

	assert.True(t, resolved.Filter.SkipDotfiles)
	assert.Equal(t, []string{"vendor"}, resolved.Filter.SkipDirs)
	assert.Equal(t, "10m", resolved.Sync.SyncInterval)
}

func TestResolveTreeConfig_GlobalSettingsUsedWhenNoTreeOverride(t *testing.T) {
	path := writeTestConfig(t, `
[filter]
skip_dotfiles = true

[logging]
log_level = "debug"

[tree.laptop]
local_path = "/home/toni/Projects"
`)
	resolved, _, err := ResolveTreeConfig(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{},
		testLogger(t),
	)
	require.NoError(t, err)

	assert.True(t, resolved.Filter.SkipDotfiles)
	assert.Equal(t, "debug", resolved.Logging.LogLevel)
}

// --- Edge cases: unknown keys ---

func TestLoad_UnknownTopLevelSection(t *testing.T) {
	path := writeTestConfig(t, `
[networking]
connect_timeout = "30s"
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
}

func TestLoad_UnknownKeyInSection(t *testing.T) {
	path := writeTestConfig(t, `
[network]
conect_timeout = "30s"
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestLoad_UnknownKeyInTreeSection(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"
favorite = ["src"]
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "favorites")
}

func TestLoad_UnknownKeyInTreeSectionOverride(t *testing.T) {
	path := writeTestConfig(t, `
[tree.laptop]
local_path = "/home/toni/Projects"

[tree.laptop.filter]
skip_dofiles = true
`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skip_dotfiles")
}

func TestLoad_BandwidthScheduleSubField_NotFlagged(t *testing.T) {
	// bandwidth_schedule entries have "time" and "limit" sub-fields that
	// decode directly into BandwidthScheduleEntry — they must never be
	// flagged as unknown keys.
	path := writeTestConfig(t, `
[transfers]
bandwidth_schedule = [
    { time = "08:00", limit = "5MB/s" },
]
`)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Transfers.BandwidthSchedule, 1)
}
