package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invalidSizeStr = "not-a-size"

func validConfig() *Config {
	return DefaultConfig()
}

func TestValidate_ValidDefaults(t *testing.T) {
	err := Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidate_TransferThreadCount_BelowMin(t *testing.T) {
	cfg := validConfig()
	cfg.Device.TransferThreadCount = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer_thread_count")
}

func TestValidate_TransferThreadCount_AboveMax(t *testing.T) {
	cfg := validConfig()
	cfg.Device.TransferThreadCount = 65
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer_thread_count")
}

func TestValidate_Port_OutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Device.DiscoverPort = 70000
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover_port")
}

func TestValidate_DownloadCacheVolume_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Device.DownloadCacheVolume = invalidSizeStr
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download_cache_volume")
}

func TestValidate_TransferOrder_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.TransferOrder = "random"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer_order")
}

func TestValidate_TransferOrder_AllValid(t *testing.T) {
	for _, order := range []string{"default", "size_asc", "size_desc", "name_asc", "name_desc"} {
		cfg := validConfig()
		cfg.Transfers.TransferOrder = order
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", order)
	}
}

func TestValidate_UploadLimit_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.UploadLimit = invalidSizeStr
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_limit")
}

func TestValidate_DownloadLimit_TrimsRateSuffix(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.DownloadLimit = "5MB/s"
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_BigDeletePercentage_OutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.BigDeletePercentage = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big_delete_percentage")

	cfg.Safety.BigDeletePercentage = 101
	err = Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big_delete_percentage")
}

func TestValidate_BigDeleteThreshold_BelowMin(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.BigDeleteThreshold = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big_delete_threshold")
}

func TestValidate_BigDeleteMinItems_BelowMin(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.BigDeleteMinItems = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big_delete_min_items")
}

func TestValidate_TombstoneRetentionDays_Negative(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.TombstoneRetentionDays = -1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tombstone_retention_days")
}

func TestValidate_MinFreeSpace_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.MinFreeSpace = invalidSizeStr
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_free_space")
}

func TestValidate_Permissions_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"too short", "07"},
		{"too long", "07000"},
		{"not octal", "abc"},
		{"above max", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Safety.SyncDirPermissions = tt.value
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "sync_dir_permissions")
		})
	}
}

func TestValidate_Permissions_Valid(t *testing.T) {
	for _, perm := range []string{"0600", "0700", "0755", "0644", "777"} {
		cfg := validConfig()
		cfg.Safety.SyncDirPermissions = perm
		cfg.Safety.SyncFilePermissions = perm
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", perm)
	}
}

func TestValidate_SyncInterval_TooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.SyncInterval = "1s"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}

func TestValidate_SyncInterval_InvalidFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.SyncInterval = "not-a-duration"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync_interval")
}

func TestValidate_ShutdownTimeout_TooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.ShutdownTimeout = "1s"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown_timeout")
}

func TestValidate_ConnectTimeout_TooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Network.ConnectTimeout = "500ms"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
}

func TestValidate_DataTimeout_TooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Network.DataTimeout = "2s"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_timeout")
}

func TestValidate_FullscanFrequency_InvalidNonZero(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.FullscanFrequency = 1
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fullscan_frequency")
}

func TestValidate_FullscanFrequency_Zero(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.FullscanFrequency = 0
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_LogLevel_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_LogLevel_AllValid(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.LogLevel = level
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", level)
	}
}

func TestValidate_LogFormat_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogFormat = "xml"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_LogFormat_AllValid(t *testing.T) {
	for _, format := range []string{"auto", "text", "json"} {
		cfg := validConfig()
		cfg.Logging.LogFormat = format
		err := Validate(cfg)
		assert.NoError(t, err, "expected %s to be valid", format)
	}
}

func TestValidate_LogRetentionDays_BelowMin(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogRetentionDays = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_retention_days")
}

func TestValidate_IgnoreMarker_Empty(t *testing.T) {
	cfg := validConfig()
	cfg.Filter.IgnoreMarker = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ignore_marker")
}

func TestValidate_MaxFileSize_Invalid(t *testing.T) {
	cfg := validConfig()
	cfg.Filter.MaxFileSize = invalidSizeStr
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_file_size")
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Device.TransferThreadCount = 0
	cfg.Transfers.TransferOrder = "garbage"
	cfg.Logging.LogLevel = "garbage"

	err := Validate(cfg)
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "transfer_thread_count")
	assert.Contains(t, errStr, "transfer_order")
	assert.Contains(t, errStr, "log_level")
}

func TestValidate_BandwidthSchedule_InvalidTime(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.BandwidthSchedule = []BandwidthScheduleEntry{
		{Time: "25:00", Limit: "5MB/s"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bandwidth_schedule")
}

func TestValidate_BandwidthSchedule_NotSorted(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.BandwidthSchedule = []BandwidthScheduleEntry{
		{Time: "18:00", Limit: "50MB/s"},
		{Time: "08:00", Limit: "5MB/s"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sorted")
}

func TestValidate_BandwidthSchedule_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.BandwidthSchedule = []BandwidthScheduleEntry{
		{Time: "08:00", Limit: "5MB/s"},
		{Time: "18:00", Limit: "50MB/s"},
		{Time: "23:00", Limit: "0"},
	}
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_VerifyInterval_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.VerifyInterval = "168h"
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_VerifyInterval_Zero(t *testing.T) {
	cfg := validConfig()
	cfg.Sync.VerifyInterval = "0s"
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestParseScheduleTime_Valid(t *testing.T) {
	minutes, err := parseScheduleTime("08:30")
	require.NoError(t, err)
	assert.Equal(t, 8*60+30, minutes)

	minutes, err = parseScheduleTime("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, minutes)

	minutes, err = parseScheduleTime("00:00")
	require.NoError(t, err)
	assert.Equal(t, 0, minutes)
}

func TestParseScheduleTime_Invalid(t *testing.T) {
	for _, input := range []string{"25:00", "08:60", "abc", "8:30:00", ""} {
		t.Run(input, func(t *testing.T) {
			_, err := parseScheduleTime(input)
			assert.Error(t, err)
		})
	}
}

func TestValidate_BandwidthSchedule_BadTimeFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Transfers.BandwidthSchedule = []BandwidthScheduleEntry{
		{Time: "noon", Limit: "5MB/s"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "time")
}

// --- validateTrees tests ---

func TestValidate_Trees_Empty(t *testing.T) {
	cfg := validConfig()
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_Trees_DuplicateLocalPath(t *testing.T) {
	cfg := validConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
		"backup": {LocalPath: "/home/toni/Projects"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same local_path")
}

func TestValidate_Trees_OverlappingLocalPath(t *testing.T) {
	cfg := validConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects"},
		"nested": {LocalPath: "/home/toni/Projects/sub"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestValidate_Trees_InvalidSyncInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {LocalPath: "/home/toni/Projects", SyncInterval: "1s"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tree "laptop"`)
}

func TestValidate_Trees_EmptyLocalPathAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.Trees = map[string]Tree{
		"laptop": {},
	}
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_Trees_NonOverlappingSiblingPaths(t *testing.T) {
	cfg := validConfig()
	cfg.Trees = map[string]Tree{
		"docs":  {LocalPath: "/home/toni/Documents"},
		"pics":  {LocalPath: "/home/toni/Pictures"},
		"other": {LocalPath: "/home/toni/DocumentsBackup"},
	}
	err := Validate(cfg)
	assert.NoError(t, err)
}

// --- ValidateResolved tests ---

func TestValidateResolved_AbsoluteLocalPath(t *testing.T) {
	rt := &ResolvedTree{LocalPath: "/absolute/path"}
	err := ValidateResolved(rt)
	assert.NoError(t, err)
}

func TestValidateResolved_RelativeLocalPath(t *testing.T) {
	rt := &ResolvedTree{LocalPath: "relative/path"}
	err := ValidateResolved(rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local_path")
	assert.Contains(t, err.Error(), "absolute")
}

func TestValidateResolved_EmptyLocalPath(t *testing.T) {
	rt := &ResolvedTree{LocalPath: ""}
	err := ValidateResolved(rt)
	assert.NoError(t, err)
}
