// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for zisync.
package config

// Config is the top-level configuration structure. It holds device-wide
// settings, the set of locally configured trees, and global section
// defaults. Per-tree section overrides completely replace the
// corresponding global section — individual fields are not merged.
type Config struct {
	Device  DeviceConfig        `toml:"device"`
	Trees   map[string]Tree     `toml:"tree"`
	Filter  FilterConfig        `toml:"filter"`
	Transfers TransfersConfig   `toml:"transfers"`
	Safety  SafetyConfig        `toml:"safety"`
	Sync    SyncConfig          `toml:"sync"`
	Logging LoggingConfig       `toml:"logging"`
	Network NetworkConfig       `toml:"network"`
}

// DeviceConfig controls the settings that apply to this device as a whole:
// the ports its listeners bind, and the device-wide resource knobs exposed
// through the control plane (SetPort, SetTransferThreadCount, etc.).
type DeviceConfig struct {
	DeviceUUID          string `toml:"device_uuid"`
	DiscoverPort        int    `toml:"discover_port"`
	RoutePort           int    `toml:"route_port"`
	DataPort            int    `toml:"data_port"`
	TransferThreadCount int    `toml:"transfer_thread_count"`
	DownloadCacheVolume string `toml:"download_cache_volume"`
}

// FilterConfig controls which files and directories are included in sync.
type FilterConfig struct {
	SkipFiles    []string `toml:"skip_files"`
	SkipDirs     []string `toml:"skip_dirs"`
	SkipDotfiles bool     `toml:"skip_dotfiles"`
	SkipSymlinks bool     `toml:"skip_symlinks"`
	MaxFileSize  string   `toml:"max_file_size"`
	IgnoreMarker string   `toml:"ignore_marker"`
}

// TransfersConfig controls transfer bandwidth and ordering.
type TransfersConfig struct {
	UploadLimit       string                   `toml:"upload_limit"`
	DownloadLimit     string                   `toml:"download_limit"`
	BandwidthSchedule []BandwidthScheduleEntry `toml:"bandwidth_schedule"`
	TransferOrder     string                   `toml:"transfer_order"`
}

// BandwidthScheduleEntry defines a time-of-day bandwidth limit.
type BandwidthScheduleEntry struct {
	Time  string `toml:"time"`
	Limit string `toml:"limit"`
}

// SafetyConfig controls protective defaults and thresholds.
type SafetyConfig struct {
	BigDeleteThreshold     int    `toml:"big_delete_threshold"`
	BigDeletePercentage    int    `toml:"big_delete_percentage"`
	BigDeleteMinItems      int    `toml:"big_delete_min_items"`
	MinFreeSpace           string `toml:"min_free_space"`
	UseLocalTrash          bool   `toml:"use_local_trash"`
	DisableHashValidation  bool   `toml:"disable_hash_validation"`
	SyncDirPermissions     string `toml:"sync_dir_permissions"`
	SyncFilePermissions    string `toml:"sync_file_permissions"`
	TombstoneRetentionDays int    `toml:"tombstone_retention_days"`
}

// SyncConfig controls sync engine behavior.
type SyncConfig struct {
	SyncInterval      string `toml:"sync_interval"`
	FullscanFrequency int    `toml:"fullscan_frequency"`
	Websocket         bool   `toml:"websocket"`
	DryRun            bool   `toml:"dry_run"`
	VerifyInterval    string `toml:"verify_interval"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// NetworkConfig controls HTTP client/server behavior for the wire protocol.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
	ForceHTTP11    bool   `toml:"force_http_11"`
}
