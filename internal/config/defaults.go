package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen to be safe, reasonable
// starting points that work for most users without any config file.
const (
	defaultIgnoreMarker        = ".zisyncignore"
	defaultMaxFileSize         = "0"
	defaultDiscoverPort        = 0
	defaultRoutePort           = 0
	defaultDataPort            = 0
	defaultTransferThreadCount = 8
	defaultDownloadCacheVolume = "2GiB"
	defaultUploadLimit         = "0"
	defaultDownloadLimit       = "0"
	defaultTransferOrder       = "default"
	defaultBigDeleteThreshold  = 1000
	defaultBigDeletePercentage = 50
	defaultBigDeleteMinItems   = 10
	defaultMinFreeSpace        = "1GB"
	defaultSyncDirPermissions  = "0700"
	defaultSyncFilePermissions = "0600"
	defaultTombstoneRetention  = 30
	defaultSyncInterval        = "5m"
	defaultFullscanFrequency   = 12
	defaultVerifyInterval      = "0"
	defaultShutdownTimeout     = "30s"
	defaultLogLevel            = "info"
	defaultLogFormat           = "auto"
	defaultLogRetentionDays    = 30
	defaultConnectTimeout      = "10s"
	defaultDataTimeout         = "60s"
)

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Device:    defaultDeviceConfig(),
		Trees:     make(map[string]Tree),
		Filter:    defaultFilterConfig(),
		Transfers: defaultTransfersConfig(),
		Safety:    defaultSafetyConfig(),
		Sync:      defaultSyncConfig(),
		Logging:   defaultLoggingConfig(),
		Network:   defaultNetworkConfig(),
	}
}

func defaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		DiscoverPort:        defaultDiscoverPort,
		RoutePort:           defaultRoutePort,
		DataPort:            defaultDataPort,
		TransferThreadCount: defaultTransferThreadCount,
		DownloadCacheVolume: defaultDownloadCacheVolume,
	}
}

func defaultFilterConfig() FilterConfig {
	return FilterConfig{
		SkipDotfiles: false,
		SkipSymlinks: false,
		MaxFileSize:  defaultMaxFileSize,
		IgnoreMarker: defaultIgnoreMarker,
	}
}

func defaultTransfersConfig() TransfersConfig {
	return TransfersConfig{
		UploadLimit:   defaultUploadLimit,
		DownloadLimit: defaultDownloadLimit,
		TransferOrder: defaultTransferOrder,
	}
}

func defaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		BigDeleteThreshold:     defaultBigDeleteThreshold,
		BigDeletePercentage:    defaultBigDeletePercentage,
		BigDeleteMinItems:      defaultBigDeleteMinItems,
		MinFreeSpace:           defaultMinFreeSpace,
		UseLocalTrash:          true,
		SyncDirPermissions:     defaultSyncDirPermissions,
		SyncFilePermissions:    defaultSyncFilePermissions,
		TombstoneRetentionDays: defaultTombstoneRetention,
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		SyncInterval:      defaultSyncInterval,
		FullscanFrequency: defaultFullscanFrequency,
		Websocket:         true,
		VerifyInterval:    defaultVerifyInterval,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:         defaultLogLevel,
		LogFormat:        defaultLogFormat,
		LogRetentionDays: defaultLogRetentionDays,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
	}
}
