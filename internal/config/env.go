package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "ZISYNC_CONFIG"
	EnvTree   = "ZISYNC_TREE"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by ReadEnvOverrides and made available to callers.
type EnvOverrides struct {
	ConfigPath string // ZISYNC_CONFIG: override config file path
	Tree       string // ZISYNC_TREE: active tree name
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Tree:       os.Getenv(EnvTree),
	}
}
