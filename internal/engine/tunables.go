package engine

import (
	"fmt"
	"strconv"

	"github.com/zisync/zisync/internal/config"
)

// applyConfig validates updated, installs it in the Holder, and persists
// the single changed section back to disk. section/key/value describe
// the text-level edit SetGlobalKey performs; the in-memory Holder is the
// source of truth for every other read, so a persistence failure is
// logged but does not roll back the already-applied in-memory change —
// mirroring the teacher's config.Holder.Update usage, which never blocks
// a runtime change on a successful disk write.
func (e *Engine) applyConfig(updated *config.Config, section, key, value string) error {
	if err := config.Validate(updated); err != nil {
		return fmt.Errorf("engine: validate config: %w", err)
	}
	e.holder.Update(updated)

	if path := e.holder.Path(); path != "" {
		if err := config.SetGlobalKey(path, section, key, value); err != nil {
			e.logger.Warn("engine: persisting config change failed", "section", section, "key", key, "error", err)
		}
	}
	return nil
}

// SetPort changes the device's route port (the port the wire protocol
// HTTP server listens on).
func (e *Engine) SetPort(port int) error {
	cfg := *e.holder.Config()
	cfg.Device.RoutePort = port
	return e.applyConfig(&cfg, "device", "route_port", strconv.Itoa(port))
}

// SetUploadLimit changes the global upload bandwidth cap, e.g. "5MB/s"
// or "0" for unlimited.
func (e *Engine) SetUploadLimit(limit string) error {
	cfg := *e.holder.Config()
	cfg.Transfers.UploadLimit = limit
	return e.applyConfig(&cfg, "transfers", "upload_limit", limit)
}

// SetDownloadLimit changes the global download bandwidth cap.
func (e *Engine) SetDownloadLimit(limit string) error {
	cfg := *e.holder.Config()
	cfg.Transfers.DownloadLimit = limit
	return e.applyConfig(&cfg, "transfers", "download_limit", limit)
}

// SetSyncInterval changes the watch-mode polling interval, e.g. "5m".
func (e *Engine) SetSyncInterval(interval string) error {
	cfg := *e.holder.Config()
	cfg.Sync.SyncInterval = interval
	return e.applyConfig(&cfg, "sync", "sync_interval", interval)
}

// SetTransferThreadCount changes the worker pool size SyncOnce uses for
// data-carrying actions.
func (e *Engine) SetTransferThreadCount(n int) error {
	cfg := *e.holder.Config()
	cfg.Device.TransferThreadCount = n
	return e.applyConfig(&cfg, "device", "transfer_thread_count", strconv.Itoa(n))
}

// SetDownloadCacheVolume changes the download staging cache's capacity,
// e.g. "2GiB".
func (e *Engine) SetDownloadCacheVolume(size string) error {
	cfg := *e.holder.Config()
	cfg.Device.DownloadCacheVolume = size
	return e.applyConfig(&cfg, "device", "download_cache_volume", size)
}
