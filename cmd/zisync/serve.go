package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zisync/zisync/internal/config"
	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/monitor"
	"github.com/zisync/zisync/internal/wireserver"
)

const defaultWatchInterval = 5 * time.Minute

// newServeCmd runs the data-plane HTTP server (accepting inbound
// push/pull sessions from peers) and, unless --once is given, a
// watch-mode loop that periodically dispatches SyncOnce for every
// configured sync/tree pair until the process receives a shutdown
// signal.
func newServeCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the data-plane server and periodic reconciliation loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := shutdownContext(cmd.Context(), cc.Logger)

			pidPath := filepath.Join(config.DefaultDataDir(), "zisync.pid")
			cleanup, err := writePIDFile(pidPath)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cc.Holder.Config()

			upload, err := executor.NewBandwidthLimiter(cfg.Transfers.UploadLimit, cc.Logger)
			if err != nil {
				return fmt.Errorf("upload limiter: %w", err)
			}
			download, err := executor.NewBandwidthLimiter(cfg.Transfers.DownloadLimit, cc.Logger)
			if err != nil {
				return fmt.Errorf("download limiter: %w", err)
			}

			srv := wireserver.New(wireserver.Config{
				Store:    cc.Store,
				Resolver: cc.Engine,
				Locks:    cc.Engine.Locks(),
				Upload:   upload,
				Download: download,
				Logger:   cc.Logger,
			})

			mux := http.NewServeMux()
			mux.Handle("/", srv)
			mux.Handle("/status/feed", monitor.NewFeed(cc.Engine.Monitor(), cc.Logger))

			httpSrv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Device.RoutePort),
				Handler: mux,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				cc.Statusf("serving on %s\n", httpSrv.Addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("data-plane server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})

			if once {
				if err := runAllSyncs(gctx, cc); err != nil {
					cc.Logger.Error("reconciliation pass failed", "error", err)
				}
			} else {
				g.Go(func() error {
					return watchLoop(gctx, cc)
				})
			}

			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run one reconciliation pass against every configured tree and exit the loop (the server still runs until shutdown)")
	return cmd
}

// watchLoop runs runAllSyncs on cfg.Sync.SyncInterval (default 5m) until
// ctx is cancelled.
func watchLoop(ctx context.Context, cc *CLIContext) error {
	interval := parseSyncInterval(cc.Holder.Config().Sync.SyncInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runAllSyncs(ctx, cc); err != nil {
				cc.Logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

func parseSyncInterval(raw string) time.Duration {
	if raw == "" {
		return defaultWatchInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultWatchInterval
	}
	return d
}

// runAllSyncs dispatches SyncOnce concurrently for every [tree.NAME]
// entry that has a tree_uuid, a remote_tree_uuid and a sync_uuid
// configured — entries missing any of them are skipped.
func runAllSyncs(ctx context.Context, cc *CLIContext) error {
	cfg := cc.Holder.Config()

	g, gctx := errgroup.WithContext(ctx)
	for name, tree := range cfg.Trees {
		name, tree := name, tree
		if tree.TreeUUID == "" || tree.RemoteTreeUUID == "" || tree.SyncUUID == "" {
			continue
		}
		g.Go(func() error {
			_, err := cc.Engine.SyncOnce(gctx, tree.SyncUUID, tree.TreeUUID, tree.RemoteTreeUUID)
			if err != nil {
				return fmt.Errorf("sync %q: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
