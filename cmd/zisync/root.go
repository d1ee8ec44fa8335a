package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zisync/zisync/internal/config"
	"github.com/zisync/zisync/internal/engine"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/monitor"
)

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that bootstrap their own state
// instead of the shared CLIContext (the migrate up/down/status
// subcommands set it).
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles everything a subcommand needs: the resolved config,
// the engine wired against this device's MetaStore, and a logger. Built
// once in PersistentPreRunE.
type CLIContext struct {
	Holder *config.Holder
	Store  *metastore.Store
	Engine *engine.Engine
	Logger *slog.Logger
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command does not skip bootstrap")
	}
	return cc
}

const httpClientTimeout = 30 * time.Second

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "zisync",
		Short:         "Peer-to-peer file synchronization",
		Long:          "zisync keeps directories in sync across paired devices over a direct wire protocol.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			return bootstrap(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if cc := cliContextFrom(cmd.Context()); cc != nil {
				return cc.Store.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newSyncCreateCmd())
	cmd.AddCommand(newSyncDestroyCmd())
	cmd.AddCommand(newTreeCreateCmd())
	cmd.AddCommand(newTreeDestroyCmd())
	cmd.AddCommand(newFavoriteCmd())
	cmd.AddCommand(newSyncOnceCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newTransfersCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

// bootstrap loads config, opens the device's MetaStore, constructs the
// Engine, and registers every configured tree and its favorites, storing
// the result in the command's context for RunE handlers to consume.
func bootstrap(cmd *cobra.Command) error {
	logger := buildLogger()

	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = config.ResolveConfigPath(config.ReadEnvOverrides(), config.CLIOverrides{}, logger)
	}

	cfg, err := config.LoadOrDefault(cfgPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Device.DeviceUUID == "" {
		cfg.Device.DeviceUUID = uuid.NewString()
		if err := config.SetGlobalKey(cfgPath, "device", "device_uuid", cfg.Device.DeviceUUID); err != nil {
			logger.Warn("could not persist generated device uuid", "error", err)
		}
	}

	holder := config.NewHolder(cfg, cfgPath)

	dbPath := filepath.Join(config.DefaultDataDir(), "zisync.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	store, err := metastore.Open(cmd.Context(), dbPath, logger)
	if err != nil {
		return fmt.Errorf("opening metastore: %w", err)
	}

	eng := engine.New(engine.Config{
		Store:      store,
		Holder:     holder,
		Monitor:    monitor.New(),
		Logger:     logger,
		DeviceUUID: cfg.Device.DeviceUUID,
		HTTPClient: &http.Client{Timeout: httpClientTimeout},
	})

	if err := loadConfiguredTrees(cmd.Context(), cfg, cfgPath, eng, logger); err != nil {
		_ = store.Close()
		return err
	}

	cc := &CLIContext{Holder: holder, Store: store, Engine: eng, Logger: logger}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))
	return nil
}

// loadConfiguredTrees registers every [tree.NAME] entry with eng: an
// entry missing sync_uuid/tree_uuid is provisioned for the first time
// (a new Sync and Tree row is minted and the generated UUIDs persisted
// back into the config file); an entry that already has both is loaded
// against the existing rows instead, so restarts never mint duplicate
// tree rows for the same local directory.
func loadConfiguredTrees(ctx context.Context, cfg *config.Config, cfgPath string, eng *engine.Engine, logger *slog.Logger) error {
	for name, tree := range cfg.Trees {
		localPath := config.ResolveTree(cfg, name, &tree).LocalPath

		syncUUID := tree.SyncUUID
		if syncUUID == "" {
			sy, err := eng.CreateSync(ctx, name, metastore.PermReadWrite, metastore.SyncNormal)
			if err != nil {
				return fmt.Errorf("provisioning sync for tree %q: %w", name, err)
			}
			syncUUID = sy.SyncUUID
			if err := config.SetTreeKey(cfgPath, name, "sync_uuid", syncUUID); err != nil {
				logger.Warn("could not persist sync_uuid", "tree", name, "error", err)
			}
		}

		var treeUUID string
		if tree.TreeUUID == "" {
			t, err := eng.CreateTree(ctx, syncUUID, localPath, metastore.RoleNone)
			if err != nil {
				return fmt.Errorf("provisioning tree %q: %w", name, err)
			}
			treeUUID = t.TreeUUID
			if err := config.SetTreeKey(cfgPath, name, "tree_uuid", treeUUID); err != nil {
				logger.Warn("could not persist tree_uuid", "tree", name, "error", err)
			}
		} else {
			treeUUID = tree.TreeUUID
			if _, err := eng.LoadTree(ctx, treeUUID); err != nil {
				return fmt.Errorf("loading tree %q: %w", name, err)
			}
		}

		for _, fav := range tree.Favorites {
			if err := eng.AddFavorite(treeUUID, fav); err != nil {
				logger.Warn("could not register favorite", "tree", name, "path", fav, "error", err)
			}
		}

		if tree.PeerAddress != "" {
			eng.RegisterPeer(treeUUID, tree.PeerAddress)
		}
	}
	return nil
}

// buildLogger creates an slog.Logger configured by the CLI flags.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
