package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zisync/zisync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change runtime configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetPortCmd())
	cmd.AddCommand(newConfigSetUploadLimitCmd())
	cmd.AddCommand(newConfigSetDownloadLimitCmd())
	cmd.AddCommand(newConfigSetSyncIntervalCmd())
	cmd.AddCommand(newConfigSetTransferThreadsCmd())
	cmd.AddCommand(newConfigSetDownloadCacheCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tree-name>",
		Short: "Print the effective configuration for a tree, defaults merged with overrides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			cfg := cc.Holder.Config()
			tree, ok := cfg.Trees[args[0]]
			if !ok {
				return fmt.Errorf("no tree named %q in config", args[0])
			}
			resolved := config.ResolveTree(cfg, args[0], &tree)
			return config.RenderEffective(resolved, os.Stdout)
		},
	}
}

func newConfigSetPortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-port <port>",
		Short: "Change the data-plane server's listen port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[0], err)
			}
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetPort(port)
		},
	}
}

func newConfigSetUploadLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-upload-limit <limit>",
		Short: `Change the global upload bandwidth cap, e.g. "5MB/s" or "0" for unlimited`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetUploadLimit(args[0])
		},
	}
}

func newConfigSetDownloadLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-download-limit <limit>",
		Short: "Change the global download bandwidth cap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetDownloadLimit(args[0])
		},
	}
}

func newConfigSetSyncIntervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-sync-interval <duration>",
		Short: `Change the watch-mode polling interval, e.g. "5m"`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetSyncInterval(args[0])
		},
	}
}

func newConfigSetTransferThreadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-transfer-threads <n>",
		Short: "Change the worker pool size used for data-carrying actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid thread count %q: %w", args[0], err)
			}
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetTransferThreadCount(n)
		},
	}
}

func newConfigSetDownloadCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-download-cache <size>",
		Short: `Change the download staging cache's capacity, e.g. "2GiB"`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			return cc.Engine.SetDownloadCacheVolume(args[0])
		},
	}
}
