package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zisync/zisync/internal/metastore"
)

func newSyncCreateCmd() *cobra.Command {
	var permission, syncType string

	cmd := &cobra.Command{
		Use:   "sync-create <name>",
		Short: "Register a new sync grouping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			sy, err := cc.Engine.CreateSync(cmd.Context(), args[0], metastore.Permission(permission), metastore.SyncType(syncType))
			if err != nil {
				return err
			}
			cc.Statusf("created sync %s (%s)\n", sy.SyncUUID, sy.Name)
			fmt.Println(sy.SyncUUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&permission, "permission", string(metastore.PermReadWrite), "rdonly|wronly|rdwr|disconnected")
	cmd.Flags().StringVar(&syncType, "type", string(metastore.SyncNormal), "normal|backup|shared")
	return cmd
}

func newSyncDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-destroy <sync-uuid>",
		Short: "Mark a sync grouping destroyed, leaving its trees in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			if err := cc.Engine.DestroySync(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Statusf("destroyed sync %s\n", args[0])
			return nil
		},
	}
}

func newSyncOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-once <sync-uuid> <local-tree-uuid> <remote-tree-uuid>",
		Short: "Run a single reconciliation pass between a local tree and its paired remote tree",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			plan, err := cc.Engine.SyncOnce(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			cc.Statusf("sync complete: %d action(s)\n", plan.Len())
			return nil
		},
	}
}
