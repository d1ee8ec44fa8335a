package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zisync/zisync/internal/metastore"
)

func newTreeCreateCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "tree-create <sync-uuid> <root-path>",
		Short: "Register a new tree rooted at a local path, creating it if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			t, err := cc.Engine.CreateTree(cmd.Context(), args[0], args[1], metastore.TreeRole(role))
			if err != nil {
				return err
			}
			cc.Statusf("created tree %s at %s\n", t.TreeUUID, t.RootPath)
			fmt.Println(t.TreeUUID)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(metastore.RoleNone), "none|backup-src|backup-dst")
	return cmd
}

func newTreeDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree-destroy <tree-uuid>",
		Short: "Mark a tree destroyed and stop tracking it, leaving its local files in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			if err := cc.Engine.DestroyTree(cmd.Context(), args[0]); err != nil {
				return err
			}
			cc.Statusf("destroyed tree %s\n", args[0])
			return nil
		},
	}
}

func newFavoriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage a tree's favorites whitelist",
	}
	cmd.AddCommand(newFavoriteAddCmd())
	cmd.AddCommand(newFavoriteRemoveCmd())
	return cmd
}

func newFavoriteAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <tree-uuid> <path>",
		Short: "Add path to a tree's favorites whitelist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			if err := cc.Engine.AddFavorite(args[0], args[1]); err != nil {
				return err
			}
			cc.Statusf("added favorite %s to tree %s\n", args[1], args[0])
			return nil
		},
	}
}

func newFavoriteRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <tree-uuid> <path>",
		Short: "Remove path from a tree's favorites whitelist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			if err := cc.Engine.RemoveFavorite(args[0], args[1]); err != nil {
				return err
			}
			cc.Statusf("removed favorite %s from tree %s\n", args[1], args[0])
			return nil
		},
	}
}
