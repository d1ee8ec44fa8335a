package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <tree-uuid>",
		Short: "Show a point-in-time summary of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			st, err := cc.Engine.QueryTreeStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if flagJSON {
				return printTreeStatusJSON(os.Stdout, st)
			}

			fmt.Printf("tree:       %s\n", st.Tree.TreeUUID)
			fmt.Printf("root:       %s\n", st.Tree.RootPath)
			fmt.Printf("role:       %s\n", st.Tree.Role)
			fmt.Printf("files:      %d\n", st.FileCount)
			fmt.Printf("tombstones: %d\n", st.TombstoneCount)
			fmt.Printf("conflicts:  %d\n", st.ConflictCount)
			fmt.Printf("stale:      %d\n", st.StaleFileCount)
			return nil
		},
	}
}

func newTransfersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfers",
		Short: "List in-flight and recently completed transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			transfers := cc.Engine.QueryTransferList()

			if flagJSON {
				return printTransfersJSON(os.Stdout, transfers)
			}

			headers := []string{"TREE", "DIRECTION", "PATH", "SIZE", "STARTED", "STATUS"}
			rows := make([][]string, 0, len(transfers))
			for _, tr := range transfers {
				status := "in progress"
				if tr.Done() {
					status = "done"
					if tr.Err != nil {
						status = "failed: " + tr.Err.Error()
					}
				}
				rows = append(rows, []string{
					tr.TreeUUID, tr.Direction, tr.Path, formatBytes(tr.BytesDone), formatTime(tr.StartedAt), status,
				})
			}
			printTable(os.Stdout, headers, rows)
			return nil
		},
	}
}
