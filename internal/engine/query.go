package engine

import (
	"context"
	"fmt"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/monitor"
)

// TreeStatus summarizes one tree's current state for the CLI/API.
type TreeStatus struct {
	Tree            *metastore.Tree
	FileCount       int
	TombstoneCount  int
	ConflictCount   int
	StaleFileCount  int
}

// QueryTreeStatus reports a point-in-time summary of treeUUID: row
// counts from its MetaStore snapshot plus outstanding conflicts and
// stale files recorded against its Sync.
func (e *Engine) QueryTreeStatus(ctx context.Context, treeUUID string) (*TreeStatus, error) {
	t, err := e.store.GetTree(ctx, treeUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: query tree status %s: %w", treeUUID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("engine: query tree status %s: not found", treeUUID)
	}

	rows, err := e.store.Scan(ctx, treeUUID, "", "")
	if err != nil {
		return nil, fmt.Errorf("engine: scan tree %s: %w", treeUUID, err)
	}

	status := &TreeStatus{Tree: t}
	for _, m := range rows {
		if m.IsTombstone() {
			status.TombstoneCount++
		} else {
			status.FileCount++
		}
	}

	conflicts, err := e.store.ListConflicts(ctx, t.SyncUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: list conflicts for %s: %w", treeUUID, err)
	}
	status.ConflictCount = len(conflicts)

	stale, err := e.store.ListStale(ctx, treeUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: list stale for %s: %w", treeUUID, err)
	}
	status.StaleFileCount = len(stale)

	return status, nil
}

// QueryTransferList returns the in-flight and recently completed
// transfers the TaskMonitor has tracked, oldest first.
func (e *Engine) QueryTransferList() []monitor.Transfer {
	return e.mon.List()
}

// QueryStaleFiles returns the paths recorded against treeUUID that fell
// outside an updated favorites whitelist but still exist locally — the
// operator decides what to do with them; the engine never removes them
// on its own.
func (e *Engine) QueryStaleFiles(ctx context.Context, treeUUID string) ([]*metastore.StaleEntry, error) {
	entries, err := e.store.ListStale(ctx, treeUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: query stale files %s: %w", treeUUID, err)
	}
	return entries, nil
}
