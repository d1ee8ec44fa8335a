package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/zisync/zisync/internal/executor"
	"github.com/zisync/zisync/internal/indexer"
	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/monitor"
	"github.com/zisync/zisync/internal/planner"
	"github.com/zisync/zisync/internal/synclist"
	"github.com/zisync/zisync/internal/wire"
)

// indexObserverAdapter republishes indexer lifecycle calls as monitor
// events so a single Subscribe call sees both indexing and sync
// notifications.
type indexObserverAdapter struct {
	mon *monitor.TaskMonitor
}

func (a *indexObserverAdapter) NotifyIndexStart(treeUUID string) {
	a.mon.Notify(monitor.EventIndexStart, "", treeUUID)
}

func (a *indexObserverAdapter) NotifyIndexFinish(treeUUID string, err error) {
	a.mon.NotifyErr(monitor.EventIndexFinish, "", treeUUID, err)
}

func (a *indexObserverAdapter) NotifySHA1Fail(treeUUID, path string, err error) {
	a.mon.Notify(monitor.EventSyncModify, "", treeUUID)
}

func (e *Engine) favoriteList(treeUUID string) *synclist.List {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.favorites[treeUUID]
}

// SyncOnce runs a single reconciliation pass between localTreeUUID (this
// device's tree) and remoteTreeUUID (the peer's tree) under syncUUID: it
// reindexes the local tree, computes an ActionPlan against the shared
// MetaStore, applies the plan's metadata-only phases directly, and
// dispatches its data-carrying actions through the wire client against
// the peer address registered via RegisterPeer. It returns the plan
// actually executed, and a non-nil error if any part of the pass failed
// (partial progress is preserved — a failed pass is retried from
// wherever it left off on the next SyncOnce call).
//
// Remote metadata is read directly from this device's MetaStore: the
// planner compares the local tree's rows against the remote tree's rows
// in the SAME store (see internal/planner.Plan), so this pass assumes
// the remote tree's rows were already mirrored in by an earlier manifest
// exchange. A full bidirectional manifest-exchange protocol over the
// wire (pulling the peer's current MetaStore snapshot before planning)
// is not yet implemented; see DESIGN.md.
func (e *Engine) SyncOnce(ctx context.Context, syncUUID, localTreeUUID, remoteTreeUUID string) (*planner.ActionPlan, error) {
	sy, err := e.store.GetSync(ctx, syncUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: sync once: load sync %s: %w", syncUUID, err)
	}
	if sy == nil {
		return nil, fmt.Errorf("engine: sync once: sync %s not found", syncUUID)
	}
	localTree, err := e.store.GetTree(ctx, localTreeUUID)
	if err != nil || localTree == nil {
		return nil, fmt.Errorf("engine: sync once: load local tree %s: %w", localTreeUUID, err)
	}
	remoteTree, err := e.store.GetTree(ctx, remoteTreeUUID)
	if err != nil || remoteTree == nil {
		return nil, fmt.Errorf("engine: sync once: load remote tree %s: %w", remoteTreeUUID, err)
	}
	localRoot, err := e.treeRootOrErr(localTreeUUID)
	if err != nil {
		return nil, err
	}
	peerAddr, err := e.peerAddr(localTreeUUID)
	if err != nil {
		return nil, err
	}

	e.mon.Notify(monitor.EventSyncStart, syncUUID, localTreeUUID)
	var syncErr error
	defer func() { e.mon.NotifyErr(monitor.EventSyncFinish, syncUUID, localTreeUUID, syncErr) }()

	ix := indexer.New(e.store, e.locks, &indexObserverAdapter{mon: e.mon}, e.logger)
	if err := ix.Index(ctx, localTree, e.favoriteList(localTreeUUID)); err != nil {
		syncErr = fmt.Errorf("engine: sync once: index %s: %w", localTreeUUID, err)
		return nil, syncErr
	}

	pl := planner.New(e.store, e.logger)
	plan, err := pl.Plan(ctx, sy, localTree, remoteTree, e.favoriteList(localTreeUUID), e.favoriteList(remoteTreeUUID))
	if err != nil {
		syncErr = fmt.Errorf("engine: sync once: plan %s: %w", syncUUID, err)
		return nil, syncErr
	}

	if err := e.applyMetaPhases(ctx, plan, localTreeUUID, remoteTreeUUID); err != nil {
		syncErr = fmt.Errorf("engine: sync once: apply metadata %s: %w", syncUUID, err)
		return nil, syncErr
	}

	if err := e.runDataPhase(ctx, plan, localRoot, peerAddr, localTreeUUID, remoteTreeUUID); err != nil {
		syncErr = fmt.Errorf("engine: sync once: transfer data %s: %w", syncUUID, err)
		return nil, syncErr
	}

	return plan, nil
}

// applyMetaPhases re-partitions each classified metadata action into the
// opposite tree's row set: a push action's authoritative (Local) row is
// copied into the remote tree's partition, a pull action's authoritative
// (Remote) row is copied into the local tree's partition.
func (e *Engine) applyMetaPhases(ctx context.Context, plan *planner.ActionPlan, localTreeUUID, remoteTreeUUID string) error {
	pushActions := append(append([]planner.Action{}, plan.PushRemoveMetas...), plan.PushMakeMetas...)
	pushActions = append(pushActions, plan.PushRenames...)
	if err := e.commitActions(ctx, pushActions, remoteTreeUUID, true); err != nil {
		return err
	}

	pullActions := append(append([]planner.Action{}, plan.PullRemoveMetas...), plan.PullMakeMetas...)
	pullActions = append(pullActions, plan.PullRenames...)
	return e.commitActions(ctx, pullActions, localTreeUUID, false)
}

// commitActions upserts the authoritative side of each action into
// targetTreeUUID's partition. push selects Local as authoritative (push
// direction: local is the source of truth); otherwise Remote is used.
func (e *Engine) commitActions(ctx context.Context, actions []planner.Action, targetTreeUUID string, push bool) error {
	if len(actions) == 0 {
		return nil
	}

	ops := make([]metastore.BatchOp, 0, len(actions))
	for i := range actions {
		src := actions[i].Local
		if !push {
			src = actions[i].Remote
		}
		if src == nil {
			continue
		}
		copied := *src
		copied.TreeUUID = targetTreeUUID
		copied.Path = actions[i].Path
		ops = append(ops, metastore.BatchOp{Meta: &copied})
	}
	if len(ops) == 0 {
		return nil
	}

	first, err := e.store.AllocateUSNs(ctx, targetTreeUUID, int64(len(ops)))
	if err != nil {
		return fmt.Errorf("allocate usns for %s: %w", targetTreeUUID, err)
	}
	for i := range ops {
		ops[i].Meta.USN = first + int64(i)
	}
	return e.store.ApplyBatch(ctx, targetTreeUUID, ops)
}

// runDataPhase dispatches every push/pull data action through the
// executor worker pool, using the wire client to move bytes.
func (e *Engine) runDataPhase(ctx context.Context, plan *planner.ActionPlan, localRoot, peerAddr, localTreeUUID, remoteTreeUUID string) error {
	actions := append(append([]planner.Action{}, plan.PushDatas...), plan.PullDatas...)
	if len(actions) == 0 {
		return nil
	}

	headers := wire.SessionHeaders{
		LocalTreeUUID:  localTreeUUID,
		RemoteTreeUUID: remoteTreeUUID,
		TotalFiles:     int64(len(actions)),
	}

	threads := 8
	if cfg := e.holder.Config(); cfg != nil && cfg.Device.TransferThreadCount > 0 {
		threads = cfg.Device.TransferThreadCount
	}

	pool := executor.NewPool(e.buildHandler(localRoot, peerAddr, headers, localTreeUUID, remoteTreeUUID), e.logger, len(actions))
	go pool.Run(ctx, actions, threads)
	for range pool.Results() {
		// Results are also observable via TaskMonitor's Start/Finish calls
		// made from within the handler; draining here just unblocks Run.
	}

	_, failed, errs := pool.Stats()
	if failed > 0 {
		return fmt.Errorf("%d of %d data actions failed: %w", failed, len(actions), errors.Join(errs...))
	}
	return nil
}

func (e *Engine) buildHandler(localRoot, peerAddr string, headers wire.SessionHeaders, localTreeUUID, remoteTreeUUID string) executor.Handler {
	return func(ctx context.Context, action *planner.Action) (int64, error) {
		switch action.Type {
		case planner.ActionPushData:
			return e.pushData(ctx, action, localRoot, peerAddr, headers, localTreeUUID, remoteTreeUUID)
		case planner.ActionPullData:
			return e.pullData(ctx, action, localRoot, peerAddr, headers, localTreeUUID, remoteTreeUUID)
		default:
			return 0, fmt.Errorf("engine: unexpected action type in data phase: %s", action.Type)
		}
	}
}

func (e *Engine) pushData(ctx context.Context, action *planner.Action, localRoot, peerAddr string, headers wire.SessionHeaders, localTreeUUID, remoteTreeUUID string) (int64, error) {
	meta := action.Local
	if meta == nil {
		return 0, fmt.Errorf("push %s: missing local metadata", action.Path)
	}
	xfer := e.mon.Start(localTreeUUID, remoteTreeUUID, action.Path, "push", meta.Length, nowMillis())
	n, err := e.wc.PushFile(ctx, peerAddr, headers, localRoot, meta, true)
	e.mon.Finish(xfer, nowMillis(), err)
	return n, err
}

func (e *Engine) pullData(ctx context.Context, action *planner.Action, localRoot, peerAddr string, headers wire.SessionHeaders, localTreeUUID, remoteTreeUUID string) (int64, error) {
	meta := action.Remote
	total := int64(0)
	if meta != nil {
		total = meta.Length
	}
	xfer := e.mon.Start(localTreeUUID, remoteTreeUUID, action.Path, "pull", total, nowMillis())
	_, n, err := e.wc.PullFile(ctx, peerAddr, headers, localRoot, action.Path)
	e.mon.Finish(xfer, nowMillis(), err)
	return n, err
}
