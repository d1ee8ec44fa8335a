package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/synclist"
	"github.com/zisync/zisync/internal/vclock"
)

// Planner compares a local and a remote MetaStore snapshot for one Sync
// and produces the ordered ActionPlan the executor will carry out.
type Planner struct {
	store  *metastore.Store
	logger *slog.Logger
	now    func() int64
}

// New returns a ready-to-use Planner backed by store.
func New(store *metastore.Store, logger *slog.Logger) *Planner {
	return &Planner{store: store, logger: logger, now: func() int64 { return time.Now().UnixMilli() }}
}

// Plan performs the merge-walk described for SyncFileTask generation: it
// scans the full local and remote snapshots, classifies every path that
// differs between them, filters the result by sync.Permission, both
// trees' SyncLists, and (for backup-type syncs) the trees' Roles, and
// returns the bounded ordered ActionPlan the executor consumes phase by
// phase.
func (p *Planner) Plan(ctx context.Context, sync *metastore.Sync, localTree, remoteTree *metastore.Tree, localSL, remoteSL *synclist.List) (*ActionPlan, error) {
	localRows, err := p.store.Scan(ctx, localTree.TreeUUID, "", "")
	if err != nil {
		return nil, fmt.Errorf("scan local tree: %w", err)
	}
	remoteRows, err := p.store.Scan(ctx, remoteTree.TreeUUID, "", "")
	if err != nil {
		return nil, fmt.Errorf("scan remote tree: %w", err)
	}

	localByPath := make(map[string]*metastore.FileMeta, len(localRows))
	for _, m := range localRows {
		localByPath[m.Path] = m
	}
	remoteByPath := make(map[string]*metastore.FileMeta, len(remoteRows))
	for _, m := range remoteRows {
		remoteByPath[m.Path] = m
	}

	paths := unionPaths(localByPath, remoteByPath)

	taken := make(map[string]bool, len(paths))
	for path := range localByPath {
		taken[path] = true
	}
	for path := range remoteByPath {
		taken[path] = true
	}

	var pushRemoves, pushInserts, pullRemoves, pullInserts []renameCandidate
	var pushUpdates, pullUpdates, conflicts []Action

	for _, path := range paths {
		local := localByPath[path]
		remote := remoteByPath[path]

		dir := p.classify(sync, localTree, remoteTree, local, remote)
		if dir == dirSkip {
			continue
		}

		if localSL != nil && !localSL.Covered(path) && (dir == dirPull || dir == dirPullConflict) {
			continue
		}
		if remoteSL != nil && !remoteSL.Covered(path) && dir == dirPush {
			continue
		}

		switch dir {
		case dirPush:
			// local is authoritative; remote is the (possibly absent) prior state.
			classifyCandidate(path, local, remote, ActionPushMakeMeta, true,
				&pushRemoves, &pushInserts, &pushUpdates)
		case dirPull:
			// remote is authoritative; local is the (possibly absent) prior state.
			classifyCandidate(path, remote, local, ActionPullMakeMeta, false,
				&pullRemoves, &pullInserts, &pullUpdates)
		case dirPullConflict:
			action := p.buildConflictAction(ctx, sync, path, local, remote, taken)
			conflicts = append(conflicts, action)
		}
	}

	pushRenamesRaw, pushRemoves2, pushInserts2 := detectRenames(pushRemoves, pushInserts)
	pullRenamesRaw, pullRemoves2, pullInserts2 := detectRenames(pullRemoves, pullInserts)

	plan := &ActionPlan{
		PushRemoveMetas: candidatesToActions(pushRemoves2, ActionPushRemoveMeta, true),
		PushMakeMetas:   candidatesToActions(pushInserts2, ActionPushMakeMeta, true),
		PushRenames:     finalizeRenames(pushRenamesRaw, ActionPushRename, true),
		PullRemoveMetas: candidatesToActions(pullRemoves2, ActionPullRemoveMeta, false),
		PullMakeMetas:   candidatesToActions(pullInserts2, ActionPullMakeMeta, false),
		PullRenames:     finalizeRenames(pullRenamesRaw, ActionPullRename, false),
	}

	plan.PushMakeMetas = append(plan.PushMakeMetas, pushUpdates...)
	plan.PullMakeMetas = append(plan.PullMakeMetas, pullUpdates...)
	plan.PullMakeMetas = append(plan.PullMakeMetas, conflicts...)

	plan.PushDatas = dataActionsFor(plan.PushMakeMetas, ActionPushData)
	plan.PullDatas = dataActionsFor(plan.PullMakeMetas, ActionPullData)

	sortActions(plan.PushRemoveMetas, true)
	sortActions(plan.PullRemoveMetas, true)
	sortActions(plan.PushMakeMetas, false)
	sortActions(plan.PullMakeMetas, false)
	sortActions(plan.PushRenames, false)
	sortActions(plan.PullRenames, false)
	sortActions(plan.PushDatas, false)
	sortActions(plan.PullDatas, false)

	return plan, nil
}

// classify decides whether path should propagate from local to remote,
// from remote to local, as a conflict requiring both, or not at all.
func (p *Planner) classify(sync *metastore.Sync, localTree, remoteTree *metastore.Tree, local, remote *metastore.FileMeta) direction {
	if sync.Permission == metastore.PermDisconnected {
		return dirSkip
	}

	localClock, remoteClock := vclock.New(), vclock.New()
	if local != nil {
		localClock = local.Clock
	}
	if remote != nil {
		remoteClock = remote.Clock
	}

	var dir direction
	switch vclock.Compare(localClock, remoteClock) {
	case vclock.Equal:
		return dirSkip
	case vclock.Greater:
		dir = dirPush
	case vclock.Less:
		dir = dirPull
	case vclock.Concurrent:
		dir = dirPullConflict
	default:
		return dirSkip
	}

	switch sync.Permission {
	case metastore.PermReadOnly:
		if dir == dirPush {
			return dirSkip
		}
	case metastore.PermWriteOnly:
		if dir == dirPull || dir == dirPullConflict {
			return dirSkip
		}
	}

	if sync.Type == metastore.SyncBackup {
		switch localTree.Role {
		case metastore.RoleBackupSrc:
			if dir == dirPull || dir == dirPullConflict {
				return dirSkip
			}
		case metastore.RoleBackupDst:
			if dir == dirPush {
				return dirSkip
			}
		}
	}

	return dir
}

// buildConflictAction materializes a CONFLICT ordering as a pull action
// that writes the incoming remote content to path, first setting aside
// whatever the local tree already holds there under a generated conflict
// path. When a conflict path is generated, a ConflictRecord is recorded
// to the ledger for QueryConflicts to surface later; resolution itself
// is unconditional and does not wait on operator input.
func (p *Planner) buildConflictAction(ctx context.Context, sync *metastore.Sync, path string, local, remote *metastore.FileMeta, taken map[string]bool) Action {
	action := Action{
		Type:   ActionPullMakeMeta,
		Path:   path,
		Local:  local,
		Remote: remote,
	}
	if local != nil && !local.IsTombstone() {
		conflictPath := generateConflictPath(path, func(candidate string) bool { return taken[candidate] })
		taken[conflictPath] = true
		action.ConflictPath = conflictPath

		rec := &metastore.ConflictRecord{
			ID:           newConflictRecordID(),
			SyncUUID:     sync.SyncUUID,
			Path:         path,
			ConflictPath: conflictPath,
			DetectedAt:   p.now(),
			LocalSHA1:    local.SHA1,
			LocalClock:   local.Clock,
		}
		if remote != nil {
			rec.RemoteSHA1 = remote.SHA1
			rec.RemoteClock = remote.Clock
		}
		if err := p.store.RecordConflict(ctx, rec); err != nil {
			p.logger.Warn("record conflict", "path", path, "error", err)
		}
	}
	return action
}

// classifyCandidate buckets one path into a remove, insert, or update
// candidate. source is the authoritative side (local for a push
// candidate, remote for a pull candidate); target is the other side,
// possibly nil or a tombstone. sourceIsLocal records which of Action's
// Local/Remote fields source corresponds to, so callers on both sides
// can share this logic without transposing the meaning of "source".
func classifyCandidate(path string, source, target *metastore.FileMeta, makeType ActionType, sourceIsLocal bool,
	removes, inserts *[]renameCandidate, updates *[]Action) {
	if source.IsTombstone() {
		if target == nil || target.IsTombstone() {
			return
		}
		*removes = append(*removes, renameCandidate{path: path, meta: source})
		return
	}

	if target == nil || target.IsTombstone() {
		*inserts = append(*inserts, renameCandidate{path: path, meta: source})
		return
	}

	action := Action{Type: makeType, Path: path}
	if sourceIsLocal {
		action.Local, action.Remote = source, target
	} else {
		action.Local, action.Remote = target, source
	}
	*updates = append(*updates, action)
}

// candidatesToActions converts leftover remove/insert candidates (ones
// that detectRenames did not coalesce into a rename) into plain Actions.
// sourceIsLocal has the same meaning as in classifyCandidate.
func candidatesToActions(cands []renameCandidate, actionType ActionType, sourceIsLocal bool) []Action {
	out := make([]Action, 0, len(cands))
	for _, c := range cands {
		a := Action{Type: actionType, Path: c.path}
		if sourceIsLocal {
			a.Local = c.meta
		} else {
			a.Remote = c.meta
		}
		out = append(out, a)
	}
	return out
}

// finalizeRenames stamps each rename's Type and assigns its post-rename
// meta to the Local or Remote field appropriate for the direction.
func finalizeRenames(renames []Action, actionType ActionType, sourceIsLocal bool) []Action {
	out := make([]Action, len(renames))
	for i, a := range renames {
		a.Type = actionType
		if sourceIsLocal {
			a.Local = a.rawMeta
		} else {
			a.Remote = a.rawMeta
		}
		a.rawMeta = nil
		out[i] = a
	}
	return out
}

// dataActionsFor returns one data-transfer action per regular-file entry
// among makeMetas; directories never carry a data action, and neither
// does a regular file whose content hash already matches on both sides
// (an mtime-only or attribute-only change) — that case is meta-only.
func dataActionsFor(makeMetas []Action, actionType ActionType) []Action {
	out := make([]Action, 0, len(makeMetas))
	for _, a := range makeMetas {
		meta := a.Remote
		if meta == nil {
			meta = a.Local
		}
		if meta == nil || meta.Type != metastore.FileTypeRegular {
			continue
		}
		if a.Local != nil && a.Remote != nil && a.Local.SHA1 != "" && a.Remote.SHA1 != "" && a.Local.SHA1 == a.Remote.SHA1 {
			continue
		}
		out = append(out, Action{Type: actionType, Path: a.Path, Local: a.Local, Remote: a.Remote})
	}
	return out
}

func unionPaths(a, b map[string]*metastore.FileMeta) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	paths := make([]string, 0, len(a)+len(b))
	for path := range a {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}
	for path := range b {
		if _, ok := seen[path]; !ok {
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

func sortActions(actions []Action, reverse bool) {
	sort.Slice(actions, func(i, j int) bool {
		if reverse {
			return actions[i].Path > actions[j].Path
		}
		return actions[i].Path < actions[j].Path
	})
}

// newConflictRecordID returns the fresh random identifier
// buildConflictAction gives each ConflictRecord it writes to the ledger.
func newConflictRecordID() string { return uuid.NewString() }
