// Package planner reconciles two MetaStore snapshots — a local tree and
// a remote tree — into a bounded, ordered SyncFileTask of actions for
// the executor, applying permission, SyncList, and backup-asymmetry
// filtering along the way.
package planner

import "github.com/zisync/zisync/internal/metastore"

// ActionType names one step in a SyncFileTask.
type ActionType string

const (
	ActionPullRemoveMeta ActionType = "pull_remove_meta"
	ActionPullMakeMeta   ActionType = "pull_make_meta"
	ActionPullRename     ActionType = "pull_rename"
	ActionPullData       ActionType = "pull_data"
	ActionPushRemoveMeta ActionType = "push_remove_meta"
	ActionPushMakeMeta   ActionType = "push_make_meta"
	ActionPushRename     ActionType = "push_rename"
	ActionPushData       ActionType = "push_data"
)

// Action is one step in a SyncFileTask. Local and Remote are borrowed
// read-only copies of the MetaStore rows that produced this action; for
// a rename, From names the source path and Path the destination.
type Action struct {
	Type   ActionType
	Path   string
	From   string // set only for *Rename actions
	Local  *metastore.FileMeta
	Remote *metastore.FileMeta

	// ConflictPath is set when this action arose from a CONFLICT vclock
	// ordering: the receiver's existing file is being set aside here
	// before the incoming content is written to Path.
	ConflictPath string

	// rawMeta carries a rename's post-rename FileMeta between
	// detectRenames and finalizeRenames, before it is known which of
	// Local/Remote the authoritative side corresponds to.
	rawMeta *metastore.FileMeta
}

// ActionPlan is a SyncFileTask: a bounded, ordered list of actions
// partitioned by execution phase, matching the order the executor must
// apply them in.
type ActionPlan struct {
	PullRemoveMetas []Action
	PullMakeMetas   []Action
	PullRenames     []Action
	PullDatas       []Action
	PushRemoveMetas []Action
	PushMakeMetas   []Action
	PushRenames     []Action
	PushDatas       []Action
}

// Len returns the total number of actions across every phase.
func (p *ActionPlan) Len() int {
	return len(p.PullRemoveMetas) + len(p.PullMakeMetas) + len(p.PullRenames) + len(p.PullDatas) +
		len(p.PushRemoveMetas) + len(p.PushMakeMetas) + len(p.PushRenames) + len(p.PushDatas)
}

// direction is an internal classification of a candidate before
// permission/synclist/backup filtering is applied.
type direction int

const (
	dirPush direction = iota
	dirPull
	dirPullConflict
	dirSkip
)
