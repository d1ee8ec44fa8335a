package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/zisync/zisync/internal/metastore"
	"github.com/zisync/zisync/internal/synclist"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// CreateSync registers a new Sync grouping and returns the created row.
func (e *Engine) CreateSync(ctx context.Context, name string, perm metastore.Permission, typ metastore.SyncType) (*metastore.Sync, error) {
	sy := &metastore.Sync{
		SyncUUID:    uuid.NewString(),
		Name:        name,
		Permission:  perm,
		Type:        typ,
		CreatorUUID: e.deviceUUID,
		CreatedAt:   nowMillis(),
	}
	if err := e.store.UpsertSync(ctx, sy); err != nil {
		return nil, fmt.Errorf("engine: create sync %q: %w", name, err)
	}
	return sy, nil
}

// DestroySync marks a Sync destroyed. Its Trees are left in place (the
// caller destroys each explicitly via DestroyTree) so local data is
// never removed as a side effect of ending the sync relationship.
func (e *Engine) DestroySync(ctx context.Context, syncUUID string) error {
	sy, err := e.store.GetSync(ctx, syncUUID)
	if err != nil {
		return fmt.Errorf("engine: destroy sync %s: %w", syncUUID, err)
	}
	if sy == nil {
		return fmt.Errorf("engine: destroy sync %s: not found", syncUUID)
	}
	sy.DestroyedAt = nowMillis()
	if err := e.store.UpsertSync(ctx, sy); err != nil {
		return fmt.Errorf("engine: destroy sync %s: %w", syncUUID, err)
	}
	return nil
}

// CreateTree registers a new local Tree under syncUUID rooted at
// rootPath, creating the directory if it does not already exist, and
// begins tracking it for SyncOnce/TreeRoot lookups.
func (e *Engine) CreateTree(ctx context.Context, syncUUID, rootPath string, role metastore.TreeRole) (*metastore.Tree, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create tree root %s: %w", rootPath, err)
	}

	t := &metastore.Tree{
		TreeUUID:  uuid.NewString(),
		SyncUUID:  syncUUID,
		DeviceID:  e.deviceUUID,
		RootPath:  rootPath,
		Role:      role,
		Enabled:   true,
		CreatedAt: nowMillis(),
	}
	if err := e.store.UpsertTree(ctx, t); err != nil {
		return nil, fmt.Errorf("engine: create tree %s: %w", rootPath, err)
	}

	e.mu.Lock()
	e.roots[t.TreeUUID] = rootPath
	e.favorites[t.TreeUUID] = nil
	e.mu.Unlock()

	return t, nil
}

// LoadTree registers an already-existing Tree row (typically one a prior
// process created and persisted treeUUID for in the config file) with the
// engine's live registry, without minting a new row. It is the startup
// counterpart to CreateTree: CreateTree is for first-run provisioning,
// LoadTree is for every subsequent process start.
func (e *Engine) LoadTree(ctx context.Context, treeUUID string) (*metastore.Tree, error) {
	t, err := e.store.GetTree(ctx, treeUUID)
	if err != nil {
		return nil, fmt.Errorf("engine: load tree %s: %w", treeUUID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("engine: load tree %s: not found", treeUUID)
	}

	e.mu.Lock()
	e.roots[t.TreeUUID] = t.RootPath
	if _, ok := e.favorites[t.TreeUUID]; !ok {
		e.favorites[t.TreeUUID] = nil
	}
	e.mu.Unlock()

	return t, nil
}

// DestroyTree marks a Tree destroyed and stops tracking it. The
// filesystem contents at its root are left untouched.
func (e *Engine) DestroyTree(ctx context.Context, treeUUID string) error {
	t, err := e.store.GetTree(ctx, treeUUID)
	if err != nil {
		return fmt.Errorf("engine: destroy tree %s: %w", treeUUID, err)
	}
	if t == nil {
		return fmt.Errorf("engine: destroy tree %s: not found", treeUUID)
	}
	t.DestroyedAt = nowMillis()
	t.Enabled = false
	if err := e.store.UpsertTree(ctx, t); err != nil {
		return fmt.Errorf("engine: destroy tree %s: %w", treeUUID, err)
	}

	e.mu.Lock()
	delete(e.roots, treeUUID)
	delete(e.favorites, treeUUID)
	delete(e.peers, treeUUID)
	e.mu.Unlock()

	return nil
}

// AddFavorite adds path to treeUUID's favorites whitelist: once a tree
// has at least one favorite, indexing and planning are restricted to the
// paths it covers (see synclist.List.Covered).
func (e *Engine) AddFavorite(treeUUID, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, ok := e.favorites[treeUUID]
	if !ok {
		return fmt.Errorf("engine: add favorite: unknown tree %s", treeUUID)
	}
	if sl == nil {
		sl = synclist.New()
		e.favorites[treeUUID] = sl
	}
	sl.Add(synclist.Clean(path))
	return nil
}

// RemoveFavorite removes path from treeUUID's favorites whitelist. A
// tree left with zero favorites reverts to syncing everything.
func (e *Engine) RemoveFavorite(treeUUID, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sl, ok := e.favorites[treeUUID]
	if !ok {
		return fmt.Errorf("engine: remove favorite: unknown tree %s", treeUUID)
	}
	if sl == nil {
		return nil
	}
	sl.Del(synclist.Clean(path))
	if len(sl.Paths()) == 0 {
		e.favorites[treeUUID] = nil
	}
	return nil
}
