package metastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zisync/zisync/internal/vclock"
)

// --- Device ---

func (s *Store) GetDevice(ctx context.Context, deviceUUID string) (*Device, error) {
	d := &Device{}
	err := s.ctrlStmts.getDevice.QueryRowContext(ctx, deviceUUID).Scan(
		&d.DeviceUUID, &d.Name, &d.Platform, &d.RoutePort, &d.DataPort,
		&d.Trusted, &d.CreatedAt, &d.UnboundAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", deviceUUID, err)
	}
	return d, nil
}

func (s *Store) UpsertDevice(ctx context.Context, d *Device) error {
	_, err := s.ctrlStmts.upsertDevice.ExecContext(ctx,
		d.DeviceUUID, d.Name, d.Platform, d.RoutePort, d.DataPort,
		d.Trusted, d.CreatedAt, d.UnboundAt,
	)
	if err != nil {
		return fmt.Errorf("upsert device %s: %w", d.DeviceUUID, err)
	}
	return nil
}

func (s *Store) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := s.ctrlStmts.listDevices.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		d := &Device{}
		if err := rows.Scan(&d.DeviceUUID, &d.Name, &d.Platform, &d.RoutePort, &d.DataPort,
			&d.Trusted, &d.CreatedAt, &d.UnboundAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Sync ---

func (s *Store) GetSync(ctx context.Context, syncUUID string) (*Sync, error) {
	sy := &Sync{}
	var perm, typ string
	err := s.ctrlStmts.getSync.QueryRowContext(ctx, syncUUID).Scan(
		&sy.SyncUUID, &sy.Name, &perm, &typ, &sy.CreatorUUID, &sy.CreatedAt, &sy.DestroyedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync %s: %w", syncUUID, err)
	}
	sy.Permission = Permission(perm)
	sy.Type = SyncType(typ)
	return sy, nil
}

func (s *Store) UpsertSync(ctx context.Context, sy *Sync) error {
	_, err := s.ctrlStmts.upsertSync.ExecContext(ctx,
		sy.SyncUUID, sy.Name, string(sy.Permission), string(sy.Type),
		sy.CreatorUUID, sy.CreatedAt, sy.DestroyedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert sync %s: %w", sy.SyncUUID, err)
	}
	return nil
}

func (s *Store) ListSyncs(ctx context.Context) ([]*Sync, error) {
	rows, err := s.ctrlStmts.listSyncs.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list syncs: %w", err)
	}
	defer rows.Close()

	var out []*Sync
	for rows.Next() {
		sy := &Sync{}
		var perm, typ string
		if err := rows.Scan(&sy.SyncUUID, &sy.Name, &perm, &typ, &sy.CreatorUUID,
			&sy.CreatedAt, &sy.DestroyedAt); err != nil {
			return nil, fmt.Errorf("scan sync: %w", err)
		}
		sy.Permission = Permission(perm)
		sy.Type = SyncType(typ)
		out = append(out, sy)
	}
	return out, rows.Err()
}

// --- Tree ---

func (s *Store) GetTree(ctx context.Context, treeUUID string) (*Tree, error) {
	t := &Tree{}
	var role string
	err := s.ctrlStmts.getTree.QueryRowContext(ctx, treeUUID).Scan(
		&t.TreeUUID, &t.SyncUUID, &t.DeviceID, &t.RootPath, &role,
		&t.Enabled, &t.CreatedAt, &t.DestroyedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tree %s: %w", treeUUID, err)
	}
	t.Role = TreeRole(role)
	return t, nil
}

func (s *Store) UpsertTree(ctx context.Context, t *Tree) error {
	_, err := s.ctrlStmts.upsertTree.ExecContext(ctx,
		t.TreeUUID, t.SyncUUID, t.DeviceID, t.RootPath, string(t.Role),
		t.Enabled, t.CreatedAt, t.DestroyedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tree %s: %w", t.TreeUUID, err)
	}
	return nil
}

func (s *Store) ListTreesBySync(ctx context.Context, syncUUID string) ([]*Tree, error) {
	rows, err := s.ctrlStmts.listTreesBySync.QueryContext(ctx, syncUUID)
	if err != nil {
		return nil, fmt.Errorf("list trees for sync %s: %w", syncUUID, err)
	}
	defer rows.Close()

	var out []*Tree
	for rows.Next() {
		t := &Tree{}
		var role string
		if err := rows.Scan(&t.TreeUUID, &t.SyncUUID, &t.DeviceID, &t.RootPath, &role,
			&t.Enabled, &t.CreatedAt, &t.DestroyedAt); err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		t.Role = TreeRole(role)
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Conflict ledger ---

func (s *Store) RecordConflict(ctx context.Context, r *ConflictRecord) error {
	localJSON, err := json.Marshal(r.LocalClock)
	if err != nil {
		return fmt.Errorf("encode local clock: %w", err)
	}
	remoteJSON, err := json.Marshal(r.RemoteClock)
	if err != nil {
		return fmt.Errorf("encode remote clock: %w", err)
	}

	_, err = s.ctrlStmts.recordConflict.ExecContext(ctx,
		r.ID, r.SyncUUID, r.Path, r.ConflictPath, r.DetectedAt,
		r.LocalSHA1, r.RemoteSHA1, string(localJSON), string(remoteJSON),
	)
	if err != nil {
		return fmt.Errorf("record conflict %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListConflicts(ctx context.Context, syncUUID string) ([]*ConflictRecord, error) {
	rows, err := s.ctrlStmts.listConflicts.QueryContext(ctx, syncUUID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts for %s: %w", syncUUID, err)
	}
	defer rows.Close()

	var out []*ConflictRecord
	for rows.Next() {
		r := &ConflictRecord{}
		var localJSON, remoteJSON string
		if err := rows.Scan(&r.ID, &r.SyncUUID, &r.Path, &r.ConflictPath, &r.DetectedAt,
			&r.LocalSHA1, &r.RemoteSHA1, &localJSON, &remoteJSON); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		r.LocalClock = vclock.New()
		r.RemoteClock = vclock.New()
		_ = json.Unmarshal([]byte(localJSON), &r.LocalClock)
		_ = json.Unmarshal([]byte(remoteJSON), &r.RemoteClock)
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- Stale entries ---

func (s *Store) RecordStale(ctx context.Context, e *StaleEntry) error {
	_, err := s.ctrlStmts.recordStale.ExecContext(ctx,
		e.ID, e.TreeUUID, e.Path, e.Reason, e.DetectedAt, e.Size,
	)
	if err != nil {
		return fmt.Errorf("record stale entry %s: %w", e.ID, err)
	}
	return nil
}

func (s *Store) ListStale(ctx context.Context, treeUUID string) ([]*StaleEntry, error) {
	rows, err := s.ctrlStmts.listStale.QueryContext(ctx, treeUUID)
	if err != nil {
		return nil, fmt.Errorf("list stale entries for %s: %w", treeUUID, err)
	}
	defer rows.Close()

	var out []*StaleEntry
	for rows.Next() {
		e := &StaleEntry{}
		if err := rows.Scan(&e.ID, &e.TreeUUID, &e.Path, &e.Reason, &e.DetectedAt, &e.Size); err != nil {
			return nil, fmt.Errorf("scan stale entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) RemoveStale(ctx context.Context, id string) error {
	_, err := s.ctrlStmts.removeStale.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("remove stale entry %s: %w", id, err)
	}
	return nil
}
