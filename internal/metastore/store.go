// Package metastore persists FileMeta rows, vector clocks, and the
// control-plane entities (Device, Sync, Tree) in an embedded SQLite
// database.
package metastore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"

	"github.com/zisync/zisync/internal/vclock"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	walJournalSizeLimit = 67108864
	schemaVersion       = 1
)

// Store is a SQLite-backed MetaStore. One Store instance covers every
// tree owned by this device: rows are partitioned by tree_uuid.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	fileStmts fileStatements
	usnStmts  usnStatements
	ctrlStmts controlStatements
}

type fileStatements struct {
	get, upsert, scanRange, scanAll *sql.Stmt
}

type usnStatements struct {
	allocate, ensure *sql.Stmt
}

type controlStatements struct {
	getDevice, upsertDevice, listDevices                     *sql.Stmt
	getSync, upsertSync, listSyncs                           *sql.Stmt
	getTree, upsertTree, listTreesBySync                      *sql.Stmt
	recordConflict, listConflicts                            *sql.Stmt
	recordStale, listStale, removeStale                      *sql.Stmt
}

// Open creates or opens the database at dbPath (use ":memory:" for
// tests), applies pragmas and migrations, and prepares all statements.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	logger.Info("opening metastore database", "path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := setPragmas(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if err := s.prepareAll(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	logger.Info("metastore ready", "path", dbPath)
	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct{ sql, desc string }{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("set pragma %s: %w", p.desc, err)
		}
		logger.Debug("pragma set", "pragma", p.desc)
	}
	return nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		logger.Debug("schema up to date", "version", current)
		return nil
	}
	for v := current + 1; v <= schemaVersion; v++ {
		if err := applyMigration(ctx, db, logger, v); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, logger *slog.Logger, version int) error {
	filename := fmt.Sprintf("migrations/%06d_initial_schema.up.sql", version)
	sqlBytes, err := fs.ReadFile(migrationsFS, filename)
	if err != nil {
		return fmt.Errorf("read migration %d: %w", version, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %d: %w", version, err)
	}

	if _, execErr := tx.ExecContext(ctx, string(sqlBytes)); execErr != nil {
		rbErr := tx.Rollback()
		return fmt.Errorf("exec migration %d: %w (rollback: %v)", version, execErr, rbErr)
	}

	versionSQL := fmt.Sprintf("PRAGMA user_version = %d", version)
	if _, execErr := tx.ExecContext(ctx, versionSQL); execErr != nil {
		rbErr := tx.Rollback()
		return fmt.Errorf("stamp version %d: %w (rollback: %v)", version, execErr, rbErr)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	logger.Info("applied migration", "version", version)
	return nil
}

const (
	sqlFileColumns = `tree_uuid, path, type, length, mtime_ms, sha1, status, usn,
		clock_json, win_attr, unix_attr, android_attr, alias,
		modifier_device, timestamp, created_at, updated_at`

	sqlGetFile = `SELECT ` + sqlFileColumns + ` FROM file_meta WHERE tree_uuid = ? AND path = ?`

	sqlUpsertFile = `INSERT INTO file_meta (` + sqlFileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tree_uuid, path) DO UPDATE SET
			type = excluded.type, length = excluded.length,
			mtime_ms = excluded.mtime_ms, sha1 = excluded.sha1,
			status = excluded.status, usn = excluded.usn,
			clock_json = excluded.clock_json,
			win_attr = excluded.win_attr, unix_attr = excluded.unix_attr,
			android_attr = excluded.android_attr, alias = excluded.alias,
			modifier_device = excluded.modifier_device, timestamp = excluded.timestamp,
			updated_at = excluded.updated_at`

	sqlScanRange = `SELECT ` + sqlFileColumns + ` FROM file_meta
		WHERE tree_uuid = ? AND path >= ? AND path < ? ORDER BY path ASC`

	sqlScanAll = `SELECT ` + sqlFileColumns + ` FROM file_meta
		WHERE tree_uuid = ? ORDER BY path ASC`
)

func (s *Store) prepareAll(ctx context.Context) error {
	type def struct {
		dest **sql.Stmt
		sql  string
	}
	groups := [][]def{
		{
			{&s.fileStmts.get, sqlGetFile},
			{&s.fileStmts.upsert, sqlUpsertFile},
			{&s.fileStmts.scanRange, sqlScanRange},
			{&s.fileStmts.scanAll, sqlScanAll},
		},
		{
			{&s.usnStmts.ensure, `INSERT INTO usn_counters (tree_uuid, counter) VALUES (?, 0)
				ON CONFLICT(tree_uuid) DO NOTHING`},
			{&s.usnStmts.allocate, `UPDATE usn_counters SET counter = counter + ? WHERE tree_uuid = ?
				RETURNING counter`},
		},
		{
			{&s.ctrlStmts.getDevice, `SELECT device_uuid, name, platform, route_port, data_port,
				trusted, created_at, unbound_at FROM devices WHERE device_uuid = ?`},
			{&s.ctrlStmts.upsertDevice, `INSERT INTO devices
				(device_uuid, name, platform, route_port, data_port, trusted, created_at, unbound_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(device_uuid) DO UPDATE SET
					name = excluded.name, platform = excluded.platform,
					route_port = excluded.route_port, data_port = excluded.data_port,
					trusted = excluded.trusted, unbound_at = excluded.unbound_at`},
			{&s.ctrlStmts.listDevices, `SELECT device_uuid, name, platform, route_port, data_port,
				trusted, created_at, unbound_at FROM devices WHERE unbound_at = 0`},
			{&s.ctrlStmts.getSync, `SELECT sync_uuid, name, permission, type, creator_uuid,
				created_at, destroyed_at FROM syncs WHERE sync_uuid = ?`},
			{&s.ctrlStmts.upsertSync, `INSERT INTO syncs
				(sync_uuid, name, permission, type, creator_uuid, created_at, destroyed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(sync_uuid) DO UPDATE SET
					name = excluded.name, permission = excluded.permission,
					destroyed_at = excluded.destroyed_at`},
			{&s.ctrlStmts.listSyncs, `SELECT sync_uuid, name, permission, type, creator_uuid,
				created_at, destroyed_at FROM syncs WHERE destroyed_at = 0`},
			{&s.ctrlStmts.getTree, `SELECT tree_uuid, sync_uuid, device_id, root_path, role,
				enabled, created_at, destroyed_at FROM trees WHERE tree_uuid = ?`},
			{&s.ctrlStmts.upsertTree, `INSERT INTO trees
				(tree_uuid, sync_uuid, device_id, root_path, role, enabled, created_at, destroyed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(tree_uuid) DO UPDATE SET
					role = excluded.role, enabled = excluded.enabled,
					destroyed_at = excluded.destroyed_at`},
			{&s.ctrlStmts.listTreesBySync, `SELECT tree_uuid, sync_uuid, device_id, root_path, role,
				enabled, created_at, destroyed_at FROM trees
				WHERE sync_uuid = ? AND destroyed_at = 0`},
			{&s.ctrlStmts.recordConflict, `INSERT INTO conflicts
				(id, sync_uuid, path, conflict_path, detected_at, local_sha1, remote_sha1,
				 local_clock_json, remote_clock_json)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`},
			{&s.ctrlStmts.listConflicts, `SELECT id, sync_uuid, path, conflict_path, detected_at,
				local_sha1, remote_sha1, local_clock_json, remote_clock_json
				FROM conflicts WHERE sync_uuid = ?`},
			{&s.ctrlStmts.recordStale, `INSERT INTO stale_entries
				(id, tree_uuid, path, reason, detected_at, size) VALUES (?, ?, ?, ?, ?, ?)`},
			{&s.ctrlStmts.listStale, `SELECT id, tree_uuid, path, reason, detected_at, size
				FROM stale_entries WHERE tree_uuid = ?`},
			{&s.ctrlStmts.removeStale, `DELETE FROM stale_entries WHERE id = ?`},
		},
	}

	for _, group := range groups {
		for _, d := range group {
			stmt, err := s.db.PrepareContext(ctx, d.sql)
			if err != nil {
				return fmt.Errorf("prepare statement: %w", err)
			}
			*d.dest = stmt
		}
	}
	return nil
}

// --- FileMeta scanning helpers ---

func scanFileMeta(row interface{ Scan(...any) error }) (*FileMeta, error) {
	m := &FileMeta{}
	var clockJSON string
	var typ, status string

	err := row.Scan(
		&m.TreeUUID, &m.Path, &typ, &m.Length, &m.MtimeMS, &m.SHA1, &status, &m.USN,
		&clockJSON, &m.WinAttr, &m.UnixAttr, &m.AndroidAttr, &m.Alias,
		&m.ModifierDevice, &m.Timestamp, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Type = FileType(typ)
	m.Status = FileStatus(status)

	clock := vclock.New()
	if clockJSON != "" {
		if err := json.Unmarshal([]byte(clockJSON), &clock); err != nil {
			return nil, fmt.Errorf("decode clock for %s: %w", m.Path, err)
		}
	}
	m.Clock = clock
	return m, nil
}

func upsertArgs(m *FileMeta) ([]any, error) {
	clockJSON, err := json.Marshal(m.Clock)
	if err != nil {
		return nil, fmt.Errorf("encode clock for %s: %w", m.Path, err)
	}
	return []any{
		m.TreeUUID, m.Path, string(m.Type), m.Length, m.MtimeMS, m.SHA1, string(m.Status), m.USN,
		string(clockJSON), m.WinAttr, m.UnixAttr, m.AndroidAttr, m.Alias,
		m.ModifierDevice, m.Timestamp, m.CreatedAt, m.UpdatedAt,
	}, nil
}

// Get returns the row at (treeUUID, path), or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, treeUUID, path string) (*FileMeta, error) {
	m, err := scanFileMeta(s.fileStmts.get.QueryRowContext(ctx, treeUUID, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", treeUUID, path, err)
	}
	return m, nil
}

// Scan returns every row in [from, to) for treeUUID in lexicographic path
// order, tombstones included. An empty `to` means "no upper bound".
func (s *Store) Scan(ctx context.Context, treeUUID, from, to string) ([]*FileMeta, error) {
	var rows *sql.Rows
	var err error
	if to == "" {
		rows, err = s.fileStmts.scanAll.QueryContext(ctx, treeUUID)
	} else {
		rows, err = s.fileStmts.scanRange.QueryContext(ctx, treeUUID, from, to)
	}
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", treeUUID, err)
	}
	defer rows.Close()

	var out []*FileMeta
	for rows.Next() {
		m, scanErr := scanFileMeta(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan row: %w", scanErr)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BatchOp is one operation within an ApplyBatch call.
type BatchOp struct {
	Meta *FileMeta // always an upsert; tombstones are upserts with Status=StatusRemoved
}

// ApplyBatch applies every op atomically: either all rows become visible
// or none do. Callers that also need fresh USNs should call AllocateUSNs
// first within the same logical operation and stamp the returned values
// into each FileMeta before calling ApplyBatch.
func (s *Store) ApplyBatch(ctx context.Context, treeUUID string, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}

	stmt := tx.StmtContext(ctx, s.fileStmts.upsert)
	for i, op := range ops {
		args, argErr := upsertArgs(op.Meta)
		if argErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("batch op %d: %w", i, argErr)
		}
		if _, execErr := stmt.ExecContext(ctx, args...); execErr != nil {
			rbErr := tx.Rollback()
			return fmt.Errorf("batch op %d (%s): %w (rollback: %v)", i, op.Meta.Path, execErr, rbErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// AllocateUSNs reserves n monotonically increasing USNs for treeUUID and
// returns the first one; the caller owns [first, first+n).
func (s *Store) AllocateUSNs(ctx context.Context, treeUUID string, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("allocate usns: n must be positive, got %d", n)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin usn tx: %w", err)
	}

	if _, err := tx.StmtContext(ctx, s.usnStmts.ensure).ExecContext(ctx, treeUUID); err != nil {
		rbErr := tx.Rollback()
		return 0, fmt.Errorf("ensure usn counter: %w (rollback: %v)", err, rbErr)
	}

	var newCounter int64
	row := tx.StmtContext(ctx, s.usnStmts.allocate).QueryRowContext(ctx, n, treeUUID)
	if err := row.Scan(&newCounter); err != nil {
		rbErr := tx.Rollback()
		return 0, fmt.Errorf("allocate usns: %w (rollback: %v)", err, rbErr)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit usn allocation: %w", err)
	}
	return newCounter - n + 1, nil
}

// Close releases all prepared statements and the underlying connection.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{
		s.fileStmts.get, s.fileStmts.upsert, s.fileStmts.scanRange, s.fileStmts.scanAll,
		s.usnStmts.allocate, s.usnStmts.ensure,
		s.ctrlStmts.getDevice, s.ctrlStmts.upsertDevice, s.ctrlStmts.listDevices,
		s.ctrlStmts.getSync, s.ctrlStmts.upsertSync, s.ctrlStmts.listSyncs,
		s.ctrlStmts.getTree, s.ctrlStmts.upsertTree, s.ctrlStmts.listTreesBySync,
		s.ctrlStmts.recordConflict, s.ctrlStmts.listConflicts,
		s.ctrlStmts.recordStale, s.ctrlStmts.listStale, s.ctrlStmts.removeStale,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return s.db.Close()
}
