package metastore

import "github.com/zisync/zisync/internal/vclock"

// FileType distinguishes regular files from directories in a FileMeta row.
type FileType string

const (
	FileTypeRegular   FileType = "regular"
	FileTypeDirectory FileType = "directory"
)

// FileStatus tracks whether a FileMeta row describes a live entry or a
// tombstone. Tombstones are never physically deleted: they retain their
// VClock so causal history survives the removal.
type FileStatus string

const (
	StatusNormal  FileStatus = "normal"
	StatusRemoved FileStatus = "removed"
)

// Permission is a Sync's access mode, checked by the planner before a
// candidate action is allowed to cross the wire in either direction.
type Permission string

const (
	PermReadOnly     Permission = "rdonly"
	PermWriteOnly    Permission = "wronly"
	PermReadWrite    Permission = "rdwr"
	PermDisconnected Permission = "disconnected"
)

// SyncType distinguishes a plain two-way sync from a one-way backup.
type SyncType string

const (
	SyncNormal SyncType = "normal"
	SyncBackup SyncType = "backup"
	SyncShared SyncType = "shared"
)

// TreeRole disambiguates the two ends of a backup-type sync; it is
// meaningless for SyncNormal/SyncShared.
type TreeRole string

const (
	RoleNone      TreeRole = "none"
	RoleBackupSrc TreeRole = "backup-src"
	RoleBackupDst TreeRole = "backup-dst"
)

// Device is a paired peer participating in one or more syncs.
type Device struct {
	DeviceUUID string
	Name       string
	Platform   string
	RoutePort  int
	DataPort   int
	Trusted    bool
	CreatedAt  int64
	UnboundAt  int64 // zero means still bound
}

// Sync groups a set of Trees (one per participating device) under a
// shared permission and type.
type Sync struct {
	SyncUUID    string
	Name        string
	Permission  Permission
	Type        SyncType
	CreatorUUID string
	CreatedAt   int64
	DestroyedAt int64
}

// Tree is one device's root directory participating in a Sync.
type Tree struct {
	TreeUUID  string
	SyncUUID  string
	DeviceID  string
	RootPath  string
	Role      TreeRole
	Enabled   bool
	CreatedAt int64
	DestroyedAt int64
}

// WinAttr, UnixAttr and AndroidAttr carry the platform-specific attribute
// bits the manifest format transports verbatim; the core never interprets
// them beyond round-tripping.
type WinAttr uint32
type UnixAttr uint32
type AndroidAttr uint32

// FileMeta is a single row in a tree's metadata table, keyed by
// (TreeUUID, Path). It is created at first index and mutated on every
// observed change; it is never physically deleted, only tombstoned via
// Status=StatusRemoved.
type FileMeta struct {
	TreeUUID string
	Path     string // lexicographically comparable, slash-separated, leading "/"

	Type   FileType
	Length int64
	MtimeMS int64

	SHA1   string // hex-encoded, empty until computed for a regular file
	Status FileStatus
	USN    int64

	Clock vclock.Clock

	WinAttr     WinAttr
	UnixAttr    UnixAttr
	AndroidAttr AndroidAttr
	Alias       string // opaque platform handle (e.g. inode/FileID), best-effort

	ModifierDevice string
	Timestamp      int64

	CreatedAt int64
	UpdatedAt int64
}

// IsTombstone reports whether m represents a removed entry.
func (m *FileMeta) IsTombstone() bool {
	return m.Status == StatusRemoved
}

// ConflictRecord is an observability-only ledger entry recorded whenever
// the planner resolves a CONFLICT ordering between two FileMeta rows. It
// does not drive resolution policy — the rename-aside-and-overwrite
// behavior in the planner is unconditional.
type ConflictRecord struct {
	ID           string
	SyncUUID     string
	Path         string
	ConflictPath string
	DetectedAt   int64
	LocalSHA1    string
	RemoteSHA1   string
	LocalClock   vclock.Clock
	RemoteClock  vclock.Clock
}

// StaleEntry records a path that fell outside an updated SyncList but
// still exists locally, surfaced via QueryStaleFiles for the operator to
// act on (the core never deletes these on its own).
type StaleEntry struct {
	ID         string
	TreeUUID   string
	Path       string
	Reason     string
	DetectedAt int64
	Size       int64
}
