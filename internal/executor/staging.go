package executor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// StagingDirName is the per-tree hidden directory holding in-progress
// session data, matching internal/indexer's ignore-set entry of the
// same name so the indexer never sees partial files.
const StagingDirName = ".zstm"

// StagingSession owns one session's scratch directory under
// <treeRoot>/.zstm/<random>, removed in its entirety once the session
// finishes regardless of outcome.
type StagingSession struct {
	Dir string
}

// NewStagingSession creates a fresh, empty staging directory under
// treeRoot and hides it via the platform "hidden" bit where supported
// (hidden_windows.go/hidden_unix.go).
func NewStagingSession(treeRoot string) (*StagingSession, error) {
	base := filepath.Join(treeRoot, StagingDirName)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create staging base dir: %w", err)
	}
	_ = hidePath(base) // best-effort; absence of the hidden bit never blocks staging

	dir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: create staging dir: %w", err)
	}
	return &StagingSession{Dir: dir}, nil
}

// Path returns the staging path for a relative file path within this
// session.
func (s *StagingSession) Path(relPath string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(relPath))
}

// Cleanup removes the entire staging directory. It is always safe to
// call, including after a partial or failed transfer.
func (s *StagingSession) Cleanup() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("executor: cleanup staging dir %s: %w", s.Dir, err)
	}
	return nil
}
