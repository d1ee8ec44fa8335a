package indexer

import "strings"

// StagingDirName is the per-session staging directory created under a
// tree root during a pull; it and everything beneath it are always
// skipped by the indexer.
const StagingDirName = ".zstm"

// ManifestFileName is the basename of the manifest entry that leads each
// transfer archive; the indexer never treats a file of this name as sync
// data.
const ManifestFileName = ".zisync.meta"

// ignoreDirNames are directory basenames skipped anywhere in the tree,
// ported from original_source's ignore_dirs table.
var ignoreDirNames = []string{
	StagingDirName,
	"$RECYCLE.BIN",
	"RECYCLER",
	".thumbnails",
	"System Volume Information",
}

// ignoreFileNames are file basenames skipped anywhere in the tree.
var ignoreFileNames = []string{
	ManifestFileName,
}

// IsIgnoredDir reports whether a directory with this basename should be
// skipped entirely (neither walked nor recorded).
func IsIgnoredDir(name string) bool {
	for _, d := range ignoreDirNames {
		if name == d {
			return true
		}
		if strings.HasPrefix(name, StagingDirName) {
			return true
		}
	}
	return false
}

// IsIgnoredFile reports whether a file with this basename should be
// skipped.
func IsIgnoredFile(name string) bool {
	for _, f := range ignoreFileNames {
		if name == f {
			return true
		}
	}
	return false
}
