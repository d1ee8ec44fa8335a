package planner

import (
	"path"
	"strconv"
	"strings"
)

// maxConflictSuffix bounds the numeric suffix search. Exceeding this many
// collisions on one path in one planning pass is implausible; if it
// happens the unsuffixed candidate is returned as a best-effort fallback,
// mirroring the teacher's timestamp-naming fallback.
const maxConflictSuffix = 1000

// generateConflictPath returns the first free `<name>.conflict[.N][.ext]`
// candidate for originalPath, trying no suffix first, then .1, .2, ...
// taken reports whether a candidate path is already occupied — by a row
// in either snapshot, or by a path already claimed earlier in this same
// planning pass.
func generateConflictPath(originalPath string, taken func(candidate string) bool) string {
	stem, ext := conflictStemExt(originalPath)

	base := stem + ".conflict" + ext
	if !taken(base) {
		return base
	}

	for n := 1; n <= maxConflictSuffix; n++ {
		candidate := stem + ".conflict." + strconv.Itoa(n) + ext
		if !taken(candidate) {
			return candidate
		}
	}
	return base
}

// conflictStemExt splits originalPath into a (stem, ext) pair. Dotfiles
// whose only dot is the leading one (e.g. "/.bashrc") are treated as
// having no extension, so the suffix is appended to the whole name
// rather than swallowing it as an "extension".
func conflictStemExt(originalPath string) (stem, ext string) {
	dir, base := path.Split(originalPath)

	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return dir + base, ""
	}

	ext = path.Ext(base)
	stem = dir + strings.TrimSuffix(base, ext)
	return stem, ext
}
