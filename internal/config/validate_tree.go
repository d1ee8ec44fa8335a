package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// validateTrees checks all tree-level constraints: per-tree setting
// validity and local_path uniqueness.
func validateTrees(cfg *Config) []error {
	if len(cfg.Trees) == 0 {
		return nil // no trees is valid (none created yet)
	}

	var errs []error

	localPaths := make(map[string]string, len(cfg.Trees))

	for name := range cfg.Trees {
		tree := cfg.Trees[name]
		errs = append(errs, validateSingleTree(name, &tree, localPaths)...)
	}

	errs = append(errs, checkLocalPathOverlap(localPaths)...)

	return errs
}

// validateSingleTree validates one tree's fields and checks local_path
// uniqueness. Empty local_path is valid — runtime defaults are computed
// in ResolveTree().
func validateSingleTree(name string, tree *Tree, localPaths map[string]string) []error {
	var errs []error

	if tree.SyncInterval != "" {
		if err := validateDuration("sync_interval", tree.SyncInterval, minSyncInterval); err != nil {
			errs = append(errs, fmt.Errorf("tree %q: %w", name, err))
		}
	}

	errs = append(errs, checkTreeLocalPathUniqueness(name, tree, localPaths)...)

	return errs
}

// checkTreeLocalPathUniqueness ensures no two trees share the same expanded local_path.
func checkTreeLocalPathUniqueness(name string, tree *Tree, seen map[string]string) []error {
	if tree.LocalPath == "" {
		return nil
	}

	expanded := expandTilde(tree.LocalPath)

	if other, exists := seen[expanded]; exists {
		return []error{fmt.Errorf(
			"trees %q and %q have the same local_path %q", other, name, tree.LocalPath)}
	}

	seen[expanded] = name

	return nil
}

// checkLocalPathOverlap detects ancestor/descendant relationships between
// tree local paths. Two trees whose local paths overlap (one is a parent of
// the other) would cause duplicate, conflicting syncing.
func checkLocalPathOverlap(localPaths map[string]string) []error {
	type entry struct {
		path string
		name string
	}

	entries := make([]entry, 0, len(localPaths))
	for path, name := range localPaths {
		entries = append(entries, entry{path: filepath.Clean(path), name: name})
	}

	var errs []error

	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if isAncestorOrDescendant(entries[i].path, entries[j].path) {
				errs = append(errs, fmt.Errorf(
					"local_path overlap: trees %q and %q have nested directories (%s, %s)",
					entries[i].name, entries[j].name, entries[i].path, entries[j].path))
			}
		}
	}

	return errs
}

// isAncestorOrDescendant returns true if a is an ancestor of b or b is an
// ancestor of a. Uses filepath.Separator suffix to avoid false positives from
// path prefixes (e.g., "/sync" vs "/syncBackup").
func isAncestorOrDescendant(a, b string) bool {
	aSlash := a + string(filepath.Separator)
	bSlash := b + string(filepath.Separator)

	return strings.HasPrefix(bSlash, aSlash) || strings.HasPrefix(aSlash, bSlash)
}
