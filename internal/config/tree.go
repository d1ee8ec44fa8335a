package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Tree represents a single locally configured sync tree within a TOML
// config file. Per-tree section overrides (e.g. [tree.laptop.filter])
// completely replace the corresponding global section — individual fields
// are not merged.
type Tree struct {
	LocalPath      string   `toml:"local_path"`
	SyncUUID       string   `toml:"sync_uuid"`
	TreeUUID       string   `toml:"tree_uuid"`
	RemoteTreeUUID string   `toml:"remote_tree_uuid"`
	PeerAddress    string   `toml:"peer_address"`
	Favorites      []string `toml:"favorites"`
	Enabled        *bool    `toml:"enabled"`
	SyncInterval   string   `toml:"sync_interval"`

	// Per-tree section overrides (completely replace global sections).
	Filter    *FilterConfig    `toml:"filter,omitempty"`
	Transfers *TransfersConfig `toml:"transfers,omitempty"`
	Safety    *SafetyConfig    `toml:"safety,omitempty"`
	Sync      *SyncConfig      `toml:"sync,omitempty"`
	Logging   *LoggingConfig   `toml:"logging,omitempty"`
	Network   *NetworkConfig   `toml:"network,omitempty"`
}

// ResolvedTree contains tree fields plus effective config sections after
// merging global defaults with per-tree overrides. This is the final
// product consumed by the CLI and the engine.
type ResolvedTree struct {
	Name           string
	Enabled        bool
	LocalPath      string
	SyncUUID       string
	TreeUUID       string
	RemoteTreeUUID string
	PeerAddress    string
	Favorites      []string

	Filter    FilterConfig
	Transfers TransfersConfig
	Safety    SafetyConfig
	Sync      SyncConfig
	Logging   LoggingConfig
	Network   NetworkConfig
}

// MatchTree selects a tree from the config by name. The matching precedence
// is: exact name > partial substring match. If selector is empty,
// auto-selects when exactly one tree is configured.
func MatchTree(cfg *Config, selector string) (string, Tree, error) {
	if len(cfg.Trees) == 0 {
		return "", Tree{}, fmt.Errorf("no trees configured — add a [tree.NAME] section to the config file")
	}

	if selector == "" {
		return matchSingleTree(cfg)
	}

	return matchTreeBySelector(cfg, selector)
}

func matchSingleTree(cfg *Config) (string, Tree, error) {
	if len(cfg.Trees) == 1 {
		for name := range cfg.Trees {
			return name, cfg.Trees[name], nil
		}
	}

	return "", Tree{}, fmt.Errorf("multiple trees configured — specify one by name")
}

func matchTreeBySelector(cfg *Config, selector string) (string, Tree, error) {
	if t, ok := cfg.Trees[selector]; ok {
		return selector, t, nil
	}

	return matchTreePartial(cfg, selector)
}

func matchTreePartial(cfg *Config, selector string) (string, Tree, error) {
	var matches []string

	for name := range cfg.Trees {
		if strings.Contains(name, selector) {
			matches = append(matches, name)
		}
	}

	if len(matches) == 1 {
		return matches[0], cfg.Trees[matches[0]], nil
	}

	if len(matches) > 1 {
		return "", Tree{}, fmt.Errorf("ambiguous tree selector %q matches: %s",
			selector, strings.Join(matches, ", "))
	}

	return "", Tree{}, fmt.Errorf("no tree matching %q", selector)
}

// ResolveTree merges global defaults with tree-specific overrides.
func ResolveTree(cfg *Config, name string, tree *Tree) *ResolvedTree {
	resolved := &ResolvedTree{
		Name:        name,
		Enabled:     tree.Enabled == nil || *tree.Enabled,
		LocalPath:   expandTilde(tree.LocalPath),
		SyncUUID:       tree.SyncUUID,
		TreeUUID:       tree.TreeUUID,
		RemoteTreeUUID: tree.RemoteTreeUUID,
		PeerAddress:    tree.PeerAddress,
		Favorites:   tree.Favorites,
		Filter:      resolveSection(tree.Filter, cfg.Filter),
		Transfers:   resolveSection(tree.Transfers, cfg.Transfers),
		Safety:      resolveSection(tree.Safety, cfg.Safety),
		Sync:        resolveSection(tree.Sync, cfg.Sync),
		Logging:     resolveSection(tree.Logging, cfg.Logging),
		Network:     resolveSection(tree.Network, cfg.Network),
	}

	if resolved.LocalPath == "" {
		resolved.LocalPath = expandTilde(DefaultLocalPath(name))
	}

	if tree.SyncInterval != "" {
		resolved.Sync.SyncInterval = tree.SyncInterval
	}

	return resolved
}

// resolveSection returns the tree override if present, otherwise the global value.
func resolveSection[T any](override *T, global T) T {
	if override != nil {
		return *override
	}

	return global
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}

// TreeStatePath returns the metastore database path for a tree.
func TreeStatePath(treeName string) string {
	dataDir := DefaultDataDir()
	if dataDir == "" {
		return ""
	}

	return filepath.Join(dataDir, "state", sanitizeFileComponent(treeName)+".db")
}
