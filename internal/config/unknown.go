package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// deprecatedGlobalKeys maps old config key names to their replacements.
var deprecatedGlobalKeys = map[string]string{
	"poll_interval":   "sync_interval",
	"bandwidth_limit": "upload_limit",
}

// knownTopLevelSections are the valid top-level table names in the config
// file. Every setting lives under one of these sections; there are no flat
// top-level keys.
var knownTopLevelSections = []string{
	"device", "tree", "filter", "transfers", "safety", "sync", "logging", "network",
}

// knownSectionKeys maps each top-level section to its valid keys.
var knownSectionKeys = map[string]map[string]bool{
	"device": {
		"device_uuid": true, "discover_port": true, "route_port": true, "data_port": true,
		"transfer_thread_count": true, "download_cache_volume": true,
	},
	"filter": {
		"skip_files": true, "skip_dirs": true, "skip_dotfiles": true,
		"skip_symlinks": true, "max_file_size": true, "ignore_marker": true,
	},
	"transfers": {
		"upload_limit": true, "download_limit": true, "bandwidth_schedule": true, "transfer_order": true,
	},
	"safety": {
		"big_delete_threshold": true, "big_delete_percentage": true, "big_delete_min_items": true,
		"min_free_space": true, "use_local_trash": true, "disable_hash_validation": true,
		"sync_dir_permissions": true, "sync_file_permissions": true, "tombstone_retention_days": true,
	},
	"sync": {
		"sync_interval": true, "fullscan_frequency": true, "websocket": true,
		"dry_run": true, "verify_interval": true, "shutdown_timeout": true,
	},
	"logging": {
		"log_level": true, "log_file": true, "log_format": true, "log_retention_days": true,
	},
	"network": {
		"connect_timeout": true, "data_timeout": true, "user_agent": true, "force_http_11": true,
	},
}

// knownSectionKeysList caches the sorted key list per section for
// Levenshtein matching.
var knownSectionKeysList = buildSectionKeysList()

func buildSectionKeysList() map[string][]string {
	out := make(map[string][]string, len(knownSectionKeys))
	for section, keys := range knownSectionKeys {
		out[section] = sortedKeys(keys)
	}

	return out
}

// knownTreeKeys are the valid keys inside a [tree.NAME] section: the flat
// per-tree fields plus the names of sections a tree may override wholesale.
var knownTreeKeys = map[string]bool{
	"local_path": true, "sync_uuid": true, "tree_uuid": true, "remote_tree_uuid": true, "peer_address": true, "favorites": true,
	"enabled": true, "sync_interval": true,
	"filter": true, "transfers": true, "safety": true, "sync": true, "logging": true, "network": true,
}

// knownTreeKeysList is the sorted slice form for Levenshtein matching.
var knownTreeKeysList = sortedKeys(knownTreeKeys)

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns an
// error with "did you mean?" suggestions for each unknown key. Keys are
// routed by shape: "tree.NAME.field..." goes through the tree vocabulary
// (and, for per-tree section overrides, through that section's own
// vocabulary); "section.field..." goes through the matching section's
// vocabulary; a bare key that matches no known section is reported as an
// unknown top-level table.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	for _, key := range undecoded {
		if err := checkUndecodedKey(key); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func checkUndecodedKey(key toml.Key) error {
	if len(key) >= 3 && key[0] == "tree" {
		return buildTreeFieldError(key[1], key[2:])
	}

	if len(key) >= 2 {
		if section, ok := knownSectionKeys[key[0]]; ok {
			return buildSectionKeyError(key[0], section, key[1])
		}
	}

	return buildTopLevelKeyError(key[0])
}

// buildTreeFieldError validates an unknown key under [tree.NAME]. If the
// field names a known per-tree section override (e.g. "filter"), any
// sub-field beneath it is checked against that section's own vocabulary.
func buildTreeFieldError(name string, rest toml.Key) error {
	field := rest[0]

	if section, ok := knownSectionKeys[field]; ok && len(rest) >= 2 {
		return buildSectionKeyError(fmt.Sprintf("tree.%s.%s", name, field), section, rest[1])
	}

	if knownTreeKeys[field] {
		return nil
	}

	suggestion := closestMatch(field, knownTreeKeysList)
	if suggestion != "" {
		return fmt.Errorf("unknown key %q in tree [%q] — did you mean %q?", field, name, suggestion)
	}

	return fmt.Errorf("unknown key %q in tree [%q]", field, name)
}

// buildSectionKeyError validates an unknown key under a known top-level or
// per-tree section. sectionLabel is used only in the error message.
func buildSectionKeyError(sectionLabel string, known map[string]bool, field string) error {
	if known[field] {
		return nil
	}

	// Recover the bare section name (strip any "tree.NAME." prefix) to look
	// up the right suggestion list.
	parts := strings.Split(sectionLabel, ".")
	plainSection := parts[len(parts)-1]

	suggestion := closestMatch(field, knownSectionKeysList[plainSection])
	if suggestion != "" {
		return fmt.Errorf("unknown key %q in [%s] — did you mean %q?", field, sectionLabel, suggestion)
	}

	return fmt.Errorf("unknown key %q in [%s]", field, sectionLabel)
}

// buildTopLevelKeyError reports a key that does not belong to any known
// top-level section, suggesting the closest section name.
func buildTopLevelKeyError(name string) error {
	suggestion := closestMatch(name, knownTopLevelSections)
	if suggestion != "" {
		return fmt.Errorf("unknown config section %q — did you mean %q?", name, suggestion)
	}

	return fmt.Errorf("unknown config section %q", name)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = minOf(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// minOf returns the minimum of three integers.
func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
