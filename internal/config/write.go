package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// sectionHeaderPrefix is the line prefix that starts a TOML section header
// for tree sections. Used to detect section boundaries in line-based edits.
const sectionHeaderPrefix = "[tree."

// configTemplate is the default config file content written on first run.
// A few common global settings are present as commented-out defaults,
// each under its section header. This template is written once
// and never regenerated — user modifications are preserved by subsequent
// text-level edits.
const configTemplate = `# zisync configuration

# ── Global settings ──
# Uncomment and modify to override defaults. Every setting belongs to a
# section: uncomment the section header together with the setting.

# [logging]
# Log verbosity: debug, info, warn, error
# log_level = "info"

# Log file path (default: platform standard location)
# log_file = ""

# [sync]
# Periodic sync interval for watch mode
# sync_interval = "5m"

# ── Trees ──
# One [tree.NAME] section per local tree.
# Each section name is a local tree identifier chosen by the user.
# Filter settings (skip_dotfiles, skip_dirs, skip_files, etc.) go in a
# global [filter] section; a [tree.NAME.filter] section overrides them
# for that tree.
`

// treeSection generates the TOML text for a new tree section. The blank
// line before the header is intentional — it visually separates tree
// sections from each other and from the global settings.
func treeSection(name, localPath string) string {
	return fmt.Sprintf("\n[tree.%s]\nlocal_path = %q\n", name, localPath)
}

// CreateConfigWithTree creates a new config file from the default template
// and appends a tree section. The write is atomic (temp file + rename) and parent
// directories are created as needed.
func CreateConfigWithTree(path, name, localPath string) error {
	slog.Info("creating config file with tree", "path", path, "name", name, "local_path", localPath)

	content := configTemplate + treeSection(name, localPath)

	return atomicWriteFile(path, []byte(content))
}

// AppendTreeSection appends a new tree section at the end of an existing
// config file. The write is atomic to avoid partial writes on crash.
func AppendTreeSection(path, name, localPath string) error {
	slog.Info("appending tree section to config", "path", path, "name", name, "local_path", localPath)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	content := string(data)

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	content += treeSection(name, localPath)

	return atomicWriteFile(path, []byte(content))
}

// SetTreeKey finds a tree section by name and sets a key-value pair. If the
// key already exists within the section, its line is replaced. If not
// found, the key is inserted on the line after the section header.
//
// Value formatting: booleans ("true"/"false") are written without quotes;
// all other values are written as quoted strings.
func SetTreeKey(path, name, key, value string) error {
	slog.Info("setting tree key in config", "path", path, "name", name, "key", key, "value", value)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findSectionHeader(lines, name)
	if sectionStart < 0 {
		return fmt.Errorf("tree section %q not found in config", name)
	}

	formattedValue := formatTOMLValue(value)
	newLine := fmt.Sprintf("%s = %s", key, formattedValue)

	lines = setKeyInSection(lines, headerLine, sectionStart, key, newLine)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// DeleteTreeKey removes a single key from a tree section. Idempotent:
// returns nil if the key does not exist in the section.
func DeleteTreeKey(path, name, key string) error {
	slog.Info("deleting tree key from config", "path", path, "name", name, "key", key)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findSectionHeader(lines, name)
	if sectionStart < 0 {
		return fmt.Errorf("tree section %q not found in config", name)
	}

	lines = deleteKeyInSection(lines, headerLine, sectionStart, key)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// DeleteTreeSection removes a tree section (header + all keys) from the
// config file. Also removes blank lines immediately preceding the section
// header for clean formatting.
func DeleteTreeSection(path, name string) error {
	slog.Info("deleting tree section from config", "path", path, "name", name)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findSectionHeader(lines, name)
	if sectionStart < 0 {
		return fmt.Errorf("tree section %q not found in config", name)
	}

	sectionEnd := findSectionEnd(lines, sectionStart)

	blankStart := headerLine
	for blankStart > 0 && strings.TrimSpace(lines[blankStart-1]) == "" {
		blankStart--
	}

	lines = append(lines[:blankStart], lines[sectionEnd:]...)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// DefaultLocalPath computes a default local directory for a tree, rooted
// under the user's home directory and named after the tree identifier.
func DefaultLocalPath(name string) string {
	return "~/ZiSync/" + sanitizeFileComponent(name)
}

// sanitizeFileComponent replaces filesystem-unsafe characters with "-".
func sanitizeFileComponent(s string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"<", "-",
		">", "-",
		"\"", "-",
		"|", "-",
		"?", "-",
		"*", "-",
	)

	result := replacer.Replace(s)

	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}

	return strings.Trim(result, "- ")
}

// findSectionHeader locates the line index of a tree section header.
// Returns the header line index and the section content start (header + 1).
// Returns -1 for both if the section is not found.
func findSectionHeader(lines []string, name string) (int, int) {
	header := fmt.Sprintf("[tree.%s]", name)

	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i, i + 1
		}
	}

	return -1, -1
}

// findSectionEnd returns the index of the first line after the section's
// own content. This excludes blank lines and comments that precede the
// next section header (those belong to the next section's preamble, not
// this section's content).
func findSectionEnd(lines []string, sectionStart int) int {
	nextHeader := len(lines)

	for i := sectionStart; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, sectionHeaderPrefix) {
			nextHeader = i

			break
		}
	}

	end := nextHeader
	for end > sectionStart {
		trimmed := strings.TrimSpace(lines[end-1])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			end--

			continue
		}

		break
	}

	return end
}

// deleteKeyInSection removes a key line from a section if it exists.
// Returns the original slice unchanged if the key is not found.
func deleteKeyInSection(lines []string, headerLine, sectionStart int, key string) []string {
	sectionEnd := findSectionEnd(lines, sectionStart)
	keyPrefix := key + " "
	keyPrefixEq := key + "="

	for i := headerLine + 1; i < sectionEnd; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, keyPrefix) || strings.HasPrefix(trimmed, keyPrefixEq) {
			return append(lines[:i], lines[i+1:]...)
		}
	}

	return lines
}

// setKeyInSection either replaces an existing key line or inserts a new
// one after the section header.
func setKeyInSection(lines []string, headerLine, sectionStart int, key, newLine string) []string {
	sectionEnd := findSectionEnd(lines, sectionStart)
	keyPrefix := key + " "
	keyPrefixEq := key + "="

	for i := headerLine + 1; i < sectionEnd; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, keyPrefix) || strings.HasPrefix(trimmed, keyPrefixEq) {
			lines[i] = newLine

			return lines
		}
	}

	inserted := make([]string, 0, len(lines)+1)
	inserted = append(inserted, lines[:headerLine+1]...)
	inserted = append(inserted, newLine)
	inserted = append(inserted, lines[headerLine+1:]...)

	return inserted
}

// formatTOMLValue formats a value for TOML output. Booleans are written
// bare (true/false); all other values are quoted strings.
func formatTOMLValue(value string) string {
	if value == "true" || value == "false" {
		return value
	}

	return fmt.Sprintf("%q", value)
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash. Parent directories are created
// as needed. Files are created with configFilePermissions (0644).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
