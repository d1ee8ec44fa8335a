package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// SetGlobalKey finds a top-level section (e.g. "device", "transfers") and
// sets a key within it, creating the section at the end of the file if it
// does not already exist (and the file itself if it is missing). Used by
// the control plane's tunable setters
// (SetPort, SetUploadLimit, ...) to persist a runtime change back to disk,
// mirroring SetTreeKey's text-level edit but scoped to a bracketed global
// section instead of "[tree.NAME]".
func SetGlobalKey(path, section, key, value string) error {
	slog.Info("setting global key in config", "path", path, "section", section, "key", key, "value", value)

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	headerLine, sectionStart := findGlobalSectionHeader(lines, section)
	if sectionStart < 0 {
		lines = append(lines, fmt.Sprintf("[%s]", section))
		headerLine = len(lines) - 1
		sectionStart = headerLine + 1
	}

	formattedValue := formatTOMLValue(value)
	newLine := fmt.Sprintf("%s = %s", key, formattedValue)

	lines = setKeyInGlobalSection(lines, headerLine, sectionStart, key, newLine)

	return atomicWriteFile(path, []byte(strings.Join(lines, "\n")))
}

// findGlobalSectionHeader locates a top-level "[section]" header line,
// distinct from "[tree.NAME]" or "[tree.NAME.section]" headers which both
// also begin with "[" but are never a bare top-level section name.
func findGlobalSectionHeader(lines []string, section string) (int, int) {
	header := fmt.Sprintf("[%s]", section)

	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i, i + 1
		}
	}

	return -1, -1
}

// findGlobalSectionEnd returns the index of the first line belonging to
// the next bracketed section (tree or global) after sectionStart, or
// len(lines) if none follows.
func findGlobalSectionEnd(lines []string, sectionStart int) int {
	for i := sectionStart; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "[") {
			return i
		}
	}
	return len(lines)
}

func setKeyInGlobalSection(lines []string, headerLine, sectionStart int, key, newLine string) []string {
	sectionEnd := findGlobalSectionEnd(lines, sectionStart)
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
