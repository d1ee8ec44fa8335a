package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// stdoutIsTerminal reports whether stdout is an interactive terminal,
// used to decide whether table output gets aligned columns or plain
// tab-separated fields for piping.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// formatBytes returns a human-readable size string, e.g. "1.2 MB".
func formatBytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

// formatTime returns a compact relative-or-absolute timestamp for
// display: recent times are shown relative ("3 minutes ago"), anything
// older falls back to a calendar date.
func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	t := time.UnixMilli(ms)
	if time.Since(t) < 24*time.Hour {
		return humanize.Time(t)
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}
	return t.Format("Jan _2  2006")
}

// printTable writes headers and rows to w: aligned columns when stdout
// is a terminal, tab-separated fields (friendlier to pipe into cut/awk)
// otherwise.
func printTable(w io.Writer, headers []string, rows [][]string) {
	if !stdoutIsTerminal() {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)
	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}
