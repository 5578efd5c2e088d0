// Package patch validates and applies unified diffs against a repository
// checkout.
package patch

import (
	"regexp"
	"strings"
)

var (
	fileHeaderRegex = regexp.MustCompile(`^(?:\+\+\+|---) (?:[ab]/)?(.+?)\s*$`)
	hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)
)

// FileStat summarizes one file's portion of a unified diff.
type FileStat struct {
	Path    string
	Hunks   int
	Added   int
	Removed int
}

// ParseFiles splits a unified diff into per-file statistics, in the order
// the files appear. Used for logging and for matching dry-run conflicts back
// to file paths.
func ParseFiles(diff string) []FileStat {
	var stats []FileStat
	var current *FileStat

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			m := fileHeaderRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			path := m[1]
			if path == "/dev/null" {
				// Deletion: keep the path from the preceding --- line.
				if current != nil {
					continue
				}
			}
			stats = append(stats, FileStat{Path: path})
			current = &stats[len(stats)-1]
		case strings.HasPrefix(line, "--- "):
			m := fileHeaderRegex.FindStringSubmatch(line)
			if m != nil && m[1] != "/dev/null" {
				// Remember the old path so deletions still report a file.
				stats = append(stats, FileStat{Path: m[1]})
				current = &stats[len(stats)-1]
			}
		case hunkHeaderRegex.MatchString(line):
			if current != nil {
				current.Hunks++
			}
		case strings.HasPrefix(line, "+"):
			if current != nil {
				current.Added++
			}
		case strings.HasPrefix(line, "-"):
			if current != nil {
				current.Removed++
			}
		}
	}

	// The --- / +++ pairs above produce duplicates for modified files; keep
	// the entry that accumulated hunks.
	return dedupeStats(stats)
}

func dedupeStats(stats []FileStat) []FileStat {
	byPath := make(map[string]int)
	var out []FileStat
	for _, s := range stats {
		if idx, ok := byPath[s.Path]; ok {
			out[idx].Hunks += s.Hunks
			out[idx].Added += s.Added
			out[idx].Removed += s.Removed
			continue
		}
		byPath[s.Path] = len(out)
		out = append(out, s)
	}
	return out
}

// Paths returns the file paths named by the diff.
func Paths(diff string) []string {
	stats := ParseFiles(diff)
	paths := make([]string, 0, len(stats))
	for _, s := range stats {
		paths = append(paths, s.Path)
	}
	return paths
}
