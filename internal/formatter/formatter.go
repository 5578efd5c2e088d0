// Package formatter runs code formatters over a checked-out pull request and
// collects the unified diffs they propose.
package formatter

import (
	"context"
	"path/filepath"
	"strings"
)

// Formatter produces a unified diff of the changes it would make to a range
// of commits in a repository checkout.
type Formatter interface {
	// Name is the stable identifier recorded in comment markers.
	Name() string
	// FriendlyName is the human-facing description used in comments.
	FriendlyName() string
	// Instructions renders the shell command a contributor can run locally
	// to reproduce the diff.
	Instructions(startRev, endRev string, files []string) string
	// FilterFiles returns the subset of changed files this formatter
	// handles.
	FilterFiles(files []string) []string
	// Run executes the formatter in repoPath over startRev..endRev and
	// returns the unified diff, or "" when the code is already clean.
	Run(ctx context.Context, repoPath, startRev, endRev string, files []string) (string, error)
}

// ExcludePaths drops files living under any of the named directories or
// carrying any of the named extension suffixes. Both lists come from the
// repository's own config; a leading dot on extensions is optional.
func ExcludePaths(files, excludeDirs, excludeExts []string) []string {
	if len(excludeDirs) == 0 && len(excludeExts) == 0 {
		return files
	}

	suffixes := make([]string, 0, len(excludeExts))
	for _, ext := range excludeExts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		suffixes = append(suffixes, strings.ToLower(ext))
	}

	var out []string
fileLoop:
	for _, f := range files {
		for _, dir := range excludeDirs {
			for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(f)), "/") {
				if part == dir {
					continue fileLoop
				}
			}
		}
		lower := strings.ToLower(f)
		for _, suffix := range suffixes {
			if strings.HasSuffix(lower, suffix) {
				continue fileLoop
			}
		}
		out = append(out, f)
	}
	return out
}

func filterByExtension(files []string, extensions map[string]bool) []string {
	var out []string
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if extensions[ext] {
			out = append(out, f)
		}
	}
	return out
}

// normalizeDiff converts CRLF and bare CR line endings to LF so that diffs
// survive transport through comment bodies unchanged.
func normalizeDiff(diff string) string {
	diff = strings.ReplaceAll(diff, "\r\n", "\n")
	return strings.ReplaceAll(diff, "\r", "\n")
}
