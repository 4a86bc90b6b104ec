package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// DefaultDiffContext is the number of context lines in generated diffs.
const DefaultDiffContext = 3

// UnifiedDiff renders a unified diff of one file with a/ and b/ headers.
// Both sides are newline-terminated before diffing. Equal inputs yield "".
func UnifiedDiff(path string, original, modified []byte, context int) string {
	return unifiedDiff("a/"+path, "b/"+path, original, modified, context)
}

// CreationDiff renders the diff of a file that does not exist yet.
func CreationDiff(path string, content []byte, context int) string {
	return unifiedDiff("/dev/null", "b/"+path, nil, content, context)
}

func unifiedDiff(from, to string, original, modified []byte, context int) string {
	if bytes.Equal(original, modified) {
		return ""
	}
	if context < 0 {
		context = DefaultDiffContext
	}

	ud := difflib.UnifiedDiff{
		A:        splitLines(ensureNewline(original)),
		B:        splitLines(ensureNewline(modified)),
		FromFile: from,
		ToFile:   to,
		Context:  context,
	}

	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes\n",
			from, to, len(original), len(modified))
	}
	return text
}

func ensureNewline(b []byte) string {
	s := string(b)
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// HunkStats describes one hunk of a unified diff.
type HunkStats struct {
	OrigStart int `json:"orig_start"`
	OrigLines int `json:"orig_lines"`
	NewStart  int `json:"new_start"`
	NewLines  int `json:"new_lines"`
	Added     int `json:"added"`
	Removed   int `json:"removed"`
}

// FileStats aggregates the hunks of one file.
type FileStats struct {
	Path    string      `json:"path"`
	Hunks   []HunkStats `json:"hunks"`
	Added   int         `json:"added"`
	Removed int         `json:"removed"`
}

// DiffStats parses a (multi-file) unified diff and counts its changes.
func DiffStats(unified string) ([]FileStats, error) {
	if strings.TrimSpace(unified) == "" {
		return nil, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	stats := make([]FileStats, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		path := fd.NewName
		if path == "" || path == "/dev/null" {
			path = fd.OrigName
		}
		path = strings.TrimPrefix(strings.TrimPrefix(path, "a/"), "b/")

		fs := FileStats{Path: path}
		for _, h := range fd.Hunks {
			st := h.Stat()
			hs := HunkStats{
				OrigStart: int(h.OrigStartLine),
				OrigLines: int(h.OrigLines),
				NewStart:  int(h.NewStartLine),
				NewLines:  int(h.NewLines),
				Added:     int(st.Added + st.Changed),
				Removed:   int(st.Deleted + st.Changed),
			}
			fs.Hunks = append(fs.Hunks, hs)
			fs.Added += hs.Added
			fs.Removed += hs.Removed
		}
		stats = append(stats, fs)
	}
	return stats, nil
}
