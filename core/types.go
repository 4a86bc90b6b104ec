package core

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Result is the outcome of a single target operation.
//
// A Result with Success == false is an error result: it carries the
// operation name, a description of the target and, optionally, the cause.
// Failed is the only constructor that produces one.
type Result struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	FilesChanged []string          `json:"files_changed,omitempty"`
	Data         any               `json:"data,omitempty"`
	Diff         string            `json:"diff,omitempty"`
	Diffs        map[string]string `json:"diffs,omitempty"`

	Operation string                `json:"operation,omitempty"`
	Target    string                `json:"target,omitempty"`
	Cause     error                 `json:"-"`
	Changes   map[string]FileChange `json:"-"`
}

// FileChange is one file before and after an operation.
type FileChange struct {
	Name    string // display name for diff headers
	Before  []byte
	After   []byte
	Existed bool
	Context int
}

// Diff renders the change as a unified diff.
func (c FileChange) Diff() string {
	if !c.Existed {
		return CreationDiff(c.Name, c.After, c.Context)
	}
	return UnifiedDiff(c.Name, c.Before, c.After, c.Context)
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Success }

// IsError reports whether r is an error result.
func (r Result) IsError() bool { return !r.Success }

// Err returns nil for successful results and a *ResultError otherwise.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &ResultError{Operation: r.Operation, Target: r.Target, Message: r.Message, Cause: r.Cause}
}

func (r Result) String() string {
	status := "ok"
	if !r.Success {
		status = "error"
	}
	return fmt.Sprintf("[%s] %s", status, r.Message)
}

// Succeed builds a successful result. Paths are deduplicated and sorted.
func Succeed(msg string, files ...string) Result {
	return Result{Success: true, Message: msg, FilesChanged: normalizePaths(files)}
}

// Failed builds an error result.
func Failed(operation, target, msg string, cause error) Result {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return Result{
		Success:   false,
		Message:   msg,
		Operation: operation,
		Target:    target,
		Cause:     cause,
	}
}

// WithData returns a copy of r carrying data.
func (r Result) WithData(data any) Result {
	r.Data = data
	return r
}

// WithDiff returns a copy of r carrying the diff for path.
func (r Result) WithDiff(path, diff string) Result {
	if diff == "" {
		return r
	}
	r.Diff = diff
	r.Diffs = map[string]string{path: diff}
	return r
}

// WithChange returns a copy of r carrying change and its diff for path.
func (r Result) WithChange(path string, change FileChange) Result {
	r = r.WithDiff(path, change.Diff())
	if r.Diffs != nil {
		r.Changes = map[string]FileChange{path: change}
	}
	return r
}

// ResultError adapts a failed Result to the error interface.
type ResultError struct {
	Operation string
	Target    string
	Message   string
	Cause     error
}

func (e *ResultError) Error() string {
	if e.Operation != "" {
		return e.Operation + ": " + e.Message
	}
	return e.Message
}

func (e *ResultError) Unwrap() error { return e.Cause }

// BatchResult folds the results of a batch operation.
type BatchResult struct {
	Results []Result `json:"results"`
}

// Add appends a result.
func (b *BatchResult) Add(r Result) {
	b.Results = append(b.Results, r)
}

// Len returns the number of folded results.
func (b BatchResult) Len() int { return len(b.Results) }

// Success reports whether every result succeeded. An empty batch succeeds.
func (b BatchResult) Success() bool {
	for _, r := range b.Results {
		if !r.Success {
			return false
		}
	}
	return true
}

// PartialSuccess reports whether at least one result succeeded.
func (b BatchResult) PartialSuccess() bool {
	for _, r := range b.Results {
		if r.Success {
			return true
		}
	}
	return false
}

// AllFailed reports whether no result succeeded.
func (b BatchResult) AllFailed() bool {
	return !b.PartialSuccess()
}

// OK is the truthiness of the batch and matches Success.
func (b BatchResult) OK() bool { return b.Success() }

func (b BatchResult) Succeeded() []Result {
	return b.filter(true)
}

func (b BatchResult) Failed() []Result {
	return b.filter(false)
}

func (b BatchResult) filter(success bool) []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Success == success {
			out = append(out, r)
		}
	}
	return out
}

// FilesChanged is the sorted union of files changed by successful results.
func (b BatchResult) FilesChanged() []string {
	var all []string
	for _, r := range b.Results {
		if r.Success {
			all = append(all, r.FilesChanged...)
		}
	}
	return normalizePaths(all)
}

// Diffs merges per-file diffs of successful results. Successive changes
// to one file are diffed once, from the first original to the last
// content; diffs without change data are concatenated in order.
func (b BatchResult) Diffs() map[string]string {
	out := make(map[string]string)
	chains := make(map[string][]FileChange)
	for _, r := range b.Results {
		if !r.Success {
			continue
		}
		for path, d := range r.Diffs {
			if c, ok := r.Changes[path]; ok {
				chains[path] = append(chains[path], c)
				continue
			}
			out[path] += d
		}
	}
	for path, chain := range chains {
		out[path] = composeDiff(chain)
	}
	return out
}

// composeDiff diffs a chain of changes to one file as a whole. Changes
// that do not build on each other, such as independent dry-run previews,
// keep their own diffs.
func composeDiff(chain []FileChange) string {
	for i := 1; i < len(chain); i++ {
		if !bytes.Equal(chain[i-1].After, chain[i].Before) {
			var sb strings.Builder
			for _, c := range chain {
				sb.WriteString(c.Diff())
			}
			return sb.String()
		}
	}
	whole := chain[0]
	last := chain[len(chain)-1]
	whole.After, whole.Context = last.After, last.Context
	return whole.Diff()
}

// Diff concatenates the per-file diffs in path order.
func (b BatchResult) Diff() string {
	diffs := b.Diffs()
	paths := make([]string, 0, len(diffs))
	for p := range diffs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString(diffs[p])
	}
	return sb.String()
}

// Summary renders "N of M succeeded" followed by each failure reason.
func (b BatchResult) Summary() string {
	failed := b.Failed()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d succeeded", len(b.Results)-len(failed), len(b.Results))
	for _, r := range failed {
		sb.WriteString("\n  - ")
		if r.Target != "" {
			sb.WriteString(r.Target + ": ")
		}
		sb.WriteString(r.Message)
	}
	return sb.String()
}

func normalizePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := slices.Clone(paths)
	sort.Strings(out)
	return slices.Compact(out)
}

// FileScope defines which files a session discovers.
type FileScope struct {
	Path           string   `json:"path"`                     // Root directory, file, or glob
	Include        []string `json:"include,omitempty"`        // doublestar patterns to include
	Exclude        []string `json:"exclude,omitempty"`        // doublestar patterns to exclude
	MaxDepth       int      `json:"max_depth,omitempty"`      // 0 = unlimited
	MaxFiles       int      `json:"max_files,omitempty"`      // 0 = unlimited
	MaxFileBytes   int64    `json:"max_file_bytes,omitempty"` // 0 = unlimited
	FollowSymlinks bool     `json:"follow_symlinks"`
	UseGitignore   bool     `json:"use_gitignore"`
}
