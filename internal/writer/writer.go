package writer

import (
	"fmt"
	"os"
	"strings"

	"github.com/oxhq/pymorph/core"
)

// Writer provides an abstraction for immediate (non-transactional) writes.
// It supports both dry-run mode (no actual writes) and disk mode.
type Writer interface {
	WriteFile(path string, content []byte, perm os.FileMode) error
	Summary() string
}

// FileChange represents a file that was, or would have been, rewritten.
type FileChange struct {
	Path         string
	OriginalSize int
	NewSize      int
	BytesDiff    int
}

// DryRunWriter tracks file changes without writing to disk.
type DryRunWriter struct {
	changes []FileChange
}

// NewDryRunWriter creates a new dry-run writer.
func NewDryRunWriter() *DryRunWriter {
	return &DryRunWriter{}
}

// WriteFile records the change and leaves the filesystem alone.
func (w *DryRunWriter) WriteFile(path string, content []byte, perm os.FileMode) error {
	var originalSize int
	if stat, err := os.Stat(path); err == nil {
		originalSize = int(stat.Size())
	}

	w.changes = append(w.changes, FileChange{
		Path:         path,
		OriginalSize: originalSize,
		NewSize:      len(content),
		BytesDiff:    len(content) - originalSize,
	})
	return nil
}

// Changes returns the recorded changes in call order.
func (w *DryRunWriter) Changes() []FileChange {
	return w.changes
}

// Summary returns a summary of changes that would be made.
func (w *DryRunWriter) Summary() string {
	if len(w.changes) == 0 {
		return "No changes would be made."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Would modify %d file(s):\n", len(w.changes))

	total := 0
	for _, change := range w.changes {
		total += change.BytesDiff
		fmt.Fprintf(&sb, "  %s (%s bytes)\n", change.Path, signed(change.BytesDiff))
	}
	fmt.Fprintf(&sb, "Total: %s bytes\n", signed(total))

	return sb.String()
}

func signed(n int) string {
	if n < 0 {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("+%d", n)
}

// DiskWriter writes files through an atomic temp-file-and-rename writer.
type DiskWriter struct {
	atomic  *core.AtomicWriter
	written []string
}

// NewDiskWriter creates a disk writer. A nil atomic writer uses the
// default configuration.
func NewDiskWriter(aw *core.AtomicWriter) *DiskWriter {
	if aw == nil {
		aw = core.NewAtomicWriter(core.DefaultAtomicConfig())
	}
	return &DiskWriter{atomic: aw}
}

// WriteFile atomically replaces path with content.
func (w *DiskWriter) WriteFile(path string, content []byte, perm os.FileMode) error {
	if err := w.atomic.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("%w: writing file %s: %v", core.ErrWrite, path, err)
	}

	w.written = append(w.written, path)
	return nil
}

// Written returns the paths written so far.
func (w *DiskWriter) Written() []string {
	return w.written
}

// Summary returns a summary of files that were written.
func (w *DiskWriter) Summary() string {
	if len(w.written) == 0 {
		return "No files were written."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Successfully wrote %d file(s):\n", len(w.written))
	for _, path := range w.written {
		sb.WriteString("  " + path + "\n")
	}
	return sb.String()
}
