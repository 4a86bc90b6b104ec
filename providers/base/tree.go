package base

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/core"
)

// SourceTree is the parsed, format-preserving form of one file's content.
//
// Render returns exactly the bytes the tree was parsed from. A SourceTree
// is never modified; edits produce a new tree that replaces it wholesale.
type SourceTree struct {
	path     string
	src      []byte
	tree     *sitter.Tree
	provider *Provider

	hist *history
	gen  int

	lineStarts []uint32 // lazily computed
}

// history records the edits that turned each generation of a file's tree
// into the next. Trees derived through ReplaceMany share it.
type history struct {
	mu    sync.Mutex
	steps [][]Edit
}

func (h *history) extend(gen int, edits []Edit) (*history, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.steps) == gen {
		h.steps = append(h.steps, edits)
		return h, gen + 1
	}
	// An older generation is edited again. The branch starts a history of
	// its own, so marks taken before it no longer map.
	steps := append(slices.Clone(h.steps[:gen]), edits)
	return &history{steps: steps}, gen + 1
}

func (h *history) since(from, to int) [][]Edit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.steps[from:to]
}

// Mark is a byte offset in one generation of a file's tree.
type Mark struct {
	hist *history
	gen  int
	pos  uint32
}

// Tracking is the outcome of mapping a Mark into another tree.
type Tracking int

const (
	Untracked   Tracking = iota // the tree does not derive from the marked one
	Tracked                     // the offset moved with the edits
	Overwritten                 // an edit replaced the marked byte
)

// Path returns the file path the tree was parsed for.
func (t *SourceTree) Path() string { return t.path }

// Root returns the root node.
func (t *SourceTree) Root() *sitter.Node { return t.tree.RootNode() }

// Source exposes the underlying bytes. Callers must not modify them.
func (t *SourceTree) Source() []byte { return t.src }

// Render returns a copy of the source text.
func (t *SourceTree) Render() []byte { return bytes.Clone(t.src) }

// Len returns the source length in bytes.
func (t *SourceTree) Len() uint32 { return uint32(len(t.src)) }

// Text returns the source text of n.
func (t *SourceTree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.src)
}

// Slice returns the source text between two offsets.
func (t *SourceTree) Slice(start, end uint32) string {
	return string(t.src[start:end])
}

func (t *SourceTree) starts() []uint32 {
	if t.lineStarts != nil || len(t.src) == 0 {
		return t.lineStarts
	}
	starts := []uint32{0}
	for i, b := range t.src {
		if b == '\n' && i+1 < len(t.src) {
			starts = append(starts, uint32(i+1))
		}
	}
	t.lineStarts = starts
	return starts
}

// LineCount returns the number of lines. A trailing newline does not start
// a new line.
func (t *SourceTree) LineCount() int { return len(t.starts()) }

// HasLine reports whether line (1-based) exists.
func (t *SourceTree) HasLine(line int) bool {
	return line >= 1 && line <= t.LineCount()
}

// LineStart returns the offset of the first byte of line (1-based). The
// line after the last one starts at Len.
func (t *SourceTree) LineStart(line int) uint32 {
	starts := t.starts()
	if line <= 1 {
		return 0
	}
	if line > len(starts) {
		return t.Len()
	}
	return starts[line-1]
}

// LineEnd returns the offset just past line's newline, which is where the
// next line starts.
func (t *SourceTree) LineEnd(line int) uint32 {
	return t.LineStart(line + 1)
}

// LineText returns the text of line without its line terminator.
func (t *SourceTree) LineText(line int) string {
	if !t.HasLine(line) {
		return ""
	}
	s := t.Slice(t.LineStart(line), t.LineEnd(line))
	return strings.TrimRight(s, "\r\n")
}

// Lines returns every line without terminators.
func (t *SourceTree) Lines() []string {
	out := make([]string, t.LineCount())
	for i := range out {
		out[i] = t.LineText(i + 1)
	}
	return out
}

// LineOf returns the 1-based line containing offset.
func (t *SourceTree) LineOf(offset uint32) int {
	starts := t.starts()
	i, found := slices.BinarySearch(starts, offset)
	if found {
		return i + 1
	}
	return max(i, 1)
}

// Indentation returns the leading whitespace of line.
func (t *SourceTree) Indentation(line int) string {
	text := t.LineText(line)
	return text[:len(text)-len(strings.TrimLeft(text, " \t"))]
}

// NodeIndentation returns the leading whitespace of the line n starts on.
func (t *SourceTree) NodeIndentation(n *sitter.Node) string {
	return t.Indentation(int(n.StartPoint().Row) + 1)
}

// Newline returns the line terminator used by the file.
func (t *SourceTree) Newline() string {
	if bytes.Contains(t.src, []byte("\r\n")) {
		return "\r\n"
	}
	return "\n"
}

// Mark records offset pos of t.
func (t *SourceTree) Mark(pos uint32) Mark {
	return Mark{hist: t.hist, gen: t.gen, pos: pos}
}

// Track maps m through the edits made between the marked tree and t. An
// insertion exactly at the offset pushes it forward.
func (t *SourceTree) Track(m Mark) (uint32, Tracking) {
	if m.hist == nil || m.hist != t.hist || m.gen > t.gen {
		return 0, Untracked
	}
	pos := m.pos
	for _, edits := range t.hist.since(m.gen, t.gen) {
		var ok bool
		if pos, ok = shift(pos, edits); !ok {
			return 0, Overwritten
		}
	}
	return pos, Tracked
}

// shift maps pos through one step of sorted, non-overlapping edits.
func shift(pos uint32, edits []Edit) (uint32, bool) {
	delta := int64(0)
	for _, e := range edits {
		if pos < e.Start {
			break
		}
		if pos < e.End {
			return 0, false
		}
		delta += int64(len(e.Text)) - int64(e.End-e.Start)
	}
	return uint32(int64(pos) + delta), true
}

// Edit replaces the bytes in [Start, End) with Text.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
}

// Replace is the generic node-replacement primitive: it splices text over
// [start, end) and re-parses. Untouched bytes are carried over verbatim.
func (t *SourceTree) Replace(start, end uint32, text string) (*SourceTree, error) {
	return t.ReplaceMany([]Edit{{Start: start, End: end, Text: text}})
}

// ReplaceNode replaces the full span of n.
func (t *SourceTree) ReplaceNode(n *sitter.Node, text string) (*SourceTree, error) {
	return t.Replace(n.StartByte(), n.EndByte(), text)
}

// ReplaceMany applies non-overlapping edits in one step. When the result
// equals the current source the receiver is returned unchanged. An edit
// that produces unparsable source fails with core.ErrInvalidEdit and no
// new tree.
func (t *SourceTree) ReplaceMany(edits []Edit) (*SourceTree, error) {
	if len(edits) == 0 {
		return t, nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b Edit) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})

	for i, e := range sorted {
		if e.Start > e.End || e.End > t.Len() {
			return nil, fmt.Errorf("%w: edit [%d,%d) outside source of %d bytes", core.ErrInvalidEdit, e.Start, e.End, t.Len())
		}
		if i > 0 && sorted[i-1].End > e.Start {
			return nil, fmt.Errorf("%w: [%d,%d) and [%d,%d)", core.ErrOverlappingEdits,
				sorted[i-1].Start, sorted[i-1].End, e.Start, e.End)
		}
	}

	var buf bytes.Buffer
	buf.Grow(len(t.src))
	cursor := uint32(0)
	for _, e := range sorted {
		buf.Write(t.src[cursor:e.Start])
		buf.WriteString(e.Text)
		cursor = e.End
	}
	buf.Write(t.src[cursor:])

	out := buf.Bytes()
	if bytes.Equal(out, t.src) {
		return t, nil
	}

	next, err := t.provider.Parse(t.path, out)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidEdit, pe)
		}
		return nil, err
	}
	next.hist, next.gen = t.hist.extend(t.gen, sorted)
	return next, nil
}

// Reparse parses new content for the same path.
func (t *SourceTree) Reparse(content []byte) (*SourceTree, error) {
	return t.provider.Parse(t.path, content)
}
