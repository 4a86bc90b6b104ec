package transform

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// Range is an inclusive, 1-based line range.
type Range struct {
	Start int
	End   int
}

// Line returns the single-line range n.
func Line(n int) Range { return Range{Start: n, End: n} }

func (r Range) check(tree *base.SourceTree) error {
	if r.Start < 1 || r.End < r.Start || !tree.HasLine(r.End) {
		if r.Start == r.End {
			return errorf("line %d out of range (file has %d lines)", r.Start, tree.LineCount())
		}
		return errorf("lines %d-%d out of range (file has %d lines)", r.Start, r.End, tree.LineCount())
	}
	return nil
}

// Text returns the lines of r, terminators included.
func (r Range) Text(tree *base.SourceTree) string {
	return tree.Slice(tree.LineStart(r.Start), tree.LineEnd(r.End))
}

// RewriteLines replaces the lines of r with content, taken verbatim.
func RewriteLines(tree *base.SourceTree, r Range, content string) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	nl := tree.Newline()
	text := strings.TrimRight(content, "\r\n")
	end := tree.LineEnd(r.End)
	if end > 0 && tree.Source()[end-1] == '\n' {
		text += nl
	}
	return tree.Replace(tree.LineStart(r.Start), end, text)
}

// InsertBefore inserts content above r at the indentation of its first line.
func InsertBefore(tree *base.SourceTree, r Range, content string) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	return insertLines(tree, tree.LineStart(r.Start), block(content, tree.Indentation(r.Start), tree.Newline()))
}

// InsertAfter inserts content below r at the indentation of its first line.
func InsertAfter(tree *base.SourceTree, r Range, content string) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	return insertLines(tree, tree.LineEnd(r.End), block(content, tree.Indentation(r.Start), tree.Newline()))
}

// DeleteLines removes the lines of r.
func DeleteLines(tree *base.SourceTree, r Range) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	return tree.Replace(tree.LineStart(r.Start), tree.LineEnd(r.End), "")
}

// ReplacePattern applies a regexp replacement within r. The pattern must
// match at least once.
func ReplacePattern(tree *base.SourceTree, r Range, re *regexp.Regexp, repl string) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	var edits []base.Edit
	for line := r.Start; line <= r.End; line++ {
		text := tree.LineText(line)
		if !re.MatchString(text) {
			continue
		}
		start := tree.LineStart(line)
		edits = append(edits, base.Edit{Start: start, End: start + uint32(len(text)), Text: re.ReplaceAllString(text, repl)})
	}
	if len(edits) == 0 {
		return nil, errorf("pattern %q not found in lines %d-%d", re.String(), r.Start, r.End)
	}
	return tree.ReplaceMany(edits)
}

// IndentLines shifts every non-blank line of r right by levels indentation steps.
func IndentLines(tree *base.SourceTree, r Range, levels int) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	if levels < 1 {
		return nil, errorf("indent levels must be positive, got %d", levels)
	}
	prefix := strings.Repeat(IndentUnit(tree), levels)

	var edits []base.Edit
	for line := r.Start; line <= r.End; line++ {
		if strings.TrimSpace(tree.LineText(line)) == "" {
			continue
		}
		at := tree.LineStart(line)
		edits = append(edits, base.Edit{Start: at, End: at, Text: prefix})
	}
	return tree.ReplaceMany(edits)
}

// DedentLines shifts every line of r left by up to levels indentation steps.
func DedentLines(tree *base.SourceTree, r Range, levels int) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	if levels < 1 {
		return nil, errorf("dedent levels must be positive, got %d", levels)
	}
	unit := IndentUnit(tree)

	var edits []base.Edit
	for line := r.Start; line <= r.End; line++ {
		indent := tree.Indentation(line)
		strip := 0
		for l := 0; l < levels && strings.HasPrefix(indent[strip:], unit); l++ {
			strip += len(unit)
		}
		if strip == 0 {
			continue
		}
		at := tree.LineStart(line)
		edits = append(edits, base.Edit{Start: at, End: at + uint32(strip)})
	}
	return tree.ReplaceMany(edits)
}

// MoveLines moves the lines of r so they start before line to. A to just
// past the last line appends them at the end of the file.
func MoveLines(tree *base.SourceTree, r Range, to int) (*base.SourceTree, error) {
	if err := r.check(tree); err != nil {
		return nil, err
	}
	if to < 1 || to > tree.LineCount()+1 {
		return nil, errorf("destination line %d out of range", to)
	}
	if to >= r.Start && to <= r.End+1 {
		return tree, nil
	}

	text := r.Text(tree)
	if !strings.HasSuffix(text, "\n") {
		text += tree.Newline()
	}
	at := tree.LineStart(to)
	insert := text
	if at == tree.Len() && at > 0 && tree.Source()[at-1] != '\n' {
		insert = tree.Newline() + strings.TrimRight(text, "\r\n")
	}
	return tree.ReplaceMany([]base.Edit{
		{Start: tree.LineStart(r.Start), End: tree.LineEnd(r.End)},
		{Start: at, End: at, Text: insert},
	})
}

// Directive is a comment understood by type checkers, linters or
// formatters.
type Directive struct {
	marker   string
	comment  string
	foldCase bool
}

// TypeIgnore returns the "# type: ignore[code]" directive.
func TypeIgnore(code, reason string) Directive {
	comment := "# type: ignore"
	if code != "" {
		comment += "[" + code + "]"
	}
	if reason != "" {
		comment += "  # " + reason
	}
	return Directive{marker: "# type: ignore", comment: comment}
}

// Noqa returns the "# noqa: CODES" directive.
func Noqa(codes ...string) Directive {
	comment := "# noqa"
	if len(codes) > 0 {
		comment += ": " + strings.Join(codes, ", ")
	}
	return Directive{marker: "# noqa", comment: comment, foldCase: true}
}

// NoCover returns the "# pragma: no cover" directive.
func NoCover() Directive {
	return Directive{marker: "# pragma: no cover", comment: "# pragma: no cover"}
}

// FmtSkip returns the "# fmt: skip" directive.
func FmtSkip() Directive {
	return Directive{marker: "# fmt: skip", comment: "# fmt: skip"}
}

func (d Directive) in(comment string) bool {
	if d.foldCase {
		return strings.Contains(strings.ToLower(comment), strings.ToLower(d.marker))
	}
	return strings.Contains(comment, d.marker)
}

// AddDirective appends d to line unless the trailing comment already
// carries it. An existing trailing comment is kept after the directive.
// Only real comments count: a "#" inside a string is code.
func AddDirective(tree *base.SourceTree, line int, d Directive) (*base.SourceTree, error) {
	if err := Line(line).check(tree); err != nil {
		return nil, err
	}
	start := tree.LineStart(line)
	text := tree.LineText(line)
	end := start + uint32(len(strings.TrimRight(text, " \t")))

	comment := trailingComment(tree, start, end)
	if comment == nil {
		return tree.Replace(end, start+uint32(len(text)), "  "+d.comment)
	}
	existing := tree.Text(comment)
	if d.in(existing) {
		return tree, nil
	}

	// Go before the last chained comment, or before the whole comment when
	// it follows code.
	var at uint32
	code := strings.TrimRight(tree.Slice(start, comment.StartByte()), " \t")
	switch j := strings.LastIndex(existing, "  #"); {
	case j >= 0:
		at = comment.StartByte() + uint32(j)
	case strings.TrimSpace(code) == "":
		return tree.Replace(end, start+uint32(len(text)), "  "+d.comment)
	default:
		at = start + uint32(len(code))
	}
	return tree.Replace(at, at, "  "+d.comment)
}

// trailingComment returns the comment starting in [start, end), which can
// only be the last thing on its line.
func trailingComment(tree *base.SourceTree, start, end uint32) *sitter.Node {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil || n.EndByte() <= start || n.StartByte() >= end {
			return
		}
		if n.Type() == python.NodeComment && n.StartByte() >= start {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.Root())
	return found
}
