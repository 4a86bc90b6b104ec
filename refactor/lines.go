package refactor

import (
	"fmt"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/resolve"
	"github.com/oxhq/pymorph/internal/transform"
	"github.com/oxhq/pymorph/providers/base"
)

// lineRange is the shared part of line and line-block targets. Line
// targets are positional: they address line numbers, not content, and
// follow whatever is on those lines now.
type lineRange struct {
	common
	r transform.Range
}

func (l *lineRange) tree() (*base.SourceTree, error) {
	tree, err := l.s.Tree(l.path)
	if err != nil {
		return nil, err
	}
	if !tree.HasLine(l.r.End) {
		return nil, notFound("%s out of range (file has %d lines)", l.label, tree.LineCount())
	}
	return tree, nil
}

func (l *lineRange) Exists() bool {
	_, err := l.tree()
	return err == nil
}

// Content returns the lines, terminators included.
func (l *lineRange) Content() string {
	tree, err := l.tree()
	if err != nil {
		return ""
	}
	return l.r.Text(tree)
}

// StartLine and EndLine bound the range, 1-based and inclusive.
func (l *lineRange) StartLine() int { return l.r.Start }
func (l *lineRange) EndLine() int   { return l.r.End }

func (l *lineRange) mutate(op, phrase string, fn func(*base.SourceTree) (*base.SourceTree, error)) core.Result {
	tree, err := l.tree()
	if err != nil {
		return l.s.fail(op, l.label, err)
	}
	next, err := fn(tree)
	if err != nil {
		return l.s.fail(op, l.label, err)
	}
	return l.s.apply(op, l.label, phrase, tree, next)
}

// Rewrite replaces the lines with content, taken verbatim.
func (l *lineRange) Rewrite(content string) core.Result {
	return l.mutate("rewrite", fmt.Sprintf("Rewrote %s", l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.RewriteLines(tree, l.r, content)
	})
}

// InsertBefore adds content above the range at its indentation.
func (l *lineRange) InsertBefore(content string) core.Result {
	return l.mutate("insert_before", fmt.Sprintf("Inserted before %s", l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.InsertBefore(tree, l.r, content)
	})
}

// InsertAfter adds content below the range at its indentation.
func (l *lineRange) InsertAfter(content string) core.Result {
	return l.mutate("insert_after", fmt.Sprintf("Inserted after %s", l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.InsertAfter(tree, l.r, content)
	})
}

func (l *lineRange) Delete() core.Result {
	return l.mutate("delete", fmt.Sprintf("Deleted %s", l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.DeleteLines(tree, l.r)
	})
}

// Replace applies a regexp replacement to every matching line.
func (l *lineRange) Replace(pattern, replacement string) core.Result {
	const op = "replace"
	re, err := compile(pattern)
	if err != nil {
		return l.s.fail(op, l.label, err)
	}
	return l.mutate(op, fmt.Sprintf("Replaced /%s/ in %s", pattern, l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.ReplacePattern(tree, l.r, re, replacement)
	})
}

// LineTarget is a single line.
type LineTarget struct {
	lineRange
}

func newLineTarget(s *Session, path string, line int) *LineTarget {
	return &LineTarget{lineRange{
		common: common{
			s:     s,
			kind:  KindLine,
			path:  path,
			label: fmt.Sprintf("line %d in %s", line, s.display(path)),
		},
		r: transform.Line(line),
	}}
}

// Number returns the 1-based line number.
func (l *LineTarget) Number() int { return l.r.Start }

// Text returns the line without its terminator.
func (l *LineTarget) Text() string {
	tree, err := l.tree()
	if err != nil {
		return ""
	}
	return tree.LineText(l.r.Start)
}

// BlockAtLine returns the innermost block containing line n of the same
// file, or this line when n is zero.
func (l *LineTarget) BlockAtLine(n int) Target {
	if n <= 0 {
		n = l.r.Start
	}
	tree, err := l.s.Tree(l.path)
	if err != nil {
		return l.errorTarget(err)
	}
	m, ok := resolve.BlockAt(tree, n)
	if !ok {
		return newErrorTarget(l.path, fmt.Sprintf("no block contains line %d in %s", n, l.s.display(l.path)), core.ErrNotFound)
	}
	return newCodeBlockTarget(l.s, m)
}

func (l *LineTarget) directive(op, what string, d transform.Directive) core.Result {
	return l.mutate(op, fmt.Sprintf("Added %s to %s", what, l.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.AddDirective(tree, l.r.Start, d)
	})
}

func (l *LineTarget) AddTypeIgnore(code string) core.Result {
	return l.directive("add_type_ignore", "type: ignore", transform.TypeIgnore(code, ""))
}

func (l *LineTarget) AddNoqa(codes ...string) core.Result {
	return l.directive("add_noqa", "noqa", transform.Noqa(codes...))
}

func (l *LineTarget) AddNoCover() core.Result {
	return l.directive("add_no_cover", "pragma: no cover", transform.NoCover())
}

func (l *LineTarget) AddFmtSkip() core.Result {
	return l.directive("add_fmt_skip", "fmt: skip", transform.FmtSkip())
}

// LineBlockTarget is an inclusive range of lines.
type LineBlockTarget struct {
	lineRange
}

func newLineBlockTarget(s *Session, path string, start, end int) *LineBlockTarget {
	return &LineBlockTarget{lineRange{
		common: common{
			s:     s,
			kind:  KindLineBlock,
			path:  path,
			label: fmt.Sprintf("lines %d-%d in %s", start, end, s.display(path)),
		},
		r: transform.Range{Start: start, End: end},
	}}
}

func (b *LineBlockTarget) ToLineBlock() Target { return b }

func (b *LineBlockTarget) Indent(levels int) core.Result {
	return b.mutate("indent", fmt.Sprintf("Indented %s", b.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.IndentLines(tree, b.r, levels)
	})
}

func (b *LineBlockTarget) Dedent(levels int) core.Result {
	return b.mutate("dedent", fmt.Sprintf("Dedented %s", b.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.DedentLines(tree, b.r, levels)
	})
}

// MoveTo moves the lines so they start before line; one past the last
// line appends them.
func (b *LineBlockTarget) MoveTo(line int) core.Result {
	return b.mutate("move_to", fmt.Sprintf("Moved %s to line %d", b.label, line), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.MoveLines(tree, b.r, line)
	})
}

// CodeBlockTarget is a compound statement: a class, def, if, for, while,
// try, with or match. Line operations are delegated to the lines it spans
// at call time.
type CodeBlockTarget struct {
	common
	at        anchor
	blockKind string
}

func newCodeBlockTarget(s *Session, m resolve.Match) *CodeBlockTarget {
	label := fmt.Sprintf("%s block at line %d in %s", m.BlockKind, m.StartLine, s.display(m.Path))
	if m.Ref.Name != "" {
		label = fmt.Sprintf("%s block '%s' in %s", m.BlockKind, m.Ref.Name, s.display(m.Path))
	}
	return &CodeBlockTarget{
		common:    common{s: s, kind: KindCodeBlock, path: m.Path, name: m.Ref.Name, label: label},
		at:        newAnchor(m),
		blockKind: m.BlockKind,
	}
}

// BlockKind returns the statement kind, such as "if" or "function".
func (c *CodeBlockTarget) BlockKind() string { return c.blockKind }

func (c *CodeBlockTarget) resolve() (resolve.Match, error) {
	_, m, err := c.s.locate(c.path, &c.at, c.label)
	return m, err
}

func (c *CodeBlockTarget) Exists() bool {
	_, err := c.resolve()
	return err == nil
}

func (c *CodeBlockTarget) lines() (*LineBlockTarget, error) {
	m, err := c.resolve()
	if err != nil {
		return nil, err
	}
	return newLineBlockTarget(c.s, c.path, m.StartLine, m.EndLine), nil
}

func (c *CodeBlockTarget) ToLineBlock() Target {
	b, err := c.lines()
	if err != nil {
		return c.errorTarget(err)
	}
	return b
}

func (c *CodeBlockTarget) Content() string {
	b, err := c.lines()
	if err != nil {
		return ""
	}
	return b.Content()
}

func (c *CodeBlockTarget) delegate(op string, fn func(*LineBlockTarget) core.Result) core.Result {
	b, err := c.lines()
	if err != nil {
		return c.s.fail(op, c.label, err)
	}
	return fn(b)
}

// follow re-anchors the target on the block of the same kind that now
// starts at line, after an edit of its own replaced the old header.
func (c *CodeBlockTarget) follow(line int) {
	tree, err := c.s.Tree(c.path)
	if err != nil {
		return
	}
	if m, ok := resolve.BlockAt(tree, line); ok && m.StartLine == line && m.BlockKind == c.blockKind {
		c.at.moveTo(m)
	}
}

// Rewrite replaces the lines of the block. The target stays on the block
// that starts where the old one did.
func (c *CodeBlockTarget) Rewrite(content string) core.Result {
	var start int
	r := c.delegate("rewrite", func(b *LineBlockTarget) core.Result {
		start = b.StartLine()
		return b.Rewrite(content)
	})
	if r.Success {
		c.follow(start)
	}
	return r
}

func (c *CodeBlockTarget) InsertBefore(content string) core.Result {
	return c.delegate("insert_before", func(b *LineBlockTarget) core.Result { return b.InsertBefore(content) })
}

func (c *CodeBlockTarget) InsertAfter(content string) core.Result {
	return c.delegate("insert_after", func(b *LineBlockTarget) core.Result { return b.InsertAfter(content) })
}

func (c *CodeBlockTarget) Delete() core.Result {
	return c.delegate("delete", func(b *LineBlockTarget) core.Result { return b.Delete() })
}

func (c *CodeBlockTarget) Replace(pattern, replacement string) core.Result {
	return c.delegate("replace", func(b *LineBlockTarget) core.Result { return b.Replace(pattern, replacement) })
}

func (c *CodeBlockTarget) Indent(levels int) core.Result {
	return c.delegate("indent", func(b *LineBlockTarget) core.Result { return b.Indent(levels) })
}

func (c *CodeBlockTarget) Dedent(levels int) core.Result {
	return c.delegate("dedent", func(b *LineBlockTarget) core.Result { return b.Dedent(levels) })
}

func (c *CodeBlockTarget) MoveTo(line int) core.Result {
	return c.delegate("move_to", func(b *LineBlockTarget) core.Result { return b.MoveTo(line) })
}
