package refactor

import (
	"fmt"
	"strings"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/resolve"
	"github.com/oxhq/pymorph/internal/transform"
	"github.com/oxhq/pymorph/providers/base"
)

// literal is the shared part of comment and string targets. Both follow
// their anchor and additionally require the source text to be unchanged,
// so a rewritten literal is a different one.
type literal struct {
	common
	at   anchor
	text string
}

func newLiteral(s *Session, kind Kind, m resolve.Match, what string) literal {
	return literal{
		common: common{
			s:     s,
			kind:  kind,
			path:  m.Path,
			label: fmt.Sprintf("%s at line %d in %s", what, m.StartLine, s.display(m.Path)),
		},
		at:   newAnchor(m),
		text: m.Text,
	}
}

func (l *literal) resolve() (*base.SourceTree, resolve.Match, error) {
	tree, m, err := l.s.locate(l.path, &l.at, l.label)
	if err != nil {
		return nil, m, err
	}
	if m.Text != l.text {
		return nil, m, notFound("%s has changed", l.label)
	}
	return tree, m, nil
}

func (l *literal) Exists() bool {
	_, _, err := l.resolve()
	return err == nil
}

// Content returns the literal source text.
func (l *literal) Content() string {
	if !l.Exists() {
		return ""
	}
	return l.text
}

// StartLine returns the line the literal starts on, or 0 when it is gone.
func (l *literal) StartLine() int {
	_, m, err := l.resolve()
	if err != nil {
		return 0
	}
	return m.StartLine
}

func (l *literal) mutate(op, phrase string, fn func(*base.SourceTree, resolve.Match) (*base.SourceTree, error)) core.Result {
	tree, m, err := l.resolve()
	if err != nil {
		return l.s.fail(op, l.label, err)
	}
	next, err := fn(tree, m)
	if err != nil {
		return l.s.fail(op, l.label, err)
	}
	return l.s.apply(op, l.label, phrase, tree, next)
}

// CommentTarget is a # comment.
type CommentTarget struct {
	literal
}

func newCommentTarget(s *Session, m resolve.Match) *CommentTarget {
	return &CommentTarget{literal: newLiteral(s, KindComment, m, "comment")}
}

// Text returns the comment without the leading # and surrounding space.
func (c *CommentTarget) Text() string {
	return strings.TrimSpace(strings.TrimPrefix(c.text, "#"))
}

func (c *CommentTarget) IsTODO() bool  { return c.hasTag("TODO") }
func (c *CommentTarget) IsFIXME() bool { return c.hasTag("FIXME") }

func (c *CommentTarget) hasTag(tag string) bool {
	text := c.Text()
	return strings.HasPrefix(text, tag) && (len(text) == len(tag) || !isWordByte(text[len(tag)]))
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// IsTypeIgnore reports a "type: ignore" directive.
func (c *CommentTarget) IsTypeIgnore() bool {
	return strings.Contains(c.text, "type: ignore")
}

// IsNoqa reports a "noqa" directive, in any case.
func (c *CommentTarget) IsNoqa() bool {
	return strings.Contains(strings.ToLower(c.text), "noqa")
}

// Rewrite replaces the comment text. A missing # is added.
func (c *CommentTarget) Rewrite(text string) core.Result {
	return c.mutate("rewrite", fmt.Sprintf("Rewrote %s", c.label), func(tree *base.SourceTree, m resolve.Match) (*base.SourceTree, error) {
		return transform.RewriteComment(tree, m.Node, text)
	})
}

// Delete removes the comment, and its line when the comment stood alone.
func (c *CommentTarget) Delete() core.Result {
	return c.mutate("delete", fmt.Sprintf("Deleted %s", c.label), func(tree *base.SourceTree, m resolve.Match) (*base.SourceTree, error) {
		return transform.DeleteComment(tree, m.Node)
	})
}

// StringTarget is a string literal.
type StringTarget struct {
	literal
	docstring bool
}

func newStringTarget(s *Session, m resolve.Match) *StringTarget {
	what := "string"
	if m.Docstring {
		what = "docstring"
	}
	return &StringTarget{literal: newLiteral(s, KindString, m, what), docstring: m.Docstring}
}

// Value returns the body between the quotes, escapes left as written.
func (st *StringTarget) Value() string {
	_, _, body := transform.StringParts(st.text)
	return body
}

func (st *StringTarget) prefix() string {
	p, _, _ := transform.StringParts(st.text)
	return strings.ToLower(p)
}

func (st *StringTarget) IsMultiline() bool {
	_, quote, _ := transform.StringParts(st.text)
	return len(quote) == 3
}

func (st *StringTarget) IsFString() bool   { return strings.Contains(st.prefix(), "f") }
func (st *StringTarget) IsRaw() bool       { return strings.Contains(st.prefix(), "r") }
func (st *StringTarget) IsDocstring() bool { return st.docstring }

// Rewrite replaces the string body, keeping prefix and quotes.
func (st *StringTarget) Rewrite(value string) core.Result {
	return st.mutate("rewrite", fmt.Sprintf("Rewrote %s", st.label), func(tree *base.SourceTree, m resolve.Match) (*base.SourceTree, error) {
		return transform.RewriteString(tree, m.Node, value)
	})
}

// Delete removes a string that is a statement of its own, such as a
// docstring.
func (st *StringTarget) Delete() core.Result {
	return st.mutate("delete", fmt.Sprintf("Deleted %s", st.label), func(tree *base.SourceTree, m resolve.Match) (*base.SourceTree, error) {
		return transform.DeleteString(tree, m.Node)
	})
}

// ImportTarget is an import statement.
type ImportTarget struct {
	common
	at   anchor
	info resolve.ImportInfo
}

func newImportTarget(s *Session, m resolve.Match) *ImportTarget {
	var info resolve.ImportInfo
	if m.Import != nil {
		info = *m.Import
	}
	return &ImportTarget{
		common: common{
			s:     s,
			kind:  KindImport,
			path:  m.Path,
			name:  info.Module,
			label: fmt.Sprintf("import '%s' at line %d in %s", info.Module, m.StartLine, s.display(m.Path)),
		},
		at:   newAnchor(m),
		info: info,
	}
}

// Module returns the imported module, dots included for relative imports.
func (i *ImportTarget) Module() string { return i.info.Module }

// Names returns the entries of a from-import.
func (i *ImportTarget) Names() []string { return i.info.Names }

func (i *ImportTarget) IsFrom() bool     { return i.info.From }
func (i *ImportTarget) IsRelative() bool { return i.info.Relative }

func (i *ImportTarget) Exists() bool {
	_, _, err := i.s.locate(i.path, &i.at, i.label)
	return err == nil
}

func (i *ImportTarget) Content() string {
	tree, m, err := i.s.locate(i.path, &i.at, i.label)
	if err != nil {
		return ""
	}
	return tree.Text(m.Node)
}

// Delete removes the whole statement.
func (i *ImportTarget) Delete() core.Result {
	const op = "delete"
	tree, m, err := i.s.locate(i.path, &i.at, i.label)
	if err != nil {
		return i.s.fail(op, i.label, err)
	}
	next, err := transform.DeleteImport(tree, m.Node)
	if err != nil {
		return i.s.fail(op, i.label, err)
	}
	return i.s.apply(op, i.label, fmt.Sprintf("Deleted %s", i.label), tree, next)
}
