// Package transform holds the tree-rewrite functions behind every target
// operation. Each one takes a tree plus an edit intent and returns a new
// tree built through base.SourceTree.Replace/ReplaceMany, so bytes outside
// the touched span are carried over unchanged. Returning the input tree
// means the call was a no-op.
package transform

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// Error is an edit that is structurally invalid for the node it targets.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return core.ErrTransform
}

func errorf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

func invalidIdentifier(name string) error {
	return &Error{Reason: fmt.Sprintf("'%s' is not a valid identifier", name), Err: core.ErrInvalidIdentifier}
}

func checkIdentifier(name string) error {
	if !python.IsIdentifier(name) {
		return invalidIdentifier(name)
	}
	return nil
}

// startLine and endLine are 1-based. A node ending at column 0 ends on
// the previous line.
func startLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func endLine(n *sitter.Node) int {
	row := int(n.EndPoint().Row)
	if n.EndPoint().Column == 0 && n.EndPoint().Row > n.StartPoint().Row {
		row--
	}
	return row + 1
}

// lineSpan covers the full lines n occupies, terminators included.
func lineSpan(tree *base.SourceTree, n *sitter.Node) (uint32, uint32) {
	return tree.LineStart(startLine(n)), tree.LineEnd(endLine(n))
}

// IndentUnit returns the indentation step used by the file.
func IndentUnit(tree *base.SourceTree) string {
	for _, line := range tree.Lines() {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == '\t' {
			return "\t"
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if n > 0 && n <= 8 {
			return strings.Repeat(" ", n)
		}
	}
	return python.DefaultIndent
}

// Dedent removes the whitespace prefix common to every non-blank line and
// trims surrounding blank lines.
func Dedent(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(strings.Trim(text, "\n"), "\n")

	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = ws, false
			continue
		}
		for !strings.HasPrefix(ws, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \t")
}

// block renders text as full lines at indent, each ending in nl.
func block(text, indent, nl string) string {
	var sb strings.Builder
	for _, l := range strings.Split(Dedent(text), "\n") {
		if l != "" {
			sb.WriteString(indent)
			sb.WriteString(l)
		}
		sb.WriteString(nl)
	}
	return sb.String()
}

// insertLines inserts rendered lines at a line boundary. At the end of a
// file without a final newline one is added first.
func insertLines(tree *base.SourceTree, at uint32, lines string) (*base.SourceTree, error) {
	if at == tree.Len() && at > 0 && tree.Source()[at-1] != '\n' {
		lines = tree.Newline() + lines
	}
	return tree.Replace(at, at, lines)
}

// statements returns the named children of a block or module, comments
// excluded.
func statements(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != python.NodeComment {
			out = append(out, child)
		}
	}
	return out
}

func bodyOf(def *sitter.Node) *sitter.Node {
	return def.ChildByFieldName("body")
}

func nameOf(tree *base.SourceTree, def *sitter.Node) string {
	return tree.Text(def.ChildByFieldName("name"))
}

func describe(tree *base.SourceTree, def *sitter.Node) string {
	kind := "function"
	if def.Type() == python.NodeClass {
		kind = "class"
	}
	return kind + " '" + nameOf(tree, def) + "'"
}

// bodyIndent returns the indentation of a definition body. Bodies written
// on the header line cannot take new statements.
func bodyIndent(tree *base.SourceTree, def *sitter.Node) (string, error) {
	body := bodyOf(def)
	if body == nil || body.NamedChildCount() == 0 {
		return "", errorf("%s has no body", describe(tree, def))
	}
	first := body.NamedChild(0)
	indent := tree.NodeIndentation(first)
	if uint32(len(indent)) != first.StartPoint().Column {
		return "", errorf("body of %s shares a line with its header", describe(tree, def))
	}
	return indent, nil
}

// bodyStart is where a statement inserted at the top of a body goes: after
// a leading docstring, otherwise before the first statement.
func bodyStart(tree *base.SourceTree, body *sitter.Node) uint32 {
	stmts := statements(body)
	if len(stmts) == 0 {
		return tree.LineStart(startLine(body))
	}
	if python.IsDocstring(stmts[0]) {
		return tree.LineEnd(endLine(stmts[0]))
	}
	return tree.LineStart(startLine(stmts[0]))
}

// deleteStatement removes the lines of stmt. When stmt is the only
// statement of a block, it is replaced by pass.
func deleteStatement(tree *base.SourceTree, stmt *sitter.Node, trailingBlank bool) base.Edit {
	start, end := lineSpan(tree, stmt)
	if trailingBlank {
		line := endLine(stmt) + 1
		for tree.HasLine(line) && strings.TrimSpace(tree.LineText(line)) == "" {
			end = tree.LineEnd(line)
			line++
		}
	}

	edit := base.Edit{Start: start, End: end}
	if parent := stmt.Parent(); parent != nil && parent.Type() == python.NodeBlock && len(statements(parent)) == 1 {
		edit.Text = tree.NodeIndentation(stmt) + "pass" + tree.Newline()
	}
	return edit
}

// removeItem deletes one element of a comma separated list together with
// one adjacent separator.
func removeItem(items []*sitter.Node, i int) base.Edit {
	item := items[i]
	switch {
	case i+1 < len(items):
		return base.Edit{Start: item.StartByte(), End: items[i+1].StartByte()}
	case i > 0:
		return base.Edit{Start: items[i-1].EndByte(), End: item.EndByte()}
	default:
		return base.Edit{Start: item.StartByte(), End: item.EndByte()}
	}
}

// parseSnippet parses source on its own and returns the snippet tree and
// its statements.
func parseSnippet(tree *base.SourceTree, source string) (*base.SourceTree, []*sitter.Node, error) {
	text := Dedent(source)
	if strings.TrimSpace(text) == "" {
		return nil, nil, errorf("empty source")
	}
	snippet, err := tree.Reparse([]byte(text + "\n"))
	if err != nil {
		return nil, nil, &Error{Reason: fmt.Sprintf("invalid source: %v", err), Err: core.ErrInvalidEdit}
	}
	return snippet, statements(snippet.Root()), nil
}
