package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// RenameDef renames the binding of a class or function definition. Call
// sites are not touched.
func RenameDef(tree *base.SourceTree, def *sitter.Node, newName string) (*base.SourceTree, error) {
	if err := checkIdentifier(newName); err != nil {
		return nil, err
	}
	name := def.ChildByFieldName("name")
	if name == nil {
		return nil, errorf("definition has no name")
	}
	if tree.Text(name) == newName {
		return tree, nil
	}
	return tree.ReplaceNode(name, newName)
}

// normalizeDecorator strips the leading @ and surrounding space.
func normalizeDecorator(decorator string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(decorator), "@"))
}

// AddDecorator puts decorator above all existing decorators of def. A
// decorator with the same callable already present makes this a no-op.
func AddDecorator(tree *base.SourceTree, def *sitter.Node, decorator string) (*base.SourceTree, error) {
	expr := normalizeDecorator(decorator)
	if expr == "" || strings.ContainsAny(expr, "\r\n") {
		return nil, errorf("invalid decorator %q", decorator)
	}

	want := python.DecoratorName(expr)
	for _, d := range python.Decorators(def) {
		if python.DecoratorName(tree.Text(d)) == want {
			return tree, nil
		}
	}

	outer := python.Outer(def)
	at := tree.LineStart(startLine(outer))
	line := tree.NodeIndentation(outer) + "@" + expr + tree.Newline()
	return tree.Replace(at, at, line)
}

// RemoveDecorator removes every decorator of def whose callable matches.
func RemoveDecorator(tree *base.SourceTree, def *sitter.Node, decorator string) (*base.SourceTree, error) {
	want := python.DecoratorName(normalizeDecorator(decorator))

	var edits []base.Edit
	for _, d := range python.Decorators(def) {
		if python.DecoratorName(tree.Text(d)) != want {
			continue
		}
		start, end := lineSpan(tree, d)
		edits = append(edits, base.Edit{Start: start, End: end})
	}
	if len(edits) == 0 {
		return nil, errorf("decorator '@%s' not found on %s", want, describe(tree, def))
	}
	return tree.ReplaceMany(edits)
}

// Position selects where in a body or list new content goes.
type Position string

const (
	Start Position = "start"
	End   Position = "end"
)

// InsertStatement adds statement to the body of def. At Start it goes after
// the docstring, if any.
func InsertStatement(tree *base.SourceTree, def *sitter.Node, statement string, pos Position) (*base.SourceTree, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, errorf("empty statement")
	}
	indent, err := bodyIndent(tree, def)
	if err != nil {
		return nil, err
	}

	body := bodyOf(def)
	at := bodyStart(tree, body)
	if pos == End {
		last := body.NamedChild(int(body.NamedChildCount()) - 1)
		at = tree.LineEnd(endLine(last))
	}
	return insertLines(tree, at, block(statement, indent, tree.Newline()))
}

// DeleteDef removes a definition with its decorators and the blank lines
// after it. A body left empty gets a pass statement.
func DeleteDef(tree *base.SourceTree, def *sitter.Node) (*base.SourceTree, error) {
	edit := deleteStatement(tree, python.Outer(def), true)
	return tree.ReplaceMany([]base.Edit{edit})
}

// ReplaceIdentifier replaces every reference to old inside the body of def
// with replacement, which may be any expression such as "cls.data".
// Attribute names and keyword argument names are left alone.
func ReplaceIdentifier(tree *base.SourceTree, def *sitter.Node, old, replacement string) (*base.SourceTree, int, error) {
	if err := checkIdentifier(old); err != nil {
		return nil, 0, err
	}
	replacement = strings.TrimSpace(replacement)
	if replacement == "" {
		return nil, 0, errorf("empty replacement for '%s'", old)
	}
	if replacement == old {
		return tree, 0, nil
	}

	refs := identifierRefs(tree, bodyOf(def), old)
	if len(refs) == 0 {
		return nil, 0, errorf("identifier '%s' not found in %s", old, describe(tree, def))
	}

	edits := make([]base.Edit, len(refs))
	for i, n := range refs {
		edits[i] = base.Edit{Start: n.StartByte(), End: n.EndByte(), Text: replacement}
	}
	next, err := tree.ReplaceMany(edits)
	if err != nil {
		return nil, 0, err
	}
	return next, len(refs), nil
}

// identifierRefs collects identifier nodes named name under n that refer
// to a variable.
func identifierRefs(tree *base.SourceTree, n *sitter.Node, name string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node.Type() == python.NodeIdentifier && tree.Text(node) == name && isReference(node) {
			out = append(out, node)
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			walk(node.Child(i))
		}
	}
	walk(n)
	return out
}

func isReference(id *sitter.Node) bool {
	parent := id.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "attribute":
		if attr := parent.ChildByFieldName("attribute"); attr != nil && attr.StartByte() == id.StartByte() {
			return false
		}
	case python.NodeKeywordArg:
		if kw := parent.ChildByFieldName("name"); kw != nil && kw.StartByte() == id.StartByte() {
			return false
		}
	}
	return true
}
