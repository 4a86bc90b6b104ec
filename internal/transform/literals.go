package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// RewriteComment replaces the text of a comment. A missing leading # is
// added.
func RewriteComment(tree *base.SourceTree, comment *sitter.Node, text string) (*base.SourceTree, error) {
	text = strings.TrimSpace(text)
	if strings.ContainsAny(text, "\r\n") {
		return nil, errorf("comment text must be a single line")
	}
	if !strings.HasPrefix(text, "#") {
		text = "# " + text
	}
	return tree.ReplaceNode(comment, text)
}

// DeleteComment removes a comment. A comment alone on its line takes the
// line with it; a trailing comment takes the whitespace before it.
func DeleteComment(tree *base.SourceTree, comment *sitter.Node) (*base.SourceTree, error) {
	line := startLine(comment)
	start := tree.LineStart(line)
	before := tree.Slice(start, comment.StartByte())
	if strings.TrimSpace(before) == "" {
		return tree.Replace(start, tree.LineEnd(line), "")
	}
	trimmed := strings.TrimRight(before, " \t")
	return tree.Replace(start+uint32(len(trimmed)), comment.EndByte(), "")
}

// StringParts splits a string literal into prefix, quote and body.
func StringParts(literal string) (prefix, quote, body string) {
	i := strings.IndexAny(literal, `'"`)
	if i < 0 {
		return "", "", literal
	}
	prefix, rest := literal[:i], literal[i:]
	switch {
	case strings.HasPrefix(rest, `"""`), strings.HasPrefix(rest, `'''`):
		quote = rest[:3]
	default:
		quote = rest[:1]
	}
	body = strings.TrimSuffix(strings.TrimPrefix(rest, quote), quote)
	return prefix, quote, body
}

// RewriteString replaces the body of a string literal, keeping its prefix
// and quote style.
func RewriteString(tree *base.SourceTree, str *sitter.Node, value string) (*base.SourceTree, error) {
	prefix, quote, _ := StringParts(tree.Text(str))
	if len(quote) == 1 && strings.ContainsAny(value, "\r\n") {
		return nil, errorf("single-quoted string cannot hold a line break")
	}
	return tree.ReplaceNode(str, prefix+quote+value+quote)
}

// DeleteString removes a string that forms a statement on its own, such
// as a docstring.
func DeleteString(tree *base.SourceTree, str *sitter.Node) (*base.SourceTree, error) {
	stmt := str.Parent()
	if stmt == nil || !python.IsDocstring(stmt) {
		return nil, errorf("string is part of a larger expression")
	}
	return tree.ReplaceMany([]base.Edit{deleteStatement(tree, stmt, false)})
}
