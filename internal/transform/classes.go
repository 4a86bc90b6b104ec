package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// bases returns the argument list of a class and its entries.
func bases(class *sitter.Node) (*sitter.Node, []*sitter.Node) {
	list := class.ChildByFieldName("superclasses")
	if list == nil {
		return nil, nil
	}
	var items []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if child := list.NamedChild(i); child.Type() != python.NodeComment {
			items = append(items, child)
		}
	}
	return list, items
}

// Bases lists the base class expressions of class, keyword arguments such
// as metaclass= excluded.
func Bases(tree *base.SourceTree, class *sitter.Node) []string {
	_, items := bases(class)
	var out []string
	for _, item := range items {
		if item.Type() != python.NodeKeywordArg {
			out = append(out, tree.Text(item))
		}
	}
	return out
}

// AddBase appends a base class before any keyword arguments. A base that
// is already listed makes this a no-op.
func AddBase(tree *base.SourceTree, class *sitter.Node, baseClass string) (*base.SourceTree, error) {
	baseClass = strings.TrimSpace(baseClass)
	if baseClass == "" {
		return nil, errorf("empty base class")
	}

	list, items := bases(class)
	if list == nil {
		name := class.ChildByFieldName("name")
		return tree.Replace(name.EndByte(), name.EndByte(), "("+baseClass+")")
	}
	for _, existing := range Bases(tree, class) {
		if existing == baseClass {
			return tree, nil
		}
	}
	if len(items) == 0 {
		return tree.Replace(list.StartByte()+1, list.EndByte()-1, baseClass)
	}
	for _, item := range items {
		if item.Type() == python.NodeKeywordArg {
			return tree.Replace(item.StartByte(), item.StartByte(), baseClass+", ")
		}
	}
	last := items[len(items)-1]
	return tree.Replace(last.EndByte(), last.EndByte(), ", "+baseClass)
}

// RemoveBase removes a base class. Removing the only entry drops the
// parentheses as well.
func RemoveBase(tree *base.SourceTree, class *sitter.Node, baseClass string) (*base.SourceTree, error) {
	baseClass = strings.TrimSpace(baseClass)
	list, items := bases(class)
	for i, item := range items {
		if item.Type() == python.NodeKeywordArg || tree.Text(item) != baseClass {
			continue
		}
		if len(items) == 1 {
			return tree.Replace(list.StartByte(), list.EndByte(), "")
		}
		return tree.ReplaceMany([]base.Edit{removeItem(items, i)})
	}
	return nil, errorf("base class '%s' not found on %s", baseClass, describe(tree, class))
}

// Method returns the def named name directly in the body of class.
func Method(tree *base.SourceTree, class *sitter.Node, name string) *sitter.Node {
	body := bodyOf(class)
	if body == nil {
		return nil
	}
	for _, stmt := range statements(body) {
		def := python.Definition(stmt)
		if def.Type() == python.NodeFunction && nameOf(tree, def) == name {
			return def
		}
	}
	return nil
}

// AddMethod appends a method, given as complete def source, to the end of
// class. Unlike other add operations this fails when the method exists.
func AddMethod(tree *base.SourceTree, class *sitter.Node, source string) (*base.SourceTree, error) {
	snippet, stmts, err := parseSnippet(tree, source)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 || python.Definition(stmts[0]).Type() != python.NodeFunction {
		return nil, errorf("method source must be a single def")
	}
	def := python.Definition(stmts[0])
	name := nameOf(snippet, def)
	if Method(tree, class, name) != nil {
		return nil, errorf("method '%s' already exists in class %s", name, nameOf(tree, class))
	}

	indent, err := bodyIndent(tree, class)
	if err != nil {
		return nil, err
	}
	body := bodyOf(class)
	last := body.NamedChild(int(body.NamedChildCount()) - 1)
	at := tree.LineEnd(endLine(last))

	nl := tree.Newline()
	return insertLines(tree, at, nl+block(source, indent, nl))
}

// attribute finds a class-level assignment to name.
func attribute(tree *base.SourceTree, class *sitter.Node, name string) *sitter.Node {
	body := bodyOf(class)
	if body == nil {
		return nil
	}
	for _, stmt := range statements(body) {
		if stmt.Type() != python.NodeExprStmt || stmt.NamedChildCount() != 1 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != python.NodeAssignment {
			continue
		}
		if left := assign.ChildByFieldName("left"); left != nil && tree.Text(left) == name {
			return stmt
		}
	}
	return nil
}

// AddAttribute adds "name: typ = value" at the top of the class body,
// after the docstring. An existing attribute of that name makes this a
// no-op.
func AddAttribute(tree *base.SourceTree, class *sitter.Node, name, typ, value string) (*base.SourceTree, error) {
	if err := checkIdentifier(name); err != nil {
		return nil, err
	}
	if attribute(tree, class, name) != nil {
		return tree, nil
	}
	indent, err := bodyIndent(tree, class)
	if err != nil {
		return nil, err
	}

	typ, value = strings.TrimSpace(typ), strings.TrimSpace(value)
	if value == "" && typ == "" {
		value = "None"
	}
	stmt := name
	if typ != "" {
		stmt += ": " + typ
	}
	if value != "" {
		stmt += " = " + value
	}

	at := bodyStart(tree, bodyOf(class))
	return insertLines(tree, at, indent+stmt+tree.Newline())
}

// RemoveAttribute deletes a class-level assignment.
func RemoveAttribute(tree *base.SourceTree, class *sitter.Node, name string) (*base.SourceTree, error) {
	stmt := attribute(tree, class, name)
	if stmt == nil {
		return nil, errorf("attribute '%s' not found in %s", name, describe(tree, class))
	}
	return tree.ReplaceMany([]base.Edit{deleteStatement(tree, stmt, false)})
}
