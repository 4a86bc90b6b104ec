package transform

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// Param describes a parameter to add.
type Param struct {
	Name     string
	Type     string
	Default  string
	Position Position // Start inserts after self/cls; End before **kwargs
}

func (p Param) render() string {
	s := p.Name
	if p.Type != "" {
		s += ": " + p.Type
	}
	if p.Default != "" {
		if p.Type != "" {
			s += " = " + p.Default
		} else {
			s += "=" + p.Default
		}
	}
	return s
}

// parameters returns the parameter list node and its entries, separators
// such as * and / included.
func parameters(def *sitter.Node) (*sitter.Node, []*sitter.Node) {
	list := def.ChildByFieldName("parameters")
	if list == nil {
		return nil, nil
	}
	var items []*sitter.Node
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if child := list.NamedChild(i); python.IsParameter(child) {
			items = append(items, child)
		}
	}
	return list, items
}

func findParam(tree *base.SourceTree, items []*sitter.Node, name string) int {
	for i, p := range items {
		if python.ParameterName(p, tree.Source()) == name {
			return i
		}
	}
	return -1
}

// paramNameNode returns the identifier bound by a parameter.
func paramNameNode(p *sitter.Node) *sitter.Node {
	switch p.Type() {
	case python.NodeIdentifier:
		return p
	case "default_parameter", "typed_default_parameter":
		if n := p.ChildByFieldName("name"); n != nil {
			return paramNameNode(n)
		}
	}
	for i := 0; i < int(p.NamedChildCount()); i++ {
		child := p.NamedChild(i)
		switch child.Type() {
		case python.NodeIdentifier:
			return child
		case "list_splat_pattern", "dictionary_splat_pattern":
			return paramNameNode(child)
		}
	}
	return nil
}

// AddParameter adds a parameter to def. A parameter with the same name
// already present makes this a no-op.
func AddParameter(tree *base.SourceTree, def *sitter.Node, p Param) (*base.SourceTree, error) {
	if err := checkIdentifier(p.Name); err != nil {
		return nil, err
	}
	list, items := parameters(def)
	if list == nil {
		return nil, errorf("%s has no parameter list", describe(tree, def))
	}
	if findParam(tree, items, p.Name) >= 0 {
		return tree, nil
	}

	text := p.render()
	if len(items) == 0 {
		return tree.Replace(list.StartByte()+1, list.EndByte()-1, text)
	}

	if p.Position == Start {
		first := items[0]
		if name := python.ParameterName(first, tree.Source()); name == "self" || name == "cls" {
			return tree.Replace(first.EndByte(), first.EndByte(), ", "+text)
		}
		return tree.Replace(first.StartByte(), first.StartByte(), text+", ")
	}

	for _, item := range items {
		if python.IsSplatParameter(item) && strings.HasPrefix(item.Content(tree.Source()), "**") {
			return tree.Replace(item.StartByte(), item.StartByte(), text+", ")
		}
	}
	last := items[len(items)-1]
	return tree.Replace(last.EndByte(), last.EndByte(), ", "+text)
}

// RemoveParameter removes the named parameter from the signature of def.
func RemoveParameter(tree *base.SourceTree, def *sitter.Node, name string) (*base.SourceTree, error) {
	_, items := parameters(def)
	i := findParam(tree, items, name)
	if i < 0 {
		return nil, errorf("parameter '%s' not found in %s", name, describe(tree, def))
	}
	return tree.ReplaceMany([]base.Edit{removeItem(items, i)})
}

// RenameParameter renames a parameter and every reference to it in the
// body of def.
func RenameParameter(tree *base.SourceTree, def *sitter.Node, old, newName string) (*base.SourceTree, error) {
	if err := checkIdentifier(newName); err != nil {
		return nil, err
	}
	_, items := parameters(def)
	i := findParam(tree, items, old)
	if i < 0 {
		return nil, errorf("parameter '%s' not found in %s", old, describe(tree, def))
	}
	if old == newName {
		return tree, nil
	}
	if findParam(tree, items, newName) >= 0 {
		return nil, errorf("parameter '%s' already exists in %s", newName, describe(tree, def))
	}

	nameNode := paramNameNode(items[i])
	if nameNode == nil {
		return nil, errorf("parameter '%s' has no name to rename", old)
	}
	edits := []base.Edit{{Start: nameNode.StartByte(), End: nameNode.EndByte(), Text: newName}}
	for _, ref := range identifierRefs(tree, bodyOf(def), old) {
		edits = append(edits, base.Edit{Start: ref.StartByte(), End: ref.EndByte(), Text: newName})
	}
	return tree.ReplaceMany(edits)
}

// SetReturnType sets, replaces or (with an empty type) removes the return
// annotation of def.
func SetReturnType(tree *base.SourceTree, def *sitter.Node, typ string) (*base.SourceTree, error) {
	typ = strings.TrimSpace(typ)
	list := def.ChildByFieldName("parameters")
	if list == nil {
		return nil, errorf("%s has no parameter list", describe(tree, def))
	}

	current := def.ChildByFieldName("return_type")
	switch {
	case current == nil && typ == "":
		return tree, nil
	case current == nil:
		return tree.Replace(list.EndByte(), list.EndByte(), " -> "+typ)
	case typ == "":
		return tree.Replace(list.EndByte(), current.EndByte(), "")
	default:
		return tree.ReplaceNode(current, typ)
	}
}
