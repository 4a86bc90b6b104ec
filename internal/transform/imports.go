package transform

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

func isImport(n *sitter.Node) bool {
	switch n.Type() {
	case python.NodeImport, python.NodeImportFrom, python.NodeFutureImport:
		return true
	}
	return false
}

// importParts splits an import statement into its module (empty for plain
// imports) and the name entries it binds.
func importParts(tree *base.SourceTree, stmt *sitter.Node) (string, []*sitter.Node) {
	var module *sitter.Node
	if stmt.Type() == python.NodeImportFrom {
		module = stmt.ChildByFieldName("module_name")
	}

	var names []*sitter.Node
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		if module != nil && child.StartByte() == module.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name", "aliased_import", "wildcard_import":
			names = append(names, child)
		}
	}

	mod := ""
	if module != nil {
		mod = tree.Text(module)
	} else if stmt.Type() == python.NodeFutureImport {
		mod = "__future__"
	}
	return mod, names
}

func importName(tree *base.SourceTree, n *sitter.Node) string {
	if n.Type() == "aliased_import" {
		return tree.Text(n.ChildByFieldName("name"))
	}
	return tree.Text(n)
}

// importedText returns the entries of an import as written, aliases kept.
func importedText(tree *base.SourceTree, names []*sitter.Node) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.Join(strings.Fields(tree.Text(n)), " ")
	}
	return out
}

// AddImport inserts an import statement after the last top-level import,
// or after the module docstring and leading comments when there is none.
// An import whose every entry is already imported is a no-op.
func AddImport(tree *base.SourceTree, statement string) (*base.SourceTree, error) {
	snippet, stmts, err := parseSnippet(tree, statement)
	if err != nil {
		return nil, err
	}
	if len(stmts) != 1 || !isImport(stmts[0]) {
		return nil, errorf("not an import statement: %q", strings.TrimSpace(statement))
	}
	newStmt := stmts[0]
	newModule, newNames := importParts(snippet, newStmt)
	wanted := importedText(snippet, newNames)

	root := tree.Root()
	var lastImport *sitter.Node
	have := map[string]bool{}
	for _, stmt := range statements(root) {
		if !isImport(stmt) {
			continue
		}
		lastImport = stmt
		module, names := importParts(tree, stmt)
		if stmt.Type() == newStmt.Type() && module == newModule {
			for _, n := range importedText(tree, names) {
				have[n] = true
			}
		}
	}
	if len(wanted) > 0 && !slices.ContainsFunc(wanted, func(n string) bool { return !have[n] }) {
		return tree, nil
	}

	line := strings.TrimSpace(Dedent(statement)) + tree.Newline()
	if lastImport != nil {
		return insertLines(tree, tree.LineEnd(endLine(lastImport)), line)
	}
	return insertLines(tree, moduleHeaderEnd(tree), line)
}

// moduleHeaderEnd is the offset after leading comments and the module
// docstring.
func moduleHeaderEnd(tree *base.SourceTree) uint32 {
	root := tree.Root()
	at := uint32(0)
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch {
		case child.Type() == python.NodeComment:
			at = tree.LineEnd(endLine(child))
		case python.IsDocstring(child):
			return tree.LineEnd(endLine(child))
		default:
			return at
		}
	}
	return at
}

// RemoveImport removes imports of module. With names, only those entries
// are dropped from "from module import ..." statements; a statement left
// with no entries is deleted. Without names, every top-level import of
// module is removed.
func RemoveImport(tree *base.SourceTree, module string, names ...string) (*base.SourceTree, error) {
	var edits []base.Edit
	for _, stmt := range statements(tree.Root()) {
		if !isImport(stmt) {
			continue
		}
		from, entries := importParts(tree, stmt)

		var drop func(n *sitter.Node) bool
		switch {
		case stmt.Type() == python.NodeImport && len(names) == 0:
			drop = func(n *sitter.Node) bool { return importName(tree, n) == module }
		case stmt.Type() != python.NodeImport && from == module && len(names) == 0:
			drop = func(*sitter.Node) bool { return true }
		case stmt.Type() != python.NodeImport && from == module:
			drop = func(n *sitter.Node) bool { return slices.Contains(names, importName(tree, n)) }
		default:
			continue
		}

		var keep []string
		removed := 0
		for i, n := range entries {
			if drop(n) {
				removed++
				continue
			}
			keep = append(keep, importedText(tree, entries[i:i+1])[0])
		}
		switch {
		case removed == 0:
		case len(keep) == 0:
			edits = append(edits, deleteStatement(tree, stmt, false))
		default:
			first, last := entries[0], entries[len(entries)-1]
			edits = append(edits, base.Edit{Start: first.StartByte(), End: last.EndByte(), Text: strings.Join(keep, ", ")})
		}
	}

	if len(edits) == 0 {
		target := module
		if len(names) > 0 {
			target = "from " + module + " import " + strings.Join(names, ", ")
		}
		return nil, errorf("import '%s' not found", target)
	}
	return tree.ReplaceMany(edits)
}

// AddTopLevel appends a class or function definition, given as source, to
// the end of the module separated by two blank lines. It fails when a
// top-level definition of that name exists.
func AddTopLevel(tree *base.SourceTree, source string) (*base.SourceTree, string, error) {
	snippet, stmts, err := parseSnippet(tree, source)
	if err != nil {
		return nil, "", err
	}
	if len(stmts) != 1 {
		return nil, "", errorf("source must be a single class or def")
	}
	def := python.Definition(stmts[0])
	if def.Type() != python.NodeClass && def.Type() != python.NodeFunction {
		return nil, "", errorf("source must be a single class or def")
	}
	name := nameOf(snippet, def)

	for _, stmt := range statements(tree.Root()) {
		existing := python.Definition(stmt)
		if (existing.Type() == python.NodeClass || existing.Type() == python.NodeFunction) && nameOf(tree, existing) == name {
			return nil, "", errorf("%s already exists", describe(tree, existing))
		}
	}

	nl := tree.Newline()
	text := block(source, "", nl)
	if content := strings.TrimRight(string(tree.Source()), " \t\r\n"); content != "" {
		// Normalize the gap before the new definition to two blank lines.
		return appendText(tree, uint32(len(content)), tree.Len(), nl+nl+nl+text, name)
	}
	return appendText(tree, 0, tree.Len(), text, name)
}

func appendText(tree *base.SourceTree, start, end uint32, text, name string) (*base.SourceTree, string, error) {
	next, err := tree.Replace(start, end, text)
	if err != nil {
		return nil, "", err
	}
	return next, name, nil
}

// DeleteImport removes one import statement.
func DeleteImport(tree *base.SourceTree, stmt *sitter.Node) (*base.SourceTree, error) {
	if !isImport(stmt) {
		return nil, errorf("not an import statement")
	}
	return tree.ReplaceMany([]base.Edit{deleteStatement(tree, stmt, false)})
}
