// Package resolve turns locator queries into matches with stable
// references into parsed Python trees.
package resolve

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// Kind selects the syntactic elements a query walks.
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function" // def outside any class body
	KindMethod   Kind = "method"   // def directly inside a class body
	KindDef      Kind = "def"      // any def, query-only
	KindComment  Kind = "comment"
	KindString   Kind = "string"
	KindImport   Kind = "import"
	KindBlock    Kind = "block"
)

// Ref identifies an element by what it is rather than where it is: the
// dotted path of enclosing definitions, its name, and its ordinal among
// same-named siblings. Refs survive edits that only shift line numbers.
type Ref struct {
	Kind    Kind   `json:"kind"`
	Scope   string `json:"scope,omitempty"`
	Name    string `json:"name,omitempty"`
	Ordinal int    `json:"ordinal"`
}

// Qualified returns Scope.Name.
func (r Ref) Qualified() string {
	if r.Scope == "" {
		return r.Name
	}
	return r.Scope + "." + r.Name
}

func (r Ref) String() string {
	s := string(r.Kind) + " " + r.Qualified()
	if r.Ordinal > 0 {
		s += fmt.Sprintf("#%d", r.Ordinal)
	}
	return s
}

// ImportInfo describes an import statement.
type ImportInfo struct {
	Module   string   `json:"module"`
	Names    []string `json:"names,omitempty"`
	From     bool     `json:"from"`
	Relative bool     `json:"relative"`
}

// Match is one resolved element.
type Match struct {
	Path      string `json:"path"`
	Ref       Ref    `json:"ref"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`

	Class      string      `json:"class,omitempty"` // enclosing class of a method
	Decorators []string    `json:"decorators,omitempty"`
	Import     *ImportInfo `json:"import,omitempty"`
	Text       string      `json:"text,omitempty"` // comment or string source text
	Docstring  bool        `json:"docstring,omitempty"`
	BlockKind  string      `json:"block_kind,omitempty"`

	// Node is the matched node (the class or function itself for
	// definitions). It is only valid for the tree it was resolved from.
	Node *sitter.Node `json:"-"`
	// Outer spans decorators as well; equal to Node when there are none.
	Outer *sitter.Node `json:"-"`
	// Mark pins the start of Node so later trees can follow it.
	Mark base.Mark `json:"-"`
	// Head is the first source line of Node.
	Head string `json:"-"`
}

// Name returns the element name.
func (m Match) Name() string { return m.Ref.Name }

// Query is a locator. Zero-valued filters match everything.
type Query struct {
	Kind      Kind
	Name      string
	Pattern   *regexp.Regexp
	Line      int  // containment, 1-based
	Scope     *Ref // direct members of this definition only
	Predicate func(Match) bool
}

// Matches reports whether m satisfies the query.
func (q Query) Matches(m Match) bool {
	switch q.Kind {
	case KindDef:
		if m.Ref.Kind != KindFunction && m.Ref.Kind != KindMethod {
			return false
		}
	case KindFunction:
		if m.Ref.Kind != KindFunction || (q.Scope == nil && m.Ref.Scope != "") {
			return false
		}
	case "":
	default:
		if m.Ref.Kind != q.Kind {
			return false
		}
	}

	if q.Name != "" && m.Ref.Name != q.Name {
		return false
	}
	if q.Pattern != nil && !q.Pattern.MatchString(m.Ref.Name) {
		return false
	}
	if q.Line > 0 && (q.Line < m.StartLine || q.Line > m.EndLine) {
		return false
	}
	if q.Scope != nil && m.Ref.Scope != q.Scope.Qualified() {
		return false
	}
	if q.Predicate != nil && !q.Predicate(m) {
		return false
	}
	return true
}

// TreeSource supplies the current tree of a file.
type TreeSource interface {
	Tree(path string) (*base.SourceTree, error)
}

// Failure records a file the resolver had to skip.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }

// Resolve runs q over files in order. A file that cannot be read or parsed
// is recorded as a Failure and the walk continues with the next one.
func Resolve(src TreeSource, files []string, q Query) ([]Match, []Failure) {
	var matches []Match
	var failures []Failure
	for _, path := range files {
		tree, err := src.Tree(path)
		if err != nil {
			failures = append(failures, Failure{Path: path, Err: err})
			continue
		}
		matches = append(matches, Find(tree, q)...)
	}
	return matches, failures
}

// Find runs q over a single tree.
func Find(tree *base.SourceTree, q Query) []Match {
	var out []Match
	for _, m := range Collect(tree) {
		if q.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}

// First returns the first match of q in tree.
func First(tree *base.SourceTree, q Query) (Match, bool) {
	for _, m := range Collect(tree) {
		if q.Matches(m) {
			return m, true
		}
	}
	return Match{}, false
}

// Lookup re-resolves ref in the current tree.
func Lookup(tree *base.SourceTree, ref Ref) (Match, bool) {
	for _, m := range Collect(tree) {
		if m.Ref == ref {
			return m, true
		}
	}
	return Match{}, false
}

// At returns the element of kind whose node starts at offset.
func At(tree *base.SourceTree, kind Kind, offset uint32) (Match, bool) {
	for _, m := range Collect(tree) {
		if m.Ref.Kind == kind && m.Node.StartByte() == offset {
			return m, true
		}
	}
	return Match{}, false
}

// BlockAt returns the innermost compound statement containing line.
func BlockAt(tree *base.SourceTree, line int) (Match, bool) {
	var best Match
	found := false
	for _, m := range Collect(tree) {
		if m.Ref.Kind != KindBlock || line < m.StartLine || line > m.EndLine {
			continue
		}
		if !found || m.StartByte >= best.StartByte {
			best, found = m, true
		}
	}
	return best, found
}

// SearchLines returns the 1-based numbers of lines whose text matches re.
func SearchLines(tree *base.SourceTree, re *regexp.Regexp) []int {
	var lines []int
	for i, text := range tree.Lines() {
		if re.MatchString(text) {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// Collect lists every element of tree in pre-order.
func Collect(tree *base.SourceTree) []Match {
	c := &collector{
		tree:     tree,
		src:      tree.Source(),
		ordinals: make(map[string]int),
	}
	c.walk(tree.Root(), nil, ownerModule)
	return c.out
}

type owner int

const (
	ownerModule owner = iota
	ownerClass
	ownerFunction
)

type collector struct {
	tree     *base.SourceTree
	src      []byte
	out      []Match
	ordinals map[string]int
}

func (c *collector) ref(kind Kind, scope []string, name string) Ref {
	r := Ref{Kind: kind, Scope: strings.Join(scope, "."), Name: name}
	key := string(kind) + "\x00" + r.Scope + "\x00" + name
	r.Ordinal = c.ordinals[key]
	c.ordinals[key]++
	return r
}

// span fills the position fields of m from n, which for definitions is
// the decorated outer node. Mark and Head always follow m.Node.
func (c *collector) span(m *Match, n *sitter.Node) {
	m.Mark = c.tree.Mark(m.Node.StartByte())
	m.Head = head(c.src, m.Node)
	m.StartByte = n.StartByte()
	m.EndByte = n.EndByte()
	m.StartLine = int(n.StartPoint().Row) + 1
	m.EndLine = int(n.EndPoint().Row) + 1
	if n.EndPoint().Column == 0 && m.EndLine > m.StartLine {
		m.EndLine--
	}
}

func (c *collector) walk(n *sitter.Node, scope []string, own owner) {
	switch n.Type() {
	case python.NodeClass, python.NodeFunction:
		c.definition(n, scope, own)
		return
	case python.NodeComment:
		m := Match{Path: c.tree.Path(), Ref: c.ref(KindComment, scope, ""), Text: n.Content(c.src), Node: n, Outer: n}
		c.span(&m, n)
		c.out = append(c.out, m)
		return
	case python.NodeString:
		m := Match{Path: c.tree.Path(), Ref: c.ref(KindString, scope, ""), Text: n.Content(c.src), Node: n, Outer: n}
		m.Docstring = isDocstringNode(n)
		c.span(&m, n)
		c.out = append(c.out, m)
	case python.NodeImport, python.NodeImportFrom, python.NodeFutureImport:
		info := importInfo(n, c.src)
		m := Match{Path: c.tree.Path(), Ref: c.ref(KindImport, scope, info.Module), Import: info, Node: n, Outer: n}
		c.span(&m, n)
		c.out = append(c.out, m)
		return
	default:
		if kind, ok := python.BlockKinds[n.Type()]; ok {
			c.block(n, kind, "")
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		c.walk(n.Child(i), scope, own)
	}
}

// block records a compound statement. Blocks are numbered in pre-order
// regardless of name; definitions carry their name for display.
func (c *collector) block(n *sitter.Node, kind, name string) {
	m := Match{Path: c.tree.Path(), Ref: c.ref(KindBlock, nil, ""), BlockKind: kind, Node: n, Outer: n}
	m.Ref.Name = name
	c.span(&m, n)
	c.out = append(c.out, m)
}

func (c *collector) definition(n *sitter.Node, scope []string, own owner) {
	name := python.NodeName(n, c.src)
	if name == "" {
		return
	}

	kind := KindClass
	if n.Type() == python.NodeFunction {
		kind = KindFunction
		if own == ownerClass {
			kind = KindMethod
		}
	}

	outer := python.Outer(n)
	m := Match{Path: c.tree.Path(), Ref: c.ref(kind, scope, name), Node: n, Outer: outer}
	c.span(&m, outer)
	if kind == KindMethod {
		m.Class = strings.Join(scope, ".")
	}
	for _, d := range python.Decorators(n) {
		m.Decorators = append(m.Decorators, python.NodeName(d, c.src))
	}
	c.out = append(c.out, m)

	c.block(n, python.BlockKinds[n.Type()], name)

	inner := append(append([]string(nil), scope...), name)
	next := ownerFunction
	if kind == KindClass {
		next = ownerClass
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == python.NodeBlock {
			c.walkBody(child, inner, next)
			continue
		}
		c.walk(child, inner, ownerFunction)
	}
}

// walkBody visits a definition body. Compound statements inside a class
// body keep the class as owner so conditional methods stay methods.
func (c *collector) walkBody(block *sitter.Node, scope []string, own owner) {
	for i := 0; i < int(block.ChildCount()); i++ {
		c.walk(block.Child(i), scope, own)
	}
}

func head(src []byte, n *sitter.Node) string {
	text := src[n.StartByte():n.EndByte()]
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return string(bytes.TrimRight(text, "\r"))
}

func isDocstringNode(n *sitter.Node) bool {
	stmt := n.Parent()
	if stmt == nil || !python.IsDocstring(stmt) {
		return false
	}
	container := stmt.Parent()
	if container == nil {
		return false
	}
	switch container.Type() {
	case python.NodeModule:
	case python.NodeBlock:
		p := container.Parent()
		if p == nil || (p.Type() != python.NodeClass && p.Type() != python.NodeFunction) {
			return false
		}
	default:
		return false
	}
	for i := 0; i < int(container.NamedChildCount()); i++ {
		first := container.NamedChild(i)
		if first.Type() == python.NodeComment {
			continue
		}
		return first.StartByte() == stmt.StartByte()
	}
	return false
}

func importInfo(n *sitter.Node, src []byte) *ImportInfo {
	info := &ImportInfo{}
	var moduleNode *sitter.Node

	switch n.Type() {
	case python.NodeImportFrom:
		info.From = true
		moduleNode = n.ChildByFieldName("module_name")
		if moduleNode != nil {
			info.Module = python.NodeName(n, src)
			info.Relative = moduleNode.Type() == "relative_import"
		}
	case python.NodeFutureImport:
		info.From = true
		info.Module = "__future__"
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() {
			continue
		}
		var name string
		switch child.Type() {
		case "dotted_name":
			name = child.Content(src)
		case "aliased_import":
			if nn := child.ChildByFieldName("name"); nn != nil {
				name = nn.Content(src)
			}
		case "wildcard_import":
			name = "*"
		default:
			continue
		}
		info.Names = append(info.Names, name)
	}

	if !info.From {
		info.Module = python.NodeName(n, src)
	}
	return info
}
