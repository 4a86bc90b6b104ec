package python

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python node types used by the resolver and transformers.
const (
	NodeModule       = "module"
	NodeClass        = "class_definition"
	NodeFunction     = "function_definition"
	NodeDecorated    = "decorated_definition"
	NodeDecorator    = "decorator"
	NodeBlock        = "block"
	NodeComment      = "comment"
	NodeString       = "string"
	NodeConcatString = "concatenated_string"
	NodeImport       = "import_statement"
	NodeImportFrom   = "import_from_statement"
	NodeFutureImport = "future_import_statement"
	NodeExprStmt     = "expression_statement"
	NodeAssignment   = "assignment"
	NodeIdentifier   = "identifier"
	NodeParameters   = "parameters"
	NodeArgumentList = "argument_list"
	NodeKeywordArg   = "keyword_argument"
	NodePass         = "pass_statement"
)

// DefaultIndent is used when a file gives no indentation to copy.
const DefaultIndent = "    "

// BlockKinds maps compound statements to the block kind reported for them.
var BlockKinds = map[string]string{
	NodeClass:         "class",
	NodeFunction:      "function",
	"if_statement":    "if",
	"for_statement":   "for",
	"while_statement": "while",
	"try_statement":   "try",
	"with_statement":  "with",
	"match_statement": "match",
}

var parameterTypes = map[string]struct{}{
	"identifier":               {},
	"typed_parameter":          {},
	"default_parameter":        {},
	"typed_default_parameter":  {},
	"list_splat_pattern":       {},
	"dictionary_splat_pattern": {},
	"keyword_separator":        {},
	"positional_separator":     {},
	"tuple_pattern":            {},
}

// Config implements base.LanguageConfig for Python
type Config struct{}

// Language identifier
func (c *Config) Language() string {
	return "python"
}

// Extensions supported
func (c *Config) Extensions() []string {
	return []string{".py", ".pyw", ".pyi"}
}

// GetLanguage returns tree-sitter language for Python
func (c *Config) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

// NodeName returns the name a definition, decorator or import node binds
// or refers to, or "".
func NodeName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case NodeClass, NodeFunction:
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return nameNode.Content(source)
		}
	case NodeDecorated:
		if def := node.ChildByFieldName("definition"); def != nil {
			return NodeName(def, source)
		}
	case NodeDecorator:
		return DecoratorName(node.Content(source))
	case NodeImportFrom:
		if moduleNode := node.ChildByFieldName("module_name"); moduleNode != nil {
			return moduleNode.Content(source)
		}
	case NodeImport:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "dotted_name" {
				return child.Content(source)
			}
			if child.Type() == "aliased_import" {
				if n := child.ChildByFieldName("name"); n != nil {
					return n.Content(source)
				}
			}
		}
	}

	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(source)
	}
	return ""
}

// IsParameter reports whether node is one entry of a parameter list.
func IsParameter(node *sitter.Node) bool {
	_, ok := parameterTypes[node.Type()]
	return ok && node.IsNamed()
}

// ParameterName returns the bound name of a parameter node, or "" for
// separators such as "*" and "/".
func ParameterName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "identifier":
		return node.Content(source)
	case "default_parameter", "typed_default_parameter":
		if n := node.ChildByFieldName("name"); n != nil {
			return ParameterName(n, source)
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "identifier":
				return child.Content(source)
			case "list_splat_pattern", "dictionary_splat_pattern":
				return ParameterName(child, source)
			}
		}
	}
	return ""
}

// IsSplatParameter reports *args and **kwargs style parameters.
func IsSplatParameter(node *sitter.Node) bool {
	switch node.Type() {
	case "list_splat_pattern", "dictionary_splat_pattern":
		return true
	case "typed_parameter":
		if first := node.NamedChild(0); first != nil {
			return IsSplatParameter(first)
		}
	}
	return false
}

// DecoratorName returns the callable part of a decorator expression:
// "@functools.lru_cache(maxsize=1)" yields "functools.lru_cache".
func DecoratorName(expr string) string {
	expr = strings.TrimSpace(expr)
	expr = strings.TrimPrefix(expr, "@")
	if i := strings.IndexByte(expr, '('); i >= 0 {
		expr = expr[:i]
	}
	return strings.TrimSpace(expr)
}

// Definition returns the class or function node wrapped by a decorated
// definition, or node itself.
func Definition(node *sitter.Node) *sitter.Node {
	if node != nil && node.Type() == NodeDecorated {
		if def := node.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return node
}

// Outer returns the decorated_definition wrapping a class or function, or
// node itself when it has no decorators.
func Outer(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if p := node.Parent(); p != nil && p.Type() == NodeDecorated {
		return p
	}
	return node
}

// Decorators lists the decorator nodes applied to a class or function.
func Decorators(def *sitter.Node) []*sitter.Node {
	outer := Outer(def)
	if outer == def {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(outer.NamedChildCount()); i++ {
		if child := outer.NamedChild(i); child.Type() == NodeDecorator {
			out = append(out, child)
		}
	}
	return out
}

// IsDocstring reports whether stmt is a string-only expression statement,
// the form a docstring takes at the top of a body.
func IsDocstring(stmt *sitter.Node) bool {
	if stmt == nil || stmt.Type() != NodeExprStmt || stmt.NamedChildCount() != 1 {
		return false
	}
	switch stmt.NamedChild(0).Type() {
	case NodeString, NodeConcatString:
		return true
	}
	return false
}

var keywords = map[string]struct{}{
	"False": {}, "None": {}, "True": {}, "and": {}, "as": {}, "assert": {},
	"async": {}, "await": {}, "break": {}, "class": {}, "continue": {},
	"def": {}, "del": {}, "elif": {}, "else": {}, "except": {}, "finally": {},
	"for": {}, "from": {}, "global": {}, "if": {}, "import": {}, "in": {},
	"is": {}, "lambda": {}, "nonlocal": {}, "not": {}, "or": {}, "pass": {},
	"raise": {}, "return": {}, "try": {}, "while": {}, "with": {}, "yield": {},
}

// IsKeyword reports reserved words.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// IsIdentifier reports whether name can be bound by a def, class or
// parameter.
func IsIdentifier(name string) bool {
	if name == "" || IsKeyword(name) {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)):
		default:
			return false
		}
	}
	return true
}
