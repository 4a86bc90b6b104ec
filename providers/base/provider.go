package base

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/pymorph/core"
)

// LanguageConfig defines language-specific behavior that must be implemented
type LanguageConfig interface {
	Language() string
	Extensions() []string
	GetLanguage() *sitter.Language
}

// Provider parses source files of one language into SourceTrees.
//
// A Provider owns a tree-sitter parser and is not safe for concurrent use.
type Provider struct {
	config LanguageConfig
	parser *sitter.Parser
}

// New creates a base provider with language-specific config
func New(config LanguageConfig) *Provider {
	parser := sitter.NewParser()
	lang := config.GetLanguage()
	if lang == nil {
		panic(fmt.Sprintf("Failed to load %s language for tree-sitter", config.Language()))
	}
	parser.SetLanguage(lang)

	return &Provider{
		config: config,
		parser: parser,
	}
}

// Language returns language identifier
func (p *Provider) Language() string {
	return p.config.Language()
}

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string {
	return p.config.Extensions()
}

// Supports reports whether path has one of the provider's extensions.
func (p *Provider) Supports(path string) bool {
	return slices.Contains(p.config.Extensions(), strings.ToLower(filepath.Ext(path)))
}

// Parse builds a SourceTree for src. Input that does not parse cleanly
// yields a *ParseError locating the first syntax error.
func (p *Provider) Parse(path string, src []byte) (*SourceTree, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if tree == nil {
		return nil, &ParseError{Path: path, Line: 1, Column: 1, Reason: "parser returned no tree"}
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, newParseError(path, src, root)
	}

	return &SourceTree{
		path:     path,
		src:      src,
		tree:     tree,
		provider: p,
		hist:     &history{},
	}, nil
}

// ParseError reports the first syntax error of a file.
type ParseError struct {
	Path    string
	Line    int // 1-based
	Column  int // 1-based
	Snippet string
	Reason  string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s:%d:%d: syntax error", e.Path, e.Line, e.Column)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" near %q", e.Snippet)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return core.ErrParse }

func newParseError(path string, src []byte, root *sitter.Node) *ParseError {
	bad := firstError(root)
	if bad == nil {
		bad = root
	}

	pe := &ParseError{
		Path:   path,
		Line:   int(bad.StartPoint().Row) + 1,
		Column: int(bad.StartPoint().Column) + 1,
	}
	if bad.IsMissing() {
		pe.Reason = "missing " + bad.Type()
	}

	snippet := bad.Content(src)
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	pe.Snippet = snippet
	return pe
}

// firstError finds the first ERROR or MISSING node in pre-order.
func firstError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	if !node.HasError() {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstError(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}
