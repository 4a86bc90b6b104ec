package resolve

import (
	"errors"
	"regexp"
	"slices"
	"testing"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

const sample = `"""Module docstring."""
import os
from .models import User as U, Group
from __future__ import annotations

# top comment
@register
class Config:
    """Config docstring."""

    debug = False

    def load(self, path):
        if path:
            return open(path)  # inline
        return None

    class Config:
        pass


def helper():
    def inner():
        pass
    return inner


class Service(Base):
    @property
    def name(self):
        return "svc"

    def load(self):
        pass
`

type memSource map[string]string

func (m memSource) Tree(path string) (*base.SourceTree, error) {
	src, ok := m[path]
	if !ok {
		return nil, errors.New("no such file")
	}
	return python.New().Parse(path, []byte(src))
}

func mustTree(t *testing.T, src string) *base.SourceTree {
	t.Helper()
	tree, err := python.New().Parse("sample.py", []byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return tree
}

func names(ms []Match) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Ref.Qualified())
	}
	return out
}

func TestFind_QueryVariants(t *testing.T) {
	tree := mustTree(t, sample)
	service := Ref{Kind: KindClass, Name: "Service"}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"all classes", Query{Kind: KindClass}, []string{"Config", "Config.Config", "Service"}},
		{"class by name", Query{Kind: KindClass, Name: "Config"}, []string{"Config", "Config.Config"}},
		{"module functions", Query{Kind: KindFunction}, []string{"helper"}},
		{"methods", Query{Kind: KindMethod}, []string{"Config.load", "Service.name", "Service.load"}},
		{"any def", Query{Kind: KindDef}, []string{"Config.load", "helper", "helper.inner", "Service.name", "Service.load"}},
		{"pattern", Query{Kind: KindDef, Pattern: regexp.MustCompile(`^(load|name)$`)}, []string{"Config.load", "Service.name", "Service.load"}},
		{"scope", Query{Kind: KindMethod, Scope: &service}, []string{"Service.name", "Service.load"}},
		{"line containment", Query{Kind: KindDef, Line: 15}, []string{"Config.load"}},
		{"predicate", Query{Kind: KindClass, Predicate: func(m Match) bool { return len(m.Decorators) > 0 }}, []string{"Config"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(Find(tree, tt.query))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFind_Metadata(t *testing.T) {
	tree := mustTree(t, sample)

	cfg, ok := First(tree, Query{Kind: KindClass, Name: "Config"})
	if !ok {
		t.Fatal("Config not found")
	}
	if !slices.Equal(cfg.Decorators, []string{"register"}) {
		t.Errorf("Unexpected decorators %v", cfg.Decorators)
	}
	if cfg.StartLine != 7 || cfg.EndLine != 19 {
		t.Errorf("Expected lines 7-19, got %d-%d", cfg.StartLine, cfg.EndLine)
	}
	if cfg.Outer == cfg.Node {
		t.Error("Decorated class should have a distinct outer node")
	}

	name, _ := First(tree, Query{Kind: KindMethod, Name: "name"})
	if name.Class != "Service" {
		t.Errorf("Expected class Service, got %q", name.Class)
	}

	inner := Find(tree, Query{Kind: KindClass, Name: "Config"})[1]
	if inner.Ref.Scope != "Config" || inner.Ref.Ordinal != 0 {
		t.Errorf("Unexpected nested ref %+v", inner.Ref)
	}
}

func TestFind_Imports(t *testing.T) {
	tree := mustTree(t, sample)
	imports := Find(tree, Query{Kind: KindImport})
	if len(imports) != 3 {
		t.Fatalf("Expected 3 imports, got %d", len(imports))
	}

	if imports[0].Import.Module != "os" || imports[0].Import.From {
		t.Errorf("Unexpected plain import %+v", imports[0].Import)
	}
	rel := imports[1].Import
	if rel.Module != ".models" || !rel.Relative || !rel.From {
		t.Errorf("Unexpected relative import %+v", rel)
	}
	if !slices.Equal(rel.Names, []string{"User", "Group"}) {
		t.Errorf("Unexpected imported names %v", rel.Names)
	}
	if imports[2].Import.Module != "__future__" {
		t.Errorf("Unexpected future import %+v", imports[2].Import)
	}
}

func TestFind_CommentsAndStrings(t *testing.T) {
	tree := mustTree(t, sample)

	comments := Find(tree, Query{Kind: KindComment})
	if len(comments) != 2 || comments[0].Text != "# top comment" || comments[1].Text != "# inline" {
		t.Errorf("Unexpected comments %+v", comments)
	}

	var docs []string
	for _, m := range Find(tree, Query{Kind: KindString}) {
		if m.Docstring {
			docs = append(docs, m.Text)
		}
	}
	want := []string{`"""Module docstring."""`, `"""Config docstring."""`}
	if !slices.Equal(docs, want) {
		t.Errorf("Expected docstrings %v, got %v", want, docs)
	}
}

func TestLookup_SurvivesLineShift(t *testing.T) {
	tree := mustTree(t, sample)
	m, _ := First(tree, Query{Kind: KindMethod, Name: "load", Scope: &Ref{Kind: KindClass, Name: "Service"}})

	shifted, err := tree.Replace(0, 0, "# new header\n\n")
	if err != nil {
		t.Fatal(err)
	}

	again, ok := Lookup(shifted, m.Ref)
	if !ok {
		t.Fatal("Lookup lost the method after a line shift")
	}
	if again.StartLine != m.StartLine+2 {
		t.Errorf("Expected line %d, got %d", m.StartLine+2, again.StartLine)
	}
}

func TestLookup_StaleAfterRename(t *testing.T) {
	tree := mustTree(t, "class A:\n    pass\n")
	m, _ := First(tree, Query{Kind: KindClass, Name: "A"})

	renamed, err := tree.ReplaceNode(m.Node.ChildByFieldName("name"), "B")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := Lookup(renamed, m.Ref); ok {
		t.Error("Renamed class should no longer resolve")
	}
}

func TestBlockAt(t *testing.T) {
	tree := mustTree(t, sample)

	tests := []struct {
		line int
		kind string
		name string
	}{
		{15, "if", ""},
		{16, "function", "load"},
		{10, "class", "Config"},
		{23, "function", "inner"},
	}
	for _, tt := range tests {
		m, ok := BlockAt(tree, tt.line)
		if !ok {
			t.Errorf("No block at line %d", tt.line)
			continue
		}
		if m.BlockKind != tt.kind || m.Ref.Name != tt.name {
			t.Errorf("Line %d: expected %s %q, got %s %q", tt.line, tt.kind, tt.name, m.BlockKind, m.Ref.Name)
		}
	}

	if _, ok := BlockAt(tree, 2); ok {
		t.Error("Import line should not be inside a block")
	}
}

func TestSearchLines(t *testing.T) {
	tree := mustTree(t, sample)
	got := SearchLines(tree, regexp.MustCompile(`def load`))
	if !slices.Equal(got, []int{13, 33}) {
		t.Errorf("Unexpected lines %v", got)
	}
}

func TestResolve_SkipsBrokenFiles(t *testing.T) {
	src := memSource{
		"a.py": "def a():\n    pass\n",
		"b.py": "def b(:\n",
		"c.py": "def a():\n    pass\n\ndef b():\n    pass\n",
	}

	matches, failures := Resolve(src, []string{"a.py", "b.py", "missing.py", "c.py"},
		Query{Kind: KindFunction, Pattern: regexp.MustCompile(`^a|^b$`)})

	var got []string
	for _, m := range matches {
		got = append(got, m.Path+":"+m.Ref.Name)
	}
	if want := []string{"a.py:a", "c.py:a", "c.py:b"}; !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if len(failures) != 2 || failures[0].Path != "b.py" || failures[1].Path != "missing.py" {
		t.Fatalf("Unexpected failures %v", failures)
	}
	if !errors.Is(failures[0].Err, core.ErrParse) {
		t.Errorf("Expected parse failure, got %v", failures[0].Err)
	}
}

func TestResolve_Empty(t *testing.T) {
	matches, failures := Resolve(memSource{}, nil, Query{Kind: KindClass})
	if matches != nil || failures != nil {
		t.Error("Empty file list should resolve to nothing")
	}
}
