package refactor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/resolve"
	"github.com/oxhq/pymorph/internal/transform"
	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// FileTarget is a Python source file. A module target is a FileTarget
// reached through its dotted name.
type FileTarget struct {
	common
	module string
}

func newFileTarget(s *Session, path, module string) *FileTarget {
	c := common{s: s, kind: KindFile, path: path, name: filepath.Base(path), label: "file " + s.display(path)}
	if module != "" {
		c.kind, c.name = KindModule, module
		c.label = fmt.Sprintf("module '%s' (%s)", module, s.display(path))
	}
	return &FileTarget{common: c, module: module}
}

// Module returns the dotted module name, if the target was reached by one.
func (f *FileTarget) Module() string { return f.module }

func (f *FileTarget) tree() (*base.SourceTree, error) { return f.s.Tree(f.path) }

func (f *FileTarget) Exists() bool {
	return f.s.exists(f.path)
}

func (f *FileTarget) Content() string {
	tree, err := f.tree()
	if err != nil {
		return ""
	}
	return string(tree.Source())
}

// LineCount returns the number of lines, or 0 when the file cannot be read.
func (f *FileTarget) LineCount() int {
	tree, err := f.tree()
	if err != nil {
		return 0
	}
	return tree.LineCount()
}

func (f *FileTarget) first(kind resolve.Kind, name string) Target {
	tree, err := f.tree()
	if err != nil {
		return f.errorTarget(err)
	}
	m, ok := resolve.First(tree, resolve.Query{Kind: kind, Name: name})
	if !ok {
		return newErrorTarget(f.path, fmt.Sprintf("%s '%s' not found in %s", kind, name, f.s.display(f.path)), core.ErrNotFound)
	}
	return f.s.target(m)
}

func (f *FileTarget) all(q resolve.Query) TargetList {
	tree, err := f.tree()
	if err != nil {
		return TargetList{err: err}
	}
	var out []Target
	for _, m := range resolve.Find(tree, q) {
		out = append(out, f.s.target(m))
	}
	return NewTargetList(out...)
}

func (f *FileTarget) FindClass(name string) Target    { return f.first(resolve.KindClass, name) }
func (f *FileTarget) FindFunction(name string) Target { return f.first(resolve.KindFunction, name) }

func (f *FileTarget) FindClasses(pattern string) TargetList {
	q, err := patternQuery(resolve.KindClass, pattern)
	if err != nil {
		return TargetList{err: err}
	}
	return f.all(q)
}

func (f *FileTarget) FindFunctions(pattern string) TargetList {
	q, err := patternQuery(resolve.KindFunction, pattern)
	if err != nil {
		return TargetList{err: err}
	}
	return f.all(q)
}

func (f *FileTarget) FindComments() TargetList { return f.all(resolve.Query{Kind: resolve.KindComment}) }
func (f *FileTarget) FindStrings() TargetList  { return f.all(resolve.Query{Kind: resolve.KindString}) }
func (f *FileTarget) FindImports() TargetList  { return f.all(resolve.Query{Kind: resolve.KindImport}) }

func (f *FileTarget) Line(n int) Target {
	return f.Lines(n, n)
}

func (f *FileTarget) Lines(start, end int) Target {
	tree, err := f.tree()
	if err != nil {
		return f.errorTarget(err)
	}
	if start < 1 || end < start || !tree.HasLine(end) {
		span := fmt.Sprintf("lines %d-%d", start, end)
		if start == end {
			span = fmt.Sprintf("line %d", start)
		}
		return newErrorTarget(f.path, fmt.Sprintf("%s out of range in %s (%d lines)", span, f.s.display(f.path), tree.LineCount()), core.ErrNotFound)
	}
	if start == end {
		return newLineTarget(f.s, f.path, start)
	}
	return newLineBlockTarget(f.s, f.path, start, end)
}

func (f *FileTarget) BlockAtLine(n int) Target {
	tree, err := f.tree()
	if err != nil {
		return f.errorTarget(err)
	}
	m, ok := resolve.BlockAt(tree, n)
	if !ok {
		return newErrorTarget(f.path, fmt.Sprintf("no block contains line %d in %s", n, f.s.display(f.path)), core.ErrNotFound)
	}
	return newCodeBlockTarget(f.s, m)
}

// mutate runs fn over the current tree and hands the result to the session.
func (f *FileTarget) mutate(op, phrase string, fn func(*base.SourceTree) (*base.SourceTree, error)) core.Result {
	tree, err := f.tree()
	if err != nil {
		return f.s.fail(op, f.label, err)
	}
	next, err := fn(tree)
	if err != nil {
		return f.s.fail(op, f.label, err)
	}
	return f.s.apply(op, f.label, phrase, tree, next)
}

func (f *FileTarget) AddImport(statement string) core.Result {
	stmt := strings.TrimSpace(statement)
	return f.mutate("add_import", fmt.Sprintf("Added '%s' to %s", stmt, f.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.AddImport(tree, statement)
	})
}

func (f *FileTarget) RemoveImport(module string, names ...string) core.Result {
	what := module
	if len(names) > 0 {
		what = fmt.Sprintf("%s (%s)", module, strings.Join(names, ", "))
	}
	return f.mutate("remove_import", fmt.Sprintf("Removed import of %s from %s", what, f.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return transform.RemoveImport(tree, module, names...)
	})
}

func (f *FileTarget) AddClass(source string) core.Result {
	return f.addTopLevel("add_class", resolve.KindClass, source)
}

func (f *FileTarget) AddFunction(source string) core.Result {
	return f.addTopLevel("add_function", resolve.KindFunction, source)
}

// addTopLevel appends a class or def given as source. Data holds the
// Target of the new definition.
func (f *FileTarget) addTopLevel(op string, kind resolve.Kind, source string) core.Result {
	keyword := "class"
	if kind == resolve.KindFunction {
		keyword = "def"
	}
	var (
		name  string
		added *base.SourceTree
	)
	r := f.mutate(op, fmt.Sprintf("Added %s to %s", kind, f.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		if leadingKeyword(source) != keyword {
			return nil, &transform.Error{Reason: fmt.Sprintf("source must be a single %s", keyword)}
		}
		next, n, err := transform.AddTopLevel(tree, source)
		name, added = n, next
		return next, err
	})
	if !r.Success {
		return r
	}
	if m, ok := resolve.First(added, resolve.Query{Kind: kind, Name: name}); ok {
		r = r.WithData(f.s.target(m))
	}
	return r
}

// leadingKeyword returns the first word of source after decorators and
// comments, with async dropped.
func leadingKeyword(source string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "async "))
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	return ""
}

// Rewrite replaces the whole file content.
func (f *FileTarget) Rewrite(content string) core.Result {
	return f.mutate("rewrite", fmt.Sprintf("Rewrote %s", f.label), func(tree *base.SourceTree) (*base.SourceTree, error) {
		return tree.Replace(0, tree.Len(), content)
	})
}

// PackageTarget is a directory of modules.
type PackageTarget struct {
	common
}

func newPackageTarget(s *Session, dir string) *PackageTarget {
	return &PackageTarget{common: common{
		s:     s,
		kind:  KindPackage,
		path:  dir,
		name:  filepath.Base(dir),
		label: "package " + s.display(dir),
	}}
}

func (p *PackageTarget) Exists() bool {
	info, err := os.Stat(p.path)
	return err == nil && info.IsDir()
}

// Content lists the package files, one per line, relative to the root.
func (p *PackageTarget) Content() string {
	var sb strings.Builder
	for _, f := range p.files() {
		sb.WriteString(p.s.display(f) + "\n")
	}
	return sb.String()
}

func (p *PackageTarget) within(path string) bool {
	rel, err := filepath.Rel(p.path, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (p *PackageTarget) files() []string {
	var out []string
	for _, f := range p.s.Files() {
		if p.within(f) {
			out = append(out, f)
		}
	}
	return out
}

func (p *PackageTarget) InitFile() Target {
	path := filepath.Join(p.path, "__init__.py")
	if !p.s.exists(path) {
		return newErrorTarget(path, fmt.Sprintf("%s has no __init__.py", p.label), core.ErrNotFound)
	}
	return newFileTarget(p.s, path, "")
}

// FindModule resolves a dotted name relative to the package.
func (p *PackageTarget) FindModule(name string) Target {
	parts := strings.Split(strings.TrimSuffix(name, ".py"), ".")
	for _, part := range parts {
		if !python.IsIdentifier(part) {
			return newErrorTarget(p.path, fmt.Sprintf("'%s' is not a valid module name", name), core.ErrInvalidIdentifier)
		}
	}
	rel := filepath.Join(parts...)
	for _, candidate := range []string{rel + ".py", filepath.Join(rel, "__init__.py")} {
		if path := filepath.Join(p.path, candidate); p.s.exists(path) {
			return newFileTarget(p.s, path, strings.Join(parts, "."))
		}
	}
	return newErrorTarget(p.path, fmt.Sprintf("module '%s' not found in %s", name, p.label), core.ErrNotFound)
}

func (p *PackageTarget) FindClass(name string) Target {
	return p.s.findFirst(resolve.KindClass, name, p.within)
}

func (p *PackageTarget) FindFunction(name string) Target {
	return p.s.findFirst(resolve.KindFunction, name, p.within)
}

func (p *PackageTarget) FindClasses(pattern string) TargetList {
	return p.s.findAll(resolve.KindClass, pattern, p.within)
}

func (p *PackageTarget) FindFunctions(pattern string) TargetList {
	return p.s.findAll(resolve.KindFunction, pattern, p.within)
}

// CreateModule adds name.py to the package. Inside a transaction the new
// file is a pending change until commit.
func (p *PackageTarget) CreateModule(name, content string) core.Result {
	const op = "create_module"
	name = strings.TrimSuffix(name, ".py")
	if !python.IsIdentifier(name) {
		err := &transform.Error{Reason: fmt.Sprintf("'%s' is not a valid module name", name), Err: core.ErrInvalidIdentifier}
		return p.s.fail(op, p.label, err)
	}
	path := filepath.Join(p.path, name+".py")
	if p.s.exists(path) {
		return p.s.fail(op, p.label, &transform.Error{Reason: fmt.Sprintf("module '%s' already exists in %s", name, p.label)})
	}
	tree, err := p.s.provider.Parse(path, []byte(content))
	if err != nil {
		return p.s.fail(op, p.label, err)
	}
	return p.s.write(op, p.label, fmt.Sprintf("Created module %s", p.s.display(path)), path, nil, false, tree)
}
