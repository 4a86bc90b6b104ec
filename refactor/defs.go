package refactor

import (
	"fmt"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/resolve"
	"github.com/oxhq/pymorph/internal/transform"
	"github.com/oxhq/pymorph/providers/base"
)

// defTarget is the shared part of classes, functions and methods. It holds
// an anchor, never a node, and looks the definition up again on every
// call. Once the definition is deleted or renamed, through this target or
// any other, the target no longer exists.
type defTarget struct {
	common
	at anchor
}

func newDefTarget(s *Session, kind Kind, m resolve.Match) defTarget {
	return defTarget{
		common: common{
			s:     s,
			kind:  kind,
			path:  m.Path,
			name:  m.Ref.Name,
			label: fmt.Sprintf("%s '%s' in %s", m.Ref.Kind, m.Ref.Qualified(), s.display(m.Path)),
		},
		at: newAnchor(m),
	}
}

// Ref returns the identity the target last resolved to.
func (d *defTarget) Ref() resolve.Ref { return d.at.ref }

func (d *defTarget) resolve() (*base.SourceTree, resolve.Match, error) {
	return d.s.locate(d.path, &d.at, d.label)
}

func (d *defTarget) Exists() bool {
	_, _, err := d.resolve()
	return err == nil
}

// Content returns the definition source, decorators included.
func (d *defTarget) Content() string {
	tree, m, err := d.resolve()
	if err != nil {
		return ""
	}
	return tree.Text(m.Outer)
}

// Decorators lists the callables of the current decorators.
func (d *defTarget) Decorators() []string {
	_, m, err := d.resolve()
	if err != nil {
		return nil
	}
	return m.Decorators
}

// StartLine returns the first line of the definition, or 0 when it no
// longer exists.
func (d *defTarget) StartLine() int {
	_, m, err := d.resolve()
	if err != nil {
		return 0
	}
	return m.StartLine
}

// mutate resolves the definition, runs fn over it and hands the new tree
// to the session.
func (d *defTarget) mutate(op, phrase string, fn func(*base.SourceTree, *resolve.Match) (*base.SourceTree, error)) core.Result {
	tree, m, err := d.resolve()
	if err != nil {
		return d.s.fail(op, d.label, err)
	}
	next, err := fn(tree, &m)
	if err != nil {
		return d.s.fail(op, d.label, err)
	}
	return d.s.apply(op, d.label, phrase, tree, next)
}

// Rename renames the definition binding only. On success Data holds a
// Target for the renamed definition; this target no longer exists.
func (d *defTarget) Rename(newName string) core.Result {
	var (
		start   uint32
		renamed *base.SourceTree
	)
	r := d.mutate("rename", fmt.Sprintf("Renamed %s to '%s'", d.label, newName), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		start = m.Node.StartByte()
		next, err := transform.RenameDef(tree, m.Node, newName)
		renamed = next
		return next, err
	})
	if !r.Success {
		return r
	}
	for _, m := range resolve.Collect(renamed) {
		if m.Ref.Kind == d.at.ref.Kind && m.Node.StartByte() == start {
			return r.WithData(d.s.target(m))
		}
	}
	return r
}

func (d *defTarget) Delete() core.Result {
	return d.mutate("delete", fmt.Sprintf("Deleted %s", d.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.DeleteDef(tree, m.Node)
	})
}

func (d *defTarget) AddDecorator(decorator string) core.Result {
	return d.mutate("add_decorator", fmt.Sprintf("Added decorator '%s' to %s", decorator, d.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.AddDecorator(tree, m.Node, decorator)
	})
}

func (d *defTarget) RemoveDecorator(decorator string) core.Result {
	return d.mutate("remove_decorator", fmt.Sprintf("Removed decorator '%s' from %s", decorator, d.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.RemoveDecorator(tree, m.Node, decorator)
	})
}

func (d *defTarget) InsertStatement(statement string, pos Position) core.Result {
	return d.mutate("insert_statement", fmt.Sprintf("Inserted statement at %s of %s", pos, d.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.InsertStatement(tree, m.Node, statement, pos)
	})
}

// ToLineBlock returns the lines the definition spans, decorators included.
func (d *defTarget) ToLineBlock() Target {
	_, m, err := d.resolve()
	if err != nil {
		return d.errorTarget(err)
	}
	return newLineBlockTarget(d.s, d.path, m.StartLine, m.EndLine)
}

// ClassTarget is a class definition.
type ClassTarget struct {
	defTarget
}

func newClassTarget(s *Session, m resolve.Match) *ClassTarget {
	return &ClassTarget{defTarget: newDefTarget(s, KindClass, m)}
}

// Bases returns the current base class list.
func (c *ClassTarget) Bases() []string {
	tree, m, err := c.resolve()
	if err != nil {
		return nil
	}
	return transform.Bases(tree, m.Node)
}

// methodQuery selects direct methods of the resolved class m.
func (c *ClassTarget) methodQuery(m resolve.Match) resolve.Query {
	scope := m.Ref
	return resolve.Query{
		Kind:  resolve.KindMethod,
		Scope: &scope,
		Predicate: func(x resolve.Match) bool {
			return x.StartByte >= m.StartByte && x.EndByte <= m.EndByte
		},
	}
}

func (c *ClassTarget) FindMethod(name string) Target {
	tree, m, err := c.resolve()
	if err != nil {
		return c.errorTarget(err)
	}
	q := c.methodQuery(m)
	q.Name = name
	found, ok := resolve.First(tree, q)
	if !ok {
		return newErrorTarget(c.path, fmt.Sprintf("method '%s' not found in %s", name, c.label), core.ErrNotFound)
	}
	return newMethodTarget(c.s, found)
}

func (c *ClassTarget) FindMethods(pattern string) TargetList {
	tree, m, err := c.resolve()
	if err != nil {
		return TargetList{err: err}
	}
	q := c.methodQuery(m)
	if pattern != "" {
		re, err := compile(pattern)
		if err != nil {
			return TargetList{err: err}
		}
		q.Pattern = re
	}
	var out []Target
	for _, found := range resolve.Find(tree, q) {
		out = append(out, newMethodTarget(c.s, found))
	}
	return NewTargetList(out...)
}

func (c *ClassTarget) AddMethod(source string) core.Result {
	return c.mutate("add_method", fmt.Sprintf("Added method to %s", c.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.AddMethod(tree, m.Node, source)
	})
}

func (c *ClassTarget) AddAttribute(name, typ, value string) core.Result {
	return c.mutate("add_attribute", fmt.Sprintf("Added attribute '%s' to %s", name, c.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.AddAttribute(tree, m.Node, name, typ, value)
	})
}

func (c *ClassTarget) RemoveAttribute(name string) core.Result {
	return c.mutate("remove_attribute", fmt.Sprintf("Removed attribute '%s' from %s", name, c.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.RemoveAttribute(tree, m.Node, name)
	})
}

func (c *ClassTarget) AddBase(baseClass string) core.Result {
	return c.mutate("add_base", fmt.Sprintf("Added base '%s' to %s", baseClass, c.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.AddBase(tree, m.Node, baseClass)
	})
}

func (c *ClassTarget) RemoveBase(baseClass string) core.Result {
	return c.mutate("remove_base", fmt.Sprintf("Removed base '%s' from %s", baseClass, c.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.RemoveBase(tree, m.Node, baseClass)
	})
}

// FunctionTarget is a def outside any class body.
type FunctionTarget struct {
	defTarget
}

func newFunctionTarget(s *Session, m resolve.Match) *FunctionTarget {
	return &FunctionTarget{defTarget: newDefTarget(s, KindFunction, m)}
}

func (f *FunctionTarget) AddParameter(p Param) core.Result {
	return f.mutate("add_parameter", fmt.Sprintf("Added parameter '%s' to %s", p.Name, f.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.AddParameter(tree, m.Node, p)
	})
}

func (f *FunctionTarget) RemoveParameter(name string) core.Result {
	return f.mutate("remove_parameter", fmt.Sprintf("Removed parameter '%s' from %s", name, f.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.RemoveParameter(tree, m.Node, name)
	})
}

func (f *FunctionTarget) RenameParameter(old, newName string) core.Result {
	return f.mutate("rename_parameter", fmt.Sprintf("Renamed parameter '%s' to '%s' in %s", old, newName, f.label), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.RenameParameter(tree, m.Node, old, newName)
	})
}

func (f *FunctionTarget) SetReturnType(typ string) core.Result {
	return f.mutate("set_return_type", fmt.Sprintf("Set return type of %s to '%s'", f.label, typ), func(tree *base.SourceTree, m *resolve.Match) (*base.SourceTree, error) {
		return transform.SetReturnType(tree, m.Node, typ)
	})
}

// MethodTarget is a def directly inside a class body.
type MethodTarget struct {
	FunctionTarget
}

func newMethodTarget(s *Session, m resolve.Match) *MethodTarget {
	return &MethodTarget{FunctionTarget: FunctionTarget{defTarget: newDefTarget(s, KindMethod, m)}}
}

// Class returns the dotted name of the enclosing class.
func (m *MethodTarget) Class() string { return m.at.ref.Scope }

// ReplaceIdentifier rewrites every reference to old in the method body.
// Data holds the number of references replaced.
func (m *MethodTarget) ReplaceIdentifier(old, replacement string) core.Result {
	var count int
	r := m.mutate("replace_identifier", fmt.Sprintf("Replaced '%s' with '%s' in %s", old, replacement, m.label), func(tree *base.SourceTree, match *resolve.Match) (*base.SourceTree, error) {
		next, n, err := transform.ReplaceIdentifier(tree, match.Node, old, replacement)
		count = n
		return next, err
	})
	if r.Success {
		r = r.WithData(count)
	}
	return r
}
