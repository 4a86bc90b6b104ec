package refactor

import (
	"errors"
	"path/filepath"

	"github.com/oxhq/pymorph/core"
)

// TargetList is an ordered collection of targets with batch operations.
// A batch runs every element independently; one failure never stops the
// rest.
type TargetList struct {
	targets []Target
	err     error
}

// NewTargetList builds a list. Error targets are dropped.
func NewTargetList(targets ...Target) TargetList {
	var out []Target
	for _, t := range targets {
		if t != nil && t.Kind() != KindError {
			out = append(out, t)
		}
	}
	return TargetList{targets: out}
}

func (l TargetList) Len() int { return len(l.targets) }

// Err reports why the list could not be built, such as an invalid pattern.
// An empty list from a query that matched nothing has no error.
func (l TargetList) Err() error { return l.err }

// All returns a copy of the targets.
func (l TargetList) All() []Target {
	return append([]Target(nil), l.targets...)
}

// At returns the i-th target, or an ErrorTarget when i is out of range.
func (l TargetList) At(i int) Target {
	if i < 0 || i >= len(l.targets) {
		return l.missing("index out of range")
	}
	return l.targets[i]
}

func (l TargetList) First() Target {
	if len(l.targets) == 0 {
		return l.missing("empty target list")
	}
	return l.targets[0]
}

func (l TargetList) Last() Target {
	if len(l.targets) == 0 {
		return l.missing("empty target list")
	}
	return l.targets[len(l.targets)-1]
}

func (l TargetList) missing(reason string) Target {
	if l.err != nil {
		return newErrorTarget("", l.err.Error(), l.err)
	}
	return newErrorTarget("", reason, core.ErrNotFound)
}

// Filter keeps the targets for which keep returns true.
func (l TargetList) Filter(keep func(Target) bool) TargetList {
	out := TargetList{err: l.err}
	for _, t := range l.targets {
		if keep(t) {
			out.targets = append(out.targets, t)
		}
	}
	return out
}

// InFile keeps the targets in path.
func (l TargetList) InFile(path string) TargetList {
	want, _ := filepath.Abs(path)
	return l.Filter(func(t Target) bool { return t.Path() == want || t.Path() == path })
}

// Matching keeps the targets whose name matches pattern.
func (l TargetList) Matching(pattern string) TargetList {
	re, err := compile(pattern)
	if err != nil {
		return TargetList{err: errors.Join(l.err, err)}
	}
	return l.Filter(func(t Target) bool { return re.MatchString(t.Name()) })
}

// Existing keeps the targets that still resolve.
func (l TargetList) Existing() TargetList {
	return l.Filter(Target.Exists)
}

// Names returns the target names in order.
func (l TargetList) Names() []string {
	out := make([]string, len(l.targets))
	for i, t := range l.targets {
		out[i] = t.Name()
	}
	return out
}

// Each applies fn to every target and folds the results.
func (l TargetList) Each(fn func(Target) core.Result) core.BatchResult {
	var batch core.BatchResult
	for _, t := range l.targets {
		batch.Add(fn(t))
	}
	return batch
}

func (l TargetList) AddDecorator(decorator string) core.BatchResult {
	return l.Each(func(t Target) core.Result { return t.AddDecorator(decorator) })
}

func (l TargetList) RemoveDecorator(decorator string) core.BatchResult {
	return l.Each(func(t Target) core.Result { return t.RemoveDecorator(decorator) })
}

func (l TargetList) InsertStatement(statement string, pos Position) core.BatchResult {
	return l.Each(func(t Target) core.Result { return t.InsertStatement(statement, pos) })
}

func (l TargetList) AddBase(baseClass string) core.BatchResult {
	return l.Each(func(t Target) core.Result { return t.AddBase(baseClass) })
}

func (l TargetList) Delete() core.BatchResult {
	return l.Each(Target.Delete)
}

// Rename renames every target to the name fn returns for it.
func (l TargetList) Rename(fn func(Target) string) core.BatchResult {
	return l.Each(func(t Target) core.Result { return t.Rename(fn(t)) })
}
