package main

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/refactor"
)

func refactorFindClasses(s *refactor.Session, pattern string) refactor.TargetList {
	return s.FindClasses(pattern)
}

func refactorFindFunctions(s *refactor.Session, pattern string) refactor.TargetList {
	return s.FindFunctions(pattern)
}

func (a *app) listCmd(use, short string, find func(*refactor.Session, string) refactor.TargetList) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [pattern]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			list := find(a.session, pattern)
			if err := list.Err(); err != nil {
				return err
			}
			return a.printTargets(list)
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <regex>",
		Short: "Find lines matching a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			list := a.session.Search(args[0])
			if err := list.Err(); err != nil {
				return err
			}
			return a.printTargets(list)
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <class|function|method> <name> <new-name>",
		Short: "Rename a definition (methods are given as Class.method)",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			kind, name, newName := args[0], args[1], args[2]
			targets, err := a.definitions(kind, name)
			if err != nil {
				return err
			}
			return a.mutate(fmt.Sprintf("rename %s %s to %s", kind, name, newName), func() core.BatchResult {
				return targets.Rename(func(refactor.Target) string { return newName })
			})
		},
	}
}

func (a *app) decorateCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name> <decorator>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name, decorator := args[0], args[1]
			targets, err := a.definitions("", name)
			if err != nil {
				return err
			}
			return a.mutate(fmt.Sprintf("%s %s with %s", use, name, decorator), func() core.BatchResult {
				if use == "undecorate" {
					return targets.RemoveDecorator(decorator)
				}
				return targets.AddDecorator(decorator)
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <class|function|method> <name>",
		Short: "Delete a definition",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			targets, err := a.definitions(args[0], args[1])
			if err != nil {
				return err
			}
			return a.mutate(fmt.Sprintf("delete %s %s", args[0], args[1]), targets.Delete)
		},
	}
}

func (a *app) addImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-import <file> <statement>",
		Short: "Add an import statement to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			file, stmt := args[0], args[1]
			target := a.session.File(file)
			if !target.Exists() {
				return fmt.Errorf("%w: %s", core.ErrNotFound, file)
			}
			targets := refactor.NewTargetList(target)
			return a.mutate(fmt.Sprintf("add %q to %s", stmt, file), func() core.BatchResult {
				return targets.Each(func(t refactor.Target) core.Result { return t.AddImport(stmt) })
			})
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently committed changes from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.audit == nil {
				return errors.New("history needs an audit database (--audit-db or PYMORPH_AUDIT_DSN)")
			}
			rows, err := a.audit.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printHistory(rows)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show.")
	return cmd
}

// definitions resolves name to the definitions of kind. An empty kind
// accepts classes and functions, or methods when name is Class.method.
// Nested classes are given by their dotted path, as in Outer.Inner.method.
func (a *app) definitions(kind, name string) (refactor.TargetList, error) {
	s := a.session
	if kind == "" {
		kind = "any"
		if strings.Contains(name, ".") {
			kind = "method"
		}
	}

	var list refactor.TargetList
	switch kind {
	case "class":
		list = s.FindClasses(exact(name))
	case "function":
		list = s.FindFunctions(exact(name))
	case "any":
		list = refactor.NewTargetList(append(s.FindClasses(exact(name)).All(), s.FindFunctions(exact(name)).All()...)...)
	case "method":
		class, method, ok := cutLast(name, ".")
		if !ok {
			return list, fmt.Errorf("method must be given as Class.method, got %q", name)
		}
		_, bare, _ := cutLast(class, ".")
		if bare == "" {
			bare = class
		}
		var methods []refactor.Target
		for _, c := range s.FindClasses(exact(bare)).All() {
			if nestedIn(c, class) {
				methods = append(methods, c.FindMethod(method))
			}
		}
		list = refactor.NewTargetList(methods...)
	default:
		return list, fmt.Errorf("unknown kind %q (want class, function or method)", kind)
	}

	if err := list.Err(); err != nil {
		return list, err
	}
	if list.Len() == 0 {
		return list, fmt.Errorf("%w: no %s named %q under %s", core.ErrNotFound, kind, name, s.Root())
	}
	return list, nil
}

// mutate runs one batch inside a transaction and commits whatever
// succeeded. Any failed element makes the command fail.
func (a *app) mutate(description string, run func() core.BatchResult) error {
	s := a.session
	if _, err := s.Begin(description); err != nil {
		return err
	}

	batch := run()
	if batch.AllFailed() {
		if _, err := s.Rollback(); err != nil {
			return err
		}
		if err := a.printOutcome(batch, core.Preview{}, nil); err != nil {
			return err
		}
		if batch.Len() == 0 {
			return fmt.Errorf("%w: nothing to %s", core.ErrNotFound, description)
		}
		return fmt.Errorf("%s failed: %s", description, batch.Summary())
	}

	preview, err := s.Preview()
	if err != nil {
		return err
	}
	commit, err := s.Commit()
	if err != nil {
		return err
	}
	if err := a.printOutcome(batch, preview, &commit); err != nil {
		return err
	}
	if !commit.OK() {
		return commit.Err()
	}
	if !batch.Success() {
		return fmt.Errorf("%s: %s", description, batch.Summary())
	}
	return nil
}

// nestedIn reports whether the class target's qualified name is path or
// ends with it, so "Inner" and "Outer.Inner" both select Outer.Inner.
func nestedIn(t refactor.Target, path string) bool {
	c, ok := t.(*refactor.ClassTarget)
	if !ok {
		return false
	}
	q := c.Ref().Qualified()
	return q == path || strings.HasSuffix(q, "."+path)
}

func exact(name string) string {
	return "^" + regexp.QuoteMeta(name) + "$"
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
