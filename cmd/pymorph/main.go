// Command pymorph runs refactorings over a Python codebase.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/pymorph/db"
	"github.com/oxhq/pymorph/internal/config"
	"github.com/oxhq/pymorph/internal/logging"
	"github.com/oxhq/pymorph/refactor"
)

const version = "0.3.0"

func main() {
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what the commands share once flags are parsed.
type app struct {
	out    io.Writer
	errOut io.Writer

	cfg      *config.Config
	log      *slog.Logger
	session  *refactor.Session
	audit    *db.AuditLog
	showDiff bool
	asJSON   bool
}

// execute runs one command line. The audit log is closed even when the
// command fails.
func execute(args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if cerr := a.close(); cerr != nil {
		return errors.Join(err, cerr)
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	out, errOut := a.out, a.errOut

	root := &cobra.Command{
		Use:           "pymorph",
		Short:         "Structured refactoring for Python codebases",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.String("root", ".", "Directory, file or glob to operate on.")
	pf.Bool("dry-run", false, "Show what would change without writing files.")
	pf.StringSlice("include", nil, "Include patterns (doublestar globs).")
	pf.StringSlice("exclude", nil, "Exclude patterns (doublestar globs).")
	pf.Bool("no-gitignore", false, "Disable .gitignore filtering.")
	pf.Int("diff-context", 3, "Lines of context in diffs.")
	pf.String("audit-db", "", "Audit database DSN (sqlite path, sqlite+pure:path or libsql:// URL).")
	pf.BoolVarP(&a.showDiff, "diff", "D", false, "Print the combined diff of the changes.")
	pf.BoolVarP(&a.asJSON, "json", "j", false, "Print results as JSON.")
	pf.BoolP("verbose", "v", false, "Enable debug logging.")

	root.AddCommand(
		a.listCmd("classes", "List classes, optionally filtered by a name pattern", refactorFindClasses),
		a.listCmd("functions", "List module-level functions, optionally filtered by a name pattern", refactorFindFunctions),
		a.searchCmd(),
		a.renameCmd(),
		a.decorateCmd("decorate", "Add a decorator to classes, functions or methods"),
		a.decorateCmd("undecorate", "Remove a decorator from classes, functions or methods"),
		a.deleteCmd(),
		a.addImportCmd(),
		a.historyCmd(),
	)
	return root
}

// setup loads configuration, applies the flags the user set and opens the
// session and, when configured, the audit log.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Load()
	cfg.ApplyFlags(cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: a.errOut})

	opts := []refactor.Option{refactor.WithConfig(cfg), refactor.WithLogger(a.log)}
	if cfg.AuditDSN != "" {
		audit, err := db.OpenAuditLog(cfg.AuditDSN, cfg.LogLevel == "debug")
		if err != nil {
			return err
		}
		a.audit = audit
		opts = append(opts, refactor.WithRecorder(audit))
	}

	s, err := refactor.Open(cfg.Root, opts...)
	if err != nil {
		return err
	}
	a.session = s
	a.log.Debug("session opened", "root", s.Root(), "dry_run", s.DryRun())
	return nil
}

func (a *app) close() error {
	if a.audit == nil {
		return nil
	}
	err := a.audit.Close()
	a.audit = nil
	return err
}
