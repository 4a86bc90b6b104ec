// Package refactor is the entry point for programmatic refactoring of a
// Python codebase. A Session owns the parsed trees of one root and hands
// out Targets: chainable handles over files, classes, functions, lines and
// smaller elements. Navigation always yields a Target and mutation always
// yields a core.Result, so "not found" never has to be handled mid-chain.
//
// A Session is a single logical actor. It is not safe for concurrent use.
package refactor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/internal/config"
	"github.com/oxhq/pymorph/internal/logging"
	"github.com/oxhq/pymorph/internal/resolve"
	"github.com/oxhq/pymorph/internal/writer"
	"github.com/oxhq/pymorph/providers/base"
	"github.com/oxhq/pymorph/providers/python"
)

// Recorder receives a record of every commit and immediate write.
type Recorder interface {
	RecordCommit(ctx context.Context, rec core.CommitRecord) error
}

type options struct {
	dryRun       bool
	logger       *slog.Logger
	files        []string
	include      []string
	exclude      []string
	gitignore    bool
	maxFileBytes int64
	diffContext  int
	fsync        bool
	recorder     Recorder
}

// Option configures a Session.
type Option func(*options)

// WithDryRun makes every write, immediate or committed, a no-op report.
func WithDryRun(dryRun bool) Option {
	return func(o *options) { o.dryRun = dryRun }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFiles fixes the candidate files and skips discovery.
func WithFiles(files ...string) Option {
	return func(o *options) { o.files = append([]string(nil), files...) }
}

// WithInclude sets the doublestar include patterns used by discovery.
func WithInclude(patterns ...string) Option {
	return func(o *options) { o.include = patterns }
}

// WithExclude sets the doublestar exclude patterns used by discovery.
func WithExclude(patterns ...string) Option {
	return func(o *options) { o.exclude = patterns }
}

// WithGitignore toggles .gitignore filtering during discovery.
func WithGitignore(enabled bool) Option {
	return func(o *options) { o.gitignore = enabled }
}

// WithDiffContext sets the number of context lines in diffs.
func WithDiffContext(lines int) Option {
	return func(o *options) { o.diffContext = lines }
}

// WithFsync fsyncs staged files before they are renamed into place.
func WithFsync(enabled bool) Option {
	return func(o *options) { o.fsync = enabled }
}

// WithRecorder sets the commit audit recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithConfig applies loaded configuration. Options given after it win.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		o.dryRun = cfg.DryRun
		o.include = cfg.Include
		o.exclude = cfg.Exclude
		o.gitignore = !cfg.NoGitignore
		o.maxFileBytes = cfg.MaxFileBytes
		o.diffContext = cfg.DiffContext
		o.fsync = cfg.Fsync
	}
}

// Session owns the tree cache, the active transaction and the writer for
// one root.
type Session struct {
	root     string
	dir      string
	opts     options
	provider *base.Provider
	cache    *base.TreeCache
	tm       *core.TransactionManager
	closed   *core.Transaction // last committed or rolled back, until Begin
	writer   writer.Writer
	log      *slog.Logger

	files      []string
	discovered bool
	failures   []resolve.Failure
}

// Open creates a session over root, which may be a directory, a single file
// or a doublestar glob. Nothing is read until the first query.
func Open(root string, opts ...Option) (*Session, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root is required")
	}
	o := options{
		gitignore:    true,
		diffContext:  core.DefaultDiffContext,
		maxFileBytes: config.DefaultMaxFileBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.diffContext < 0 {
		return nil, fmt.Errorf("diff context must not be negative, got %d", o.diffContext)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	dir := abs
	if core.IsGlob(abs) {
		dir, _ = doublestar.SplitPattern(filepath.ToSlash(abs))
		dir = filepath.FromSlash(dir)
	} else if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	aw := core.NewAtomicWriter(core.AtomicWriteConfig{UseFsync: o.fsync})
	s := &Session{
		root:     abs,
		dir:      dir,
		opts:     o,
		provider: python.New(),
		cache:    base.NewTreeCache(),
		tm:       core.NewTransactionManager(aw),
		log:      o.logger,
	}
	if o.dryRun {
		s.writer = writer.NewDryRunWriter()
	} else {
		s.writer = writer.NewDiskWriter(aw)
	}
	if o.files != nil {
		for _, f := range o.files {
			s.files = append(s.files, s.abs(f))
		}
		s.discovered = true
	}
	return s, nil
}

// Root returns the absolute session root.
func (s *Session) Root() string { return s.root }

// DryRun reports whether the session writes nothing.
func (s *Session) DryRun() bool { return s.opts.dryRun }

// WriteSummary describes the immediate writes made so far.
func (s *Session) WriteSummary() string { return s.writer.Summary() }

// CacheStats reports tree cache usage.
func (s *Session) CacheStats() base.CacheStats { return s.cache.Stats() }

// abs resolves p against the session directory.
func (s *Session) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.dir, p)
}

// display returns path relative to the session directory when possible.
func (s *Session) display(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// Rel returns path the way results and diffs name it: relative to the
// session directory, slash separated.
func (s *Session) Rel(path string) string { return s.display(path) }

// Files returns the candidate files in discovery order. Files created in
// the active transaction are appended.
func (s *Session) Files() []string {
	if !s.discovered {
		s.discover()
	}
	files := append([]string(nil), s.files...)
	if tx := s.tm.Current(); tx != nil {
		for _, c := range tx.Changes() {
			if !c.Existed {
				files = append(files, c.Path)
			}
		}
	}
	return files
}

func (s *Session) discover() {
	s.discovered = true
	scope := core.FileScope{
		Path:         s.root,
		Include:      s.opts.include,
		Exclude:      s.opts.exclude,
		MaxFileBytes: s.opts.maxFileBytes,
		UseGitignore: s.opts.gitignore,
	}
	files, err := core.NewFileWalker().Discover(context.Background(), scope)
	if err != nil {
		s.log.Warn("discovery failed", "root", s.root, "error", err)
		s.failures = append(s.failures, resolve.Failure{Path: s.root, Err: err})
		return
	}
	s.files = files
	s.log.Debug("discovered files", "root", s.root, "count", len(files))
}

// ResolveFailures returns the files skipped by the most recent query.
func (s *Session) ResolveFailures() []resolve.Failure {
	return s.failures
}

// Tree returns the current tree of path: the buffered one while a
// transaction holds changes to it, otherwise the parsed file.
func (s *Session) Tree(path string) (*base.SourceTree, error) {
	path = s.abs(path)
	if tree, ok := s.cache.Get(path); ok {
		s.log.Debug("tree cache hit", "path", s.display(path))
		return tree, nil
	}
	s.log.Debug("tree cache miss", "path", s.display(path))

	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("file %s not found", s.display(path))
		}
		return nil, fmt.Errorf("reading %s: %w", s.display(path), err)
	}
	tree, err := s.provider.Parse(path, src)
	if err != nil {
		var pe *base.ParseError
		if errors.As(err, &pe) {
			pe.Path = s.display(path)
		}
		return nil, err
	}
	s.cache.Put(tree)
	return tree, nil
}

// exists reports whether path is on disk or buffered in the transaction.
func (s *Session) exists(path string) bool {
	if _, ok := s.cache.Get(path); ok {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// query runs q over every candidate file.
func (s *Session) query(q resolve.Query) []resolve.Match {
	matches, failures := resolve.Resolve(s, s.Files(), q)
	s.failures = failures
	for _, f := range failures {
		s.log.Warn("skipping file", "path", s.display(f.Path), "error", f.Err)
	}
	return matches
}

// File returns a target for path, relative to the session root unless
// absolute. No I/O happens until the target is used.
func (s *Session) File(path string) Target {
	return newFileTarget(s, s.abs(path), "")
}

// Module returns the file of a dotted module path: a/b.py or
// a/b/__init__.py under the session root.
func (s *Session) Module(dotted string) Target {
	parts := strings.Split(dotted, ".")
	for _, p := range parts {
		if !python.IsIdentifier(p) {
			return newErrorTarget("", fmt.Sprintf("'%s' is not a valid module path", dotted), core.ErrInvalidIdentifier)
		}
	}
	rel := filepath.Join(parts...)
	for _, candidate := range []string{rel + ".py", filepath.Join(rel, "__init__.py")} {
		if path := s.abs(candidate); s.exists(path) {
			return newFileTarget(s, path, dotted)
		}
	}
	return newErrorTarget("", fmt.Sprintf("module '%s' not found under %s", dotted, s.dir), core.ErrNotFound)
}

// Package returns a target for a package directory.
func (s *Session) Package(dir string) Target {
	path := s.abs(dir)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return newErrorTarget("", fmt.Sprintf("package '%s' not found", s.display(path)), core.ErrNotFound)
	}
	return newPackageTarget(s, path)
}

// FindClasses returns every class whose name matches pattern ("" for all).
func (s *Session) FindClasses(pattern string) TargetList {
	return s.findAll(resolve.KindClass, pattern, nil)
}

// FindFunctions returns every module-level function whose name matches
// pattern ("" for all).
func (s *Session) FindFunctions(pattern string) TargetList {
	return s.findAll(resolve.KindFunction, pattern, nil)
}

// FindClass returns the first class named name.
func (s *Session) FindClass(name string) Target {
	return s.findFirst(resolve.KindClass, name, nil)
}

// FindFunction returns the first module-level function named name.
func (s *Session) FindFunction(name string) Target {
	return s.findFirst(resolve.KindFunction, name, nil)
}

func (s *Session) findAll(kind resolve.Kind, pattern string, within func(string) bool) TargetList {
	q, err := patternQuery(kind, pattern)
	if err != nil {
		return TargetList{err: err}
	}
	var out []Target
	for _, m := range s.query(q) {
		if within == nil || within(m.Path) {
			out = append(out, s.target(m))
		}
	}
	return NewTargetList(out...)
}

func (s *Session) findFirst(kind resolve.Kind, name string, within func(string) bool) Target {
	for _, m := range s.query(resolve.Query{Kind: kind, Name: name}) {
		if within == nil || within(m.Path) {
			return s.target(m)
		}
	}
	return newErrorTarget("", fmt.Sprintf("%s '%s' not found under %s", kind, name, s.root), core.ErrNotFound)
}

// Search returns a line target for every line whose text matches pattern.
func (s *Session) Search(pattern string) TargetList {
	re, err := compile(pattern)
	if err != nil {
		return TargetList{err: err}
	}
	var out []Target
	s.failures = nil
	for _, path := range s.Files() {
		tree, err := s.Tree(path)
		if err != nil {
			s.failures = append(s.failures, resolve.Failure{Path: path, Err: err})
			s.log.Warn("skipping file", "path", s.display(path), "error", err)
			continue
		}
		for _, line := range resolve.SearchLines(tree, re) {
			out = append(out, newLineTarget(s, path, line))
		}
	}
	return NewTargetList(out...)
}

// AddImport adds an import statement to a file.
func (s *Session) AddImport(path, statement string) core.Result {
	return s.File(path).AddImport(statement)
}

// RemoveImport removes imports of module, or only the given names, from a
// file.
func (s *Session) RemoveImport(path, module string, names ...string) core.Result {
	return s.File(path).RemoveImport(module, names...)
}

// target wraps a match in the Target variant for its kind.
func (s *Session) target(m resolve.Match) Target {
	switch m.Ref.Kind {
	case resolve.KindClass:
		return newClassTarget(s, m)
	case resolve.KindFunction:
		return newFunctionTarget(s, m)
	case resolve.KindMethod:
		return newMethodTarget(s, m)
	case resolve.KindComment:
		return newCommentTarget(s, m)
	case resolve.KindString:
		return newStringTarget(s, m)
	case resolve.KindImport:
		return newImportTarget(s, m)
	case resolve.KindBlock:
		return newCodeBlockTarget(s, m)
	default:
		return newErrorTarget(m.Path, fmt.Sprintf("unsupported element kind %q", m.Ref.Kind), core.ErrUnsupported)
	}
}

// anchor pins a target to one element. The element is followed through
// the edits made to its file; a tree with no history back to the mark,
// such as one reloaded from disk, is searched by Ref and head line,
// first as last seen and then as first found.
type anchor struct {
	ref  resolve.Ref
	mark base.Mark
	head string

	origin     resolve.Ref
	originHead string
}

func newAnchor(m resolve.Match) anchor {
	return anchor{ref: m.Ref, mark: m.Mark, head: m.Head, origin: m.Ref, originHead: m.Head}
}

func (a *anchor) find(tree *base.SourceTree) (resolve.Match, bool) {
	switch pos, state := tree.Track(a.mark); state {
	case base.Tracked:
		m, ok := resolve.At(tree, a.ref.Kind, pos)
		return m, ok && m.Ref.Name == a.ref.Name
	case base.Untracked:
		if m, ok := resolve.Lookup(tree, a.ref); ok && m.Head == a.head {
			return m, true
		}
		if m, ok := resolve.Lookup(tree, a.origin); ok && m.Head == a.originHead {
			return m, true
		}
	}
	return resolve.Match{}, false
}

// locate re-resolves a against the current tree of path and moves it to
// where the element is now.
func (s *Session) locate(path string, a *anchor, what string) (*base.SourceTree, resolve.Match, error) {
	tree, err := s.Tree(path)
	if err != nil {
		return nil, resolve.Match{}, err
	}
	m, ok := a.find(tree)
	if !ok {
		return nil, resolve.Match{}, notFound("%s no longer exists", what)
	}
	a.moveTo(m)
	return tree, m, nil
}

func (a *anchor) moveTo(m resolve.Match) {
	a.ref, a.mark, a.head = m.Ref, m.Mark, m.Head
}
