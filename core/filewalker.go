package core

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultInclude selects Python sources.
var DefaultInclude = []string{"**/*.py"}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	".tox":          {},
	".nox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"build":         {},
	"dist":          {},
}

// FileWalker resolves a FileScope into an ordered list of candidate files.
// It is the file-discovery collaborator; the resolver only ever sees the
// list it returns.
type FileWalker struct{}

// NewFileWalker creates a new file walker
func NewFileWalker() *FileWalker {
	return &FileWalker{}
}

// IsGlob reports whether root should be expanded as a glob pattern.
func IsGlob(root string) bool {
	return strings.ContainsAny(root, "*?[{")
}

// Discover returns the files selected by scope, sorted by path.
//
// scope.Path may name a single file (returned as is, no filters), a
// directory (walked recursively), or a doublestar glob.
func (fw *FileWalker) Discover(ctx context.Context, scope FileScope) ([]string, error) {
	if scope.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	include := scope.Include
	if len(include) == 0 {
		include = DefaultInclude
	}

	if IsGlob(scope.Path) {
		return fw.expandGlob(ctx, scope, include)
	}

	info, err := os.Stat(scope.Path)
	if err != nil {
		return nil, fmt.Errorf("cannot access path %s: %w", scope.Path, err)
	}
	if !info.IsDir() {
		return []string{filepath.Clean(scope.Path)}, nil
	}

	var gi *ignore.GitIgnore
	if scope.UseGitignore {
		gi = loadGitignore(scope.Path)
	}

	var files []string
	root := filepath.Clean(scope.Path)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[d.Name()]; skip || strings.HasSuffix(d.Name(), ".egg-info") {
				return filepath.SkipDir
			}
			if scope.MaxDepth > 0 && strings.Count(rel, "/")+1 > scope.MaxDepth {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			if fw.isExcluded(rel, scope.Exclude) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 && !scope.FollowSymlinks {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if fw.isExcluded(rel, scope.Exclude) || !fw.isIncluded(rel, include) {
			return nil
		}
		if scope.MaxFileBytes > 0 {
			if info, err := d.Info(); err == nil && info.Size() > scope.MaxFileBytes {
				return nil
			}
		}

		files = append(files, path)
		if scope.MaxFiles > 0 && len(files) >= scope.MaxFiles {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// expandGlob applies the walk filters to glob matches, relative to the
// directory the pattern starts from.
func (fw *FileWalker) expandGlob(ctx context.Context, scope FileScope, include []string) ([]string, error) {
	pattern := filepath.ToSlash(scope.Path)
	matches, err := doublestar.FilepathGlob(scope.Path, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", scope.Path, err)
	}
	base, _ := doublestar.SplitPattern(pattern)
	root := filepath.FromSlash(base)

	var gi *ignore.GitIgnore
	if scope.UseGitignore {
		gi = loadGitignore(root)
	}

	var files []string
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(root, m)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if skippedDir(rel) || ignored(gi, rel) {
			continue
		}
		if fw.isExcluded(rel, scope.Exclude) || fw.isExcluded(filepath.ToSlash(m), scope.Exclude) || !fw.isIncluded(rel, include) {
			continue
		}
		files = append(files, m)
		if scope.MaxFiles > 0 && len(files) >= scope.MaxFiles {
			break
		}
	}
	sort.Strings(files)
	return files, nil
}

// skippedDir reports whether a directory on the slash-separated path rel
// is one the walk never enters.
func skippedDir(rel string) bool {
	dirs := strings.Split(rel, "/")
	for _, d := range dirs[:len(dirs)-1] {
		if _, skip := skipDirs[d]; skip || strings.HasSuffix(d, ".egg-info") {
			return true
		}
	}
	return false
}

// ignored checks rel and each of its parent directories against gi.
func ignored(gi *ignore.GitIgnore, rel string) bool {
	if gi == nil {
		return false
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && gi.MatchesPath(rel[:i+1]) {
			return true
		}
	}
	return gi.MatchesPath(rel)
}

// isIncluded checks if file matches include patterns
func (fw *FileWalker) isIncluded(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if fw.matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

// isExcluded checks if file matches exclude patterns
func (fw *FileWalker) isExcluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if fw.matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches slash-separated paths with ** support; patterns
// without a separator also match the base name.
func (fw *FileWalker) matchPattern(path, pattern string) bool {
	if matched, err := doublestar.Match(pattern, path); err == nil && matched {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if matched, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
