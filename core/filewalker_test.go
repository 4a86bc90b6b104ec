package core

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestFileWalker_Discover(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.py":                        "",
		"b.txt":                       "",
		"pkg/__init__.py":             "",
		"pkg/mod.py":                  "",
		"pkg/__pycache__/mod.py":      "",
		".venv/lib/site.py":           "",
		"node_modules/x.py":           "",
		"tool.egg-info/setup.py":      "",
		"generated/out.py":            "",
		"tests/test_mod.py":           "",
		"tests/fixtures/big_input.py": "",
		".gitignore":                  "generated/\n",
	})

	tests := []struct {
		name  string
		scope FileScope
		want  []string
	}{
		{
			name:  "defaults",
			scope: FileScope{Path: root},
			want:  []string{"a.py", "generated/out.py", "pkg/__init__.py", "pkg/mod.py", "tests/fixtures/big_input.py", "tests/test_mod.py"},
		},
		{
			name:  "gitignore",
			scope: FileScope{Path: root, UseGitignore: true},
			want:  []string{"a.py", "pkg/__init__.py", "pkg/mod.py", "tests/fixtures/big_input.py", "tests/test_mod.py"},
		},
		{
			name:  "exclude directory",
			scope: FileScope{Path: root, UseGitignore: true, Exclude: []string{"tests"}},
			want:  []string{"a.py", "pkg/__init__.py", "pkg/mod.py"},
		},
		{
			name:  "exclude base name",
			scope: FileScope{Path: root, UseGitignore: true, Exclude: []string{"__init__.py"}},
			want:  []string{"a.py", "pkg/mod.py", "tests/fixtures/big_input.py", "tests/test_mod.py"},
		},
		{
			name:  "include",
			scope: FileScope{Path: root, Include: []string{"tests/**/*.py"}},
			want:  []string{"tests/fixtures/big_input.py", "tests/test_mod.py"},
		},
		{
			name:  "max depth",
			scope: FileScope{Path: root, UseGitignore: true, MaxDepth: 1},
			want:  []string{"a.py", "pkg/__init__.py", "pkg/mod.py", "tests/test_mod.py"},
		},
		{
			name:  "max files",
			scope: FileScope{Path: root, MaxFiles: 2},
			want:  []string{"a.py", "generated/out.py"},
		},
	}

	walker := NewFileWalker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := walker.Discover(context.Background(), tt.scope)
			if err != nil {
				t.Fatalf("Discover failed: %v", err)
			}
			if got := relAll(t, root, files); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFileWalker_MaxFileBytes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"small.py": "x = 1\n",
		"large.py": "x = '" + string(make([]byte, 64)) + "'\n",
	})

	files, err := NewFileWalker().Discover(context.Background(), FileScope{Path: root, MaxFileBytes: 16})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if got := relAll(t, root, files); !reflect.DeepEqual(got, []string{"small.py"}) {
		t.Errorf("Expected only small.py, got %v", got)
	}
}

func TestFileWalker_SingleFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"notes.txt": ""})
	path := filepath.Join(root, "notes.txt")

	files, err := NewFileWalker().Discover(context.Background(), FileScope{Path: path, Exclude: []string{"*.txt"}})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Errorf("a single file is returned unfiltered, got %v", files)
	}
}

func TestFileWalker_Glob(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"app/models.py":       "",
		"app/views.py":        "",
		"app/sub/helpers.py":  "",
		"app/sub/helpers.pyi": "",
	})

	if !IsGlob(filepath.Join(root, "app", "**", "*.py")) || IsGlob(root) {
		t.Fatal("IsGlob misclassified a path")
	}

	files, err := NewFileWalker().Discover(context.Background(), FileScope{
		Path:    filepath.ToSlash(root) + "/app/**/*.py",
		Exclude: []string{"views.py"},
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []string{"app/models.py", "app/sub/helpers.py"}
	if got := relAll(t, root, files); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	writeFiles(t, root, map[string]string{
		"app/.gitignore":        "gen/\n",
		"app/.venv/lib/x.py":    "",
		"app/pkg.egg-info/a.py": "",
		"app/gen/out.py":        "",
		"app/notes.txt":         "",
	})
	files, err = NewFileWalker().Discover(context.Background(), FileScope{
		Path:         filepath.ToSlash(root) + "/app/**",
		UseGitignore: true,
	})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want = []string{"app/models.py", "app/sub/helpers.py", "app/views.py"}
	if got := relAll(t, root, files); !reflect.DeepEqual(got, want) {
		t.Errorf("glob should apply the walk filters: expected %v, got %v", want, got)
	}
}

func TestFileWalker_Errors(t *testing.T) {
	walker := NewFileWalker()

	if _, err := walker.Discover(context.Background(), FileScope{}); err == nil {
		t.Error("empty path should fail")
	}
	if _, err := walker.Discover(context.Background(), FileScope{Path: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("missing path should fail")
	}

	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.py": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := walker.Discover(ctx, FileScope{Path: root}); err == nil {
		t.Error("cancelled context should stop the walk")
	}
}
