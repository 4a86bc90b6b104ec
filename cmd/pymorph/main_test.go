package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oxhq/pymorph/core"
)

const fooPy = "class Foo:\n    def run(self):\n        pass\n\n\nclass Bar:\n    pass\n\n\ndef helper():\n    return 1\n"

func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.py"), []byte(fooPy), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := execute(args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func content(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestRootCommand(t *testing.T) {
	a := &app{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	cmd := a.rootCmd()

	if cmd.Use != "pymorph" {
		t.Errorf("Expected Use='pymorph', got '%s'", cmd.Use)
	}
	if cmd.Version != version {
		t.Errorf("Expected Version='%s', got '%s'", version, cmd.Version)
	}

	want := []string{"classes", "functions", "search", "rename", "decorate", "undecorate", "delete", "add-import", "history"}
	for _, name := range want {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	for _, flag := range []string{"root", "dry-run", "include", "exclude", "no-gitignore", "diff-context", "audit-db", "diff", "json", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

func TestClassesCommand(t *testing.T) {
	dir := projectDir(t)

	out, _, err := run(t, "classes", "--root", dir)
	if err != nil {
		t.Fatalf("classes failed: %v", err)
	}
	if !strings.Contains(out, "Foo\tfoo.py:1") {
		t.Errorf("expected Foo listed at foo.py:1, got:\n%s", out)
	}
	if !strings.Contains(out, "Bar\tfoo.py:6") {
		t.Errorf("expected Bar listed at foo.py:6, got:\n%s", out)
	}

	out, _, err = run(t, "classes", "^B", "--root", dir)
	if err != nil {
		t.Fatalf("classes with pattern failed: %v", err)
	}
	if strings.Contains(out, "Foo") || !strings.Contains(out, "Bar") {
		t.Errorf("pattern ^B should list only Bar, got:\n%s", out)
	}

	_, _, err = run(t, "classes", "[", "--root", dir)
	if core.CodeOf(err) != core.ECInvalidRegex {
		t.Errorf("expected %s, got %v", core.ECInvalidRegex, err)
	}
}

func TestFunctionsCommand_JSON(t *testing.T) {
	dir := projectDir(t)

	out, _, err := run(t, "functions", "--json", "--root", dir)
	if err != nil {
		t.Fatalf("functions failed: %v", err)
	}
	var views []targetView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(views) != 1 {
		t.Fatalf("expected one module-level function, got %d", len(views))
	}
	if views[0].Name != "helper" || views[0].Kind != "function" || views[0].Path != "foo.py" || views[0].Line != 10 {
		t.Errorf("unexpected view %+v", views[0])
	}
}

func TestSearchCommand(t *testing.T) {
	dir := projectDir(t)

	out, _, err := run(t, "search", `return \d`, "--root", dir)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if strings.TrimSpace(out) != "foo.py:11: return 1" {
		t.Errorf("unexpected search output %q", out)
	}
}

func TestRenameCommand(t *testing.T) {
	dir := projectDir(t)
	path := filepath.Join(dir, "foo.py")

	out, _, err := run(t, "rename", "class", "Foo", "Baz", "--root", dir)
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if !strings.Contains(out, "Committed 1 file(s)") {
		t.Errorf("expected commit message, got:\n%s", out)
	}
	if got := content(t, path); !strings.HasPrefix(got, "class Baz:\n") {
		t.Errorf("class not renamed:\n%s", got)
	}

	_, _, err = run(t, "rename", "method", "Baz.run", "execute", "--root", dir)
	if err != nil {
		t.Fatalf("method rename failed: %v", err)
	}
	if got := content(t, path); !strings.Contains(got, "    def execute(self):\n") {
		t.Errorf("method not renamed:\n%s", got)
	}
}

func TestRenameCommand_NestedMethod(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested.py")
	src := "class Outer:\n    class Inner:\n        def meth(self):\n            pass\n\n    def meth(self):\n        pass\n\n\nclass Inner:\n    def meth(self):\n        pass\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := run(t, "rename", "method", "Outer.Inner.meth", "inner_meth", "--root", dir); err != nil {
		t.Fatalf("nested method rename failed: %v", err)
	}
	want := "class Outer:\n    class Inner:\n        def inner_meth(self):\n            pass\n\n    def meth(self):\n        pass\n\n\nclass Inner:\n    def meth(self):\n        pass\n"
	if got := content(t, path); got != want {
		t.Errorf("only Outer.Inner.meth should be renamed:\n%s", got)
	}

	_, _, err := run(t, "rename", "method", "Missing.Inner.meth", "x", "--root", dir)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown outer class, got %v", err)
	}
}

func TestRenameCommand_Errors(t *testing.T) {
	dir := projectDir(t)

	_, _, err := run(t, "rename", "class", "Missing", "X", "--root", dir)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, _, err = run(t, "rename", "widget", "Foo", "X", "--root", dir)
	if err == nil || !strings.Contains(err.Error(), "unknown kind") {
		t.Errorf("expected unknown kind error, got %v", err)
	}

	_, _, err = run(t, "rename", "method", "run", "x", "--root", dir)
	if err == nil || !strings.Contains(err.Error(), "Class.method") {
		t.Errorf("expected Class.method error, got %v", err)
	}

	if got := content(t, filepath.Join(dir, "foo.py")); got != fooPy {
		t.Errorf("failed commands must not write:\n%s", got)
	}
}

func TestRenameCommand_DryRun(t *testing.T) {
	dir := projectDir(t)

	out, _, err := run(t, "rename", "class", "Foo", "Baz", "--dry-run", "--root", dir)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	for _, want := range []string{"-class Foo:", "+class Baz:", "[DRY RUN] Would apply 1 change(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if got := content(t, filepath.Join(dir, "foo.py")); got != fooPy {
		t.Errorf("dry run wrote the file:\n%s", got)
	}
}

func TestDecorateCommands(t *testing.T) {
	dir := projectDir(t)
	path := filepath.Join(dir, "foo.py")

	out, _, err := run(t, "decorate", "Foo.run", "cached", "--diff", "--root", dir)
	if err != nil {
		t.Fatalf("decorate failed: %v", err)
	}
	if !strings.Contains(out, "+    @cached") {
		t.Errorf("--diff should print the preview, got:\n%s", out)
	}
	if got := content(t, path); !strings.Contains(got, "    @cached\n    def run(self):\n") {
		t.Errorf("method not decorated:\n%s", got)
	}

	if _, _, err := run(t, "decorate", "helper", "staticmethod", "--root", dir); err != nil {
		t.Fatalf("decorate function failed: %v", err)
	}
	if got := content(t, path); !strings.Contains(got, "@staticmethod\ndef helper():\n") {
		t.Errorf("function not decorated:\n%s", got)
	}

	if _, _, err := run(t, "undecorate", "Foo.run", "cached", "--root", dir); err != nil {
		t.Fatalf("undecorate failed: %v", err)
	}
	if got := content(t, path); strings.Contains(got, "@cached") {
		t.Errorf("decorator not removed:\n%s", got)
	}

	before := content(t, path)
	out, _, err = run(t, "undecorate", "Bar", "missing", "--root", dir)
	if err == nil {
		t.Fatal("removing an absent decorator should fail")
	}
	if !strings.Contains(out, "✗") {
		t.Errorf("expected a failure mark, got:\n%s", out)
	}
	if got := content(t, path); got != before {
		t.Errorf("a failed batch must not write:\n%s", got)
	}
}

func TestDeleteCommand(t *testing.T) {
	dir := projectDir(t)

	if _, _, err := run(t, "delete", "function", "helper", "--root", dir); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got := content(t, filepath.Join(dir, "foo.py")); strings.Contains(got, "def helper") {
		t.Errorf("function not deleted:\n%s", got)
	}
}

func TestAddImportCommand(t *testing.T) {
	dir := projectDir(t)
	path := filepath.Join(dir, "foo.py")

	if _, _, err := run(t, "add-import", "foo.py", "import os", "--root", dir); err != nil {
		t.Fatalf("add-import failed: %v", err)
	}
	if got := content(t, path); !strings.HasPrefix(got, "import os\n") {
		t.Errorf("import not added:\n%s", got)
	}

	_, _, err := run(t, "add-import", "nope.py", "import os", "--root", dir)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing file, got %v", err)
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := projectDir(t)
	dsn := "sqlite+pure:" + filepath.Join(t.TempDir(), "audit.db")

	_, _, err := run(t, "history", "--root", dir)
	if err == nil || !strings.Contains(err.Error(), "audit database") {
		t.Errorf("expected missing audit database error, got %v", err)
	}

	if _, _, err := run(t, "rename", "class", "Foo", "Baz", "--root", dir, "--audit-db", dsn); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	out, _, err := run(t, "history", "--root", dir, "--audit-db", dsn)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"committed", "rename class Foo to Baz", "foo.py", "+1 -1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in history:\n%s", want, out)
		}
	}

	out, _, err = run(t, "history", "--json", "--root", dir, "--audit-db", dsn)
	if err != nil {
		t.Fatalf("history --json failed: %v", err)
	}
	var views []historyView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(views) != 1 || len(views[0].Changes) != 1 {
		t.Fatalf("expected one transaction with one change, got %+v", views)
	}
	if views[0].Added != 1 || views[0].Removed != 1 {
		t.Errorf("unexpected stats %+v", views[0])
	}
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := run(t, "classes", "--root", "")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("expected invalid configuration error, got %v", err)
	}
}
