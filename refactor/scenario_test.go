package refactor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pymorph/core"
)

func TestScenario_RenamePreservesLayout(t *testing.T) {
	dir := writeTree(t, map[string]string{"foo.py": "class Foo:\n    pass\n"})
	s := openSession(t, dir)

	r := s.FindClass("Foo").Rename("Bar")
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "class Bar:\n    pass\n", readFile(t, filepath.Join(dir, "foo.py")))
}

func TestScenario_PatternLookupAndDelete(t *testing.T) {
	dir := writeTree(t, map[string]string{"ab.py": "def a():\n    pass\n\ndef b():\n    pass\n"})
	s := openSession(t, dir)

	fns := s.FindFunctions("^a$|^b$")
	require.Equal(t, []string{"a", "b"}, fns.Names())

	r := fns.At(0).Delete()
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "def b():\n    pass\n", readFile(t, filepath.Join(dir, "ab.py")))
	assert.True(t, fns.At(1).Exists())
}

func TestScenario_BrokenChainWritesNothing(t *testing.T) {
	dir := writeTree(t, map[string]string{"x.py": "class Present:\n    pass\n"})
	s := openSession(t, dir)

	r := s.File("x.py").FindClass("Missing").FindMethod("save").Rename("z")
	assert.False(t, r.OK())
	assert.Contains(t, r.Message, "Missing")
	assert.Contains(t, r.Message, "x.py")
	assert.Empty(t, r.FilesChanged)
	assert.Equal(t, "class Present:\n    pass\n", readFile(t, filepath.Join(dir, "x.py")))
}

func TestScenario_TransactionSeesBufferedRename(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": "class A:\n    x = 1\n"})
	s := openSession(t, dir)

	r, err := s.WithTransaction("rename and extend", func(*core.Transaction) error {
		if r := s.FindClass("A").Rename("B"); !r.OK() {
			return r.Err()
		}
		return s.FindClass("B").AddMethod("def f(self):\n    return self.x\n").Err()
	})
	require.NoError(t, err)
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, "class B:\n    x = 1\n\n    def f(self):\n        return self.x\n", readFile(t, filepath.Join(dir, "a.py")))
}

func TestScenario_BatchWithStaleTargets(t *testing.T) {
	files := map[string]string{}
	for i := 1; i <= 5; i++ {
		files[fmt.Sprintf("c%d.py", i)] = fmt.Sprintf("class C%d:\n    pass\n", i)
	}
	dir := writeTree(t, files)
	s := openSession(t, dir)

	classes := s.FindClasses("")
	require.Equal(t, 5, classes.Len())
	require.True(t, classes.At(1).Delete().OK())
	require.True(t, classes.At(3).Delete().OK())

	batch := classes.AddDecorator("x")
	assert.True(t, batch.PartialSuccess())
	assert.False(t, batch.Success())
	assert.Len(t, batch.Succeeded(), 3)
	assert.Len(t, batch.Failed(), 2)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "c1.py"),
		filepath.Join(dir, "c3.py"),
		filepath.Join(dir, "c5.py"),
	}, batch.FilesChanged())
	assert.Contains(t, batch.Summary(), "3 of 5 succeeded")
}

func TestScenario_BatchDiffCoversEveryEdit(t *testing.T) {
	src := "class A:\n    pass\n\n\nclass B:\n    pass\n"
	want := "@d\nclass A:\n    pass\n\n\n@d\nclass B:\n    pass\n"

	for _, tc := range []struct {
		name string
		tx   bool
	}{
		{name: "immediate"},
		{name: "transaction", tx: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeTree(t, map[string]string{"m.py": src})
			s := openSession(t, dir)
			if tc.tx {
				_, err := s.Begin("decorate")
				require.NoError(t, err)
			}

			batch := s.FindClasses("").AddDecorator("d")
			require.True(t, batch.Success(), batch.Summary())
			path := filepath.Join(dir, "m.py")
			assert.Equal(t, core.UnifiedDiff("m.py", []byte(src), []byte(want), core.DefaultDiffContext), batch.Diffs()[path])
			assert.Equal(t, 2, strings.Count(batch.Diff(), "+@d"), batch.Diff())
		})
	}
}

func TestScenario_DryRunLeavesDiskAlone(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": "class A:\n    pass\n"})
	path := filepath.Join(dir, "a.py")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	s := openSession(t, dir, WithDryRun(true))
	r := s.FindClass("A").Rename("B")
	require.True(t, r.OK(), r.Message)
	assert.Contains(t, r.Message, "[DRY RUN] Renamed class 'A' in a.py to 'B'")
	assert.Contains(t, r.Message, "-class A:")
	assert.Contains(t, r.Message, "+class B:")
	assert.NotEmpty(t, r.Diff)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProperty_RoundTrip(t *testing.T) {
	src := "#!/usr/bin/env python\n# -*- coding: utf-8 -*-\n\n\nx = {  'a' :1,\n\t\"b\": 2 }   # trailing\n\n\n\ndef  f( a ,b = '''q''' ) :\n    return a\t# tab\n"
	dir := writeTree(t, map[string]string{"odd.py": src})
	s := openSession(t, dir)

	assert.Equal(t, src, s.File("odd.py").Content())

	r := s.FindFunction("f").AddDecorator("cached")
	require.True(t, r.OK(), r.Message)
	r = s.FindFunction("f").AddParameter(Param{Name: "b"})
	require.True(t, r.OK(), r.Message)
	assert.Contains(t, r.Message, "no changes")
	r = s.FindFunction("f").RemoveDecorator("cached")
	require.True(t, r.OK(), r.Message)
	assert.Equal(t, src, readFile(t, filepath.Join(dir, "odd.py")))
}

func TestProperty_Locality(t *testing.T) {
	src := "import os\n\n\nclass A:\n    x = 1\n\n\nclass B:\n    def f(self):\n        return os.getcwd()\n"
	dir := writeTree(t, map[string]string{"m.py": src})
	s := openSession(t, dir, WithDiffContext(0))

	r := s.FindClass("B").AddDecorator("dataclass")
	require.True(t, r.OK(), r.Message)

	stats, err := core.DiffStats(r.Diff)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Len(t, stats[0].Hunks, 1)
	h := stats[0].Hunks[0]
	assert.Equal(t, 1, h.Added)
	assert.Zero(t, h.Removed)
	assert.Equal(t, 8, h.NewStart)
}

func TestProperty_Idempotence(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.py": "import os\n\n\nclass A:\n    pass\n"})
	s := openSession(t, dir)
	path := filepath.Join(dir, "a.py")
	a := s.FindClass("A")

	for _, step := range []struct {
		name string
		op   func() core.Result
	}{
		{"import", func() core.Result { return s.AddImport("a.py", "import os") }},
		{"decorator", func() core.Result { return a.AddDecorator("dataclass") }},
		{"base", func() core.Result { return a.AddBase("Base") }},
		{"attribute", func() core.Result { return a.AddAttribute("x", "int", "0") }},
	} {
		t.Run(step.name, func(t *testing.T) {
			first := step.op()
			require.True(t, first.OK(), first.Message)
			content := readFile(t, path)

			second := step.op()
			assert.True(t, second.OK(), second.Message)
			assert.Empty(t, second.FilesChanged)
			assert.Equal(t, content, readFile(t, path))
			assert.Equal(t, content, s.File("a.py").Content())
		})
	}

	first := a.AddMethod("def f(self):\n    pass\n")
	require.True(t, first.OK(), first.Message)
	content := readFile(t, path)
	second := a.AddMethod("def f(self):\n    pass\n")
	assert.False(t, second.OK())
	assert.Equal(t, "add_method", second.Operation)
	assert.Contains(t, second.Message, "method 'f' already exists")
	assert.Equal(t, content, readFile(t, path))
}

func TestProperty_RollbackAtomicity(t *testing.T) {
	files := map[string]string{
		"a.py": "class A:\n    pass\n",
		"b.py": "def b():\n    return 1\n",
		"c.py": "import os\n",
	}
	dir := writeTree(t, files)
	s := openSession(t, dir)

	ops := func() error {
		return errors.Join(
			s.FindClass("A").Rename("AA").Err(),
			s.FindFunction("b").SetReturnType("int").Err(),
			s.AddImport("c.py", "import sys").Err(),
			s.File("c.py").Line(1).AddNoqa("F401").Err(),
		)
	}

	_, err := s.Begin("explicit")
	require.NoError(t, err)
	require.NoError(t, ops())
	_, err = s.Rollback()
	require.NoError(t, err)
	for name, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(dir, name)), name)
	}

	boom := errors.New("abort")
	_, err = s.WithTransaction("scoped", func(*core.Transaction) error {
		if err := ops(); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	for name, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(dir, name)), name)
	}
}
