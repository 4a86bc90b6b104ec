package core

import (
	"strings"
	"testing"
)

func TestUnifiedDiff(t *testing.T) {
	original := []byte("a = 1\nb = 2\nc = 3\n")
	modified := []byte("a = 1\nb = 20\nc = 3\n")

	d := UnifiedDiff("pkg/m.py", original, modified, 1)
	for _, want := range []string{"--- a/pkg/m.py", "+++ b/pkg/m.py", "-b = 2\n", "+b = 20\n", " a = 1\n"} {
		if !strings.Contains(d, want) {
			t.Errorf("Expected %q in diff:\n%s", want, d)
		}
	}

	if d := UnifiedDiff("m.py", original, original, 3); d != "" {
		t.Errorf("equal inputs should give an empty diff, got %q", d)
	}
}

func TestUnifiedDiff_MissingTrailingNewline(t *testing.T) {
	d := UnifiedDiff("m.py", []byte("x = 1"), []byte("x = 1\ny = 2"), 3)

	stats, err := DiffStats(d)
	if err != nil {
		t.Fatalf("DiffStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Added != 1 || stats[0].Removed != 0 {
		t.Errorf("Expected one added line, got %+v\n%s", stats, d)
	}
}

func TestCreationDiff(t *testing.T) {
	d := CreationDiff("pkg/new.py", []byte("x = 1\ny = 2\n"), 3)

	if !strings.HasPrefix(d, "--- /dev/null\n+++ b/pkg/new.py\n") {
		t.Errorf("unexpected headers:\n%s", d)
	}
	stats, err := DiffStats(d)
	if err != nil {
		t.Fatalf("DiffStats failed: %v", err)
	}
	if len(stats) != 1 || stats[0].Path != "pkg/new.py" || stats[0].Added != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestDiffStats_MultiFile(t *testing.T) {
	first := UnifiedDiff("a.py", []byte("1\n2\n3\n4\n5\n6\n7\n8\n9\n"), []byte("one\n2\n3\n4\n5\n6\n7\n8\nnine\nten\n"), 0)
	second := UnifiedDiff("b.py", []byte("x\ny\n"), []byte("x\n"), 3)

	stats, err := DiffStats(first + second)
	if err != nil {
		t.Fatalf("DiffStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(stats))
	}

	a := stats[0]
	if a.Path != "a.py" || len(a.Hunks) != 2 || a.Added != 3 || a.Removed != 2 {
		t.Errorf("unexpected stats for a.py: %+v", a)
	}
	if a.Hunks[1].NewStart != 9 {
		t.Errorf("Expected second hunk at line 9, got %d", a.Hunks[1].NewStart)
	}

	b := stats[1]
	if b.Path != "b.py" || b.Added != 0 || b.Removed != 1 {
		t.Errorf("unexpected stats for b.py: %+v", b)
	}
}

func TestDiffStats_Empty(t *testing.T) {
	stats, err := DiffStats("  \n")
	if err != nil || stats != nil {
		t.Errorf("Expected nil stats, got %v, %v", stats, err)
	}
}
