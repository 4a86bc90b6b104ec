package core

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultAtomicConfig(t *testing.T) {
	config := DefaultAtomicConfig()

	if config.TempSuffix != ".pymorph.tmp" {
		t.Errorf("Expected TempSuffix '.pymorph.tmp', got '%s'", config.TempSuffix)
	}
	if config.UseFsync {
		t.Error("Expected UseFsync to be false by default")
	}
}

func TestNewAtomicWriter_DefaultsSuffix(t *testing.T) {
	writer := NewAtomicWriter(AtomicWriteConfig{UseFsync: true})

	if writer.config.TempSuffix != ".pymorph.tmp" {
		t.Errorf("Expected default suffix, got '%s'", writer.config.TempSuffix)
	}
	if !writer.config.UseFsync {
		t.Error("UseFsync not carried over")
	}
}

func TestAtomicWriter_WriteFile(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "pkg", "mod.py")
	writer := NewAtomicWriter(DefaultAtomicConfig())

	if err := writer.WriteFile(testFile, []byte("x = 1\n"), 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read written file: %v", err)
	}
	if string(data) != "x = 1\n" {
		t.Errorf("Expected 'x = 1', got %q", data)
	}

	if _, err := os.Stat(testFile + ".pymorph.tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestAtomicWriter_KeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not preserved on windows")
	}
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "script.py")
	if err := os.WriteFile(testFile, []byte("old\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	writer := NewAtomicWriter(AtomicWriteConfig{UseFsync: true})
	if err := writer.WriteFile(testFile, []byte("new\n"), 0); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("Expected mode 0755, got %o", info.Mode().Perm())
	}
}

func TestStagedFile_Discard(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "a.py")
	if err := os.WriteFile(testFile, []byte("original\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	writer := NewAtomicWriter(DefaultAtomicConfig())
	staged, err := writer.Stage(testFile, []byte("changed\n"), 0)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if _, err := os.Stat(staged.TempPath); err != nil {
		t.Fatalf("staged temp missing: %v", err)
	}

	staged.Discard()
	staged.Discard()
	if _, err := os.Stat(staged.TempPath); !os.IsNotExist(err) {
		t.Error("Discard should remove the temp file")
	}
	if data, _ := os.ReadFile(testFile); string(data) != "original\n" {
		t.Errorf("destination touched: %q", data)
	}
	if err := staged.Commit(); err != nil {
		t.Errorf("Commit after Discard should be a no-op, got %v", err)
	}
}

func TestStagedFile_CommitTwice(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "a.py")

	writer := NewAtomicWriter(DefaultAtomicConfig())
	staged, err := writer.Stage(testFile, []byte("v1\n"), 0o644)
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Errorf("second Commit should be a no-op, got %v", err)
	}
	if data, _ := os.ReadFile(testFile); string(data) != "v1\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestAtomicWriter_StageIntoFile(t *testing.T) {
	tempDir := t.TempDir()
	blocker := filepath.Join(tempDir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	writer := NewAtomicWriter(DefaultAtomicConfig())
	if _, err := writer.Stage(filepath.Join(blocker, "m.py"), []byte("x\n"), 0); err == nil {
		t.Error("staging below a regular file should fail")
	}
}
