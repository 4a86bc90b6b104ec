package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicWriteConfig controls atomic writing behavior
type AtomicWriteConfig struct {
	UseFsync   bool   // Force fsync of staged files before rename
	TempSuffix string // Suffix for staged temporary files
}

// DefaultAtomicConfig provides sensible defaults
func DefaultAtomicConfig() AtomicWriteConfig {
	return AtomicWriteConfig{
		UseFsync:   false,
		TempSuffix: ".pymorph.tmp",
	}
}

// AtomicWriter writes files by staging a sibling temp file and renaming it
// over the target.
type AtomicWriter struct {
	config AtomicWriteConfig
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter(config AtomicWriteConfig) *AtomicWriter {
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultAtomicConfig().TempSuffix
	}
	return &AtomicWriter{config: config}
}

// StagedFile is content written next to its destination but not yet visible
// under the destination name.
type StagedFile struct {
	Path     string
	TempPath string
	done     bool
}

// WriteFile atomically replaces path with content.
func (aw *AtomicWriter) WriteFile(path string, content []byte, perm os.FileMode) error {
	staged, err := aw.Stage(path, content, perm)
	if err != nil {
		return err
	}
	return staged.Commit()
}

// Stage writes content to a temp file beside path. A zero perm keeps the
// mode of the existing file, or 0644 for new files.
func (aw *AtomicWriter) Stage(path string, content []byte, perm os.FileMode) (*StagedFile, error) {
	fileMode := perm
	if info, err := os.Stat(path); err == nil {
		if fileMode == 0 {
			fileMode = info.Mode().Perm()
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	if fileMode == 0 {
		fileMode = 0o644
	}

	tempPath := path + aw.config.TempSuffix
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tempFile.Write(content); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write content: %w", err)
	}

	if aw.config.UseFsync {
		if err := tempFile.Sync(); err != nil {
			tempFile.Close()
			os.Remove(tempPath)
			return nil, fmt.Errorf("failed to sync: %w", err)
		}
	}

	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return &StagedFile{Path: path, TempPath: tempPath}, nil
}

// Commit renames the staged file over its destination.
func (s *StagedFile) Commit() error {
	if s.done {
		return nil
	}
	if err := os.Rename(s.TempPath, s.Path); err != nil {
		os.Remove(s.TempPath)
		s.done = true
		return fmt.Errorf("failed to atomic rename: %w", err)
	}
	s.done = true
	return nil
}

// Discard removes the staged temp file without touching the destination.
func (s *StagedFile) Discard() {
	if s.done {
		return
	}
	os.Remove(s.TempPath)
	s.done = true
}
