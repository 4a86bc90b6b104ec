package refactor

import (
	"context"
	"fmt"
	"os"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/providers/base"
)

// apply finishes a mutation whose transformer produced next from old.
// phrase completes "Renamed ..." style messages, e.g. "class 'A' to 'B'".
func (s *Session) apply(op, label, phrase string, old, next *base.SourceTree) core.Result {
	if next == old {
		r := core.Succeed(fmt.Sprintf("%s: no changes", phrase))
		r.Operation, r.Target = op, label
		return r
	}
	return s.write(op, label, phrase, old.Path(), old.Source(), true, next)
}

// fail builds the error result for a mutation that never reached write.
func (s *Session) fail(op, label string, err error) core.Result {
	s.log.Debug("operation failed", "op", op, "target", label, "error", err)
	return core.Failed(op, label, err.Error(), err)
}

// write routes the new content of path to the active transaction, the
// dry-run report or the disk.
func (s *Session) write(op, label, phrase, path string, before []byte, existed bool, next *base.SourceTree) core.Result {
	name := s.display(path)
	content := next.Source()
	change := core.FileChange{Name: name, Before: before, After: content, Existed: existed, Context: s.opts.diffContext}
	done := func(format string) core.Result {
		r := core.Succeed("", path).WithChange(path, change)
		r.Message = fmt.Sprintf(format, phrase, r.Diff)
		r.Operation, r.Target = op, label
		return r
	}

	if tx := s.tm.Current(); tx != nil {
		mode := os.FileMode(0)
		if !existed {
			mode = 0o644
		}
		tx.Stage(path, before, content, existed, mode, op)
		s.cache.Put(next)
		s.log.Debug("buffered change", "op", op, "path", name, "tx", tx.ID)
		return done("[PENDING] %s\n%s")
	}

	if s.opts.dryRun {
		_ = s.writer.WriteFile(path, content, 0)
		return done("[DRY RUN] %s\n%s")
	}

	if err := s.writer.WriteFile(path, content, 0); err != nil {
		s.log.Error("write failed", "op", op, "path", name, "error", err)
		return core.Failed(op, label, err.Error(), err)
	}
	s.cache.Put(next)
	if !existed {
		s.files = append(s.files, path)
	}
	s.log.Info("wrote file", "op", op, "path", name)
	r := done("%s\n%s")
	s.record(core.ImmediateRecord(path, op, before, content, existed, r.Diff))
	return r
}

func (s *Session) record(rec core.CommitRecord) {
	if s.opts.recorder == nil {
		return
	}
	if err := s.opts.recorder.RecordCommit(context.Background(), rec); err != nil {
		s.log.Warn("audit record failed", "tx", rec.TransactionID, "error", err)
	}
}
