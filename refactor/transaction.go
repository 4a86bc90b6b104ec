package refactor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oxhq/pymorph/core"
)

// Begin opens a transaction. Mutations made while it is open are buffered
// and only reach disk on Commit.
func (s *Session) Begin(description string) (*core.Transaction, error) {
	tx, err := s.tm.Begin(description)
	if err != nil {
		return nil, err
	}
	s.closed = nil
	s.log.Debug("transaction started", "tx", tx.ID, "description", description)
	return tx, nil
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	return s.tm.Current() != nil
}

// open returns the open transaction. After a commit or rollback, and until
// the next Begin, misuse reports the closed transaction.
func (s *Session) open() (*core.Transaction, error) {
	if tx := s.tm.Current(); tx != nil {
		return tx, nil
	}
	if s.closed != nil {
		return nil, fmt.Errorf("%w: %s is %s", core.ErrTransactionClosed, s.closed.ID, s.closed.Status)
	}
	return nil, core.ErrNoTransaction
}

// Preview returns the combined diff of the open transaction without
// touching the filesystem.
func (s *Session) Preview() (core.Preview, error) {
	tx, err := s.open()
	if err != nil {
		return core.Preview{}, err
	}
	return tx.Preview(s.opts.diffContext, s.display), nil
}

// Commit writes every buffered file, or none of them. Misuse is returned
// as an error; a failed write is a failed Result whose Data is the
// core.CommitReport. A dry-run commit writes nothing, audit log included.
func (s *Session) Commit() (core.Result, error) {
	tx, err := s.open()
	if err != nil {
		return core.Result{}, err
	}
	preview := tx.Preview(s.opts.diffContext, s.display)
	rec := tx.Record(s.opts.diffContext, s.display)
	var paths, created []string
	for _, c := range tx.Changes() {
		paths = append(paths, c.Path)
		if !c.Existed {
			created = append(created, c.Path)
		}
	}

	report, err := s.tm.Commit(tx, s.opts.dryRun)
	if err != nil {
		return core.Result{}, err
	}
	s.closed = tx
	rec.Status, rec.Completed = tx.Status, tx.Completed

	if s.opts.dryRun || report.Err != nil {
		s.cache.Invalidate(paths...)
	} else {
		s.files = append(s.files, created...)
	}
	if !s.opts.dryRun {
		s.record(rec)
	}

	if report.Err != nil {
		s.log.Error("commit failed", "tx", tx.ID, "failed", s.display(report.Failed), "error", report.Err)
		msg := fmt.Sprintf("commit failed at %s: %v", s.display(report.Failed), report.Err)
		if len(report.Restored) > 0 {
			msg += fmt.Sprintf("; restored %s", s.displayAll(report.Restored))
		}
		if len(report.Unrestored) > 0 {
			msg += fmt.Sprintf("; could not restore %s", s.displayAll(report.Unrestored))
		}
		return core.Failed("commit", tx.ID, msg, report.Err).WithData(report), nil
	}

	var r core.Result
	if s.opts.dryRun {
		r = core.Succeed(fmt.Sprintf("[DRY RUN] Would apply %d change(s)\n%s", len(paths), preview.Text()))
	} else {
		r = core.Succeed(fmt.Sprintf("Committed %d file(s) (+%d -%d)", len(report.Committed), preview.Added, preview.Removed), report.Committed...)
		s.log.Info("transaction committed", "tx", tx.ID, "files", len(report.Committed))
	}
	r.Operation, r.Target = "commit", tx.ID
	r.Diffs = preview.Diffs
	r.Diff = preview.Text()
	return r.WithData(report), nil
}

// Rollback discards the open transaction. The filesystem is not touched.
func (s *Session) Rollback() (core.Result, error) {
	tx, err := s.open()
	if err != nil {
		return core.Result{}, err
	}
	var paths []string
	for _, c := range tx.Changes() {
		paths = append(paths, c.Path)
	}
	n, err := s.tm.Rollback(tx)
	if err != nil {
		return core.Result{}, err
	}
	s.closed = tx
	s.cache.Invalidate(paths...)
	s.log.Debug("transaction rolled back", "tx", tx.ID, "discarded", n)

	r := core.Succeed(fmt.Sprintf("Rolled back %d change(s)", n))
	r.Operation, r.Target = "rollback", tx.ID
	return r, nil
}

// WithTransaction runs fn inside a transaction and commits when it returns
// nil. An error or a panic from fn rolls the transaction back; the panic is
// re-raised afterwards.
func (s *Session) WithTransaction(description string, fn func(*core.Transaction) error) (core.Result, error) {
	tx, err := s.Begin(description)
	if err != nil {
		return core.Result{}, err
	}
	defer func() {
		if p := recover(); p != nil {
			if tx.Active() {
				_, _ = s.Rollback()
			}
			panic(p)
		}
	}()

	if ferr := fn(tx); ferr != nil {
		if tx.Active() {
			if _, rerr := s.Rollback(); rerr != nil {
				return core.Result{}, errors.Join(ferr, rerr)
			}
		}
		return core.Result{}, ferr
	}
	if !tx.Active() {
		return core.Result{}, fmt.Errorf("%w: %s closed inside its own scope", core.ErrTransactionClosed, tx.ID)
	}
	return s.Commit()
}

func (s *Session) displayAll(paths []string) string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = s.display(p)
	}
	return strings.Join(out, ", ")
}
