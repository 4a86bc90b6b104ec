package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TxStatus is the lifecycle state of a transaction.
type TxStatus string

const (
	TxPending    TxStatus = "pending"
	TxCommitted  TxStatus = "committed"
	TxRolledBack TxStatus = "rolled_back"
	TxFailed     TxStatus = "failed"
)

// PendingChange is the buffered new content of one file.
type PendingChange struct {
	Path       string      `json:"path"`
	Original   []byte      `json:"-"`
	Content    []byte      `json:"-"`
	Existed    bool        `json:"existed"`
	Mode       os.FileMode `json:"mode"`
	Operations []string    `json:"operations"`
}

// Diff renders the change against the file's pre-transaction content.
func (c *PendingChange) Diff(path string, context int) string {
	if !c.Existed {
		return CreationDiff(path, c.Content, context)
	}
	return UnifiedDiff(path, c.Original, c.Content, context)
}

// Transaction buffers file rewrites until commit.
type Transaction struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Started     time.Time `json:"started"`
	Completed   time.Time `json:"completed"`
	Status      TxStatus  `json:"status"`

	changes map[string]*PendingChange
	order   []string
}

// Active reports whether the transaction still accepts changes.
func (tx *Transaction) Active() bool {
	return tx != nil && tx.Status == TxPending
}

// Stage records content as the pending state of path. The first original
// seen for a path is kept; later stages only replace the content.
func (tx *Transaction) Stage(path string, original, content []byte, existed bool, mode os.FileMode, operation string) *PendingChange {
	if c, ok := tx.changes[path]; ok {
		c.Content = bytes.Clone(content)
		c.Operations = append(c.Operations, operation)
		return c
	}

	c := &PendingChange{
		Path:       path,
		Original:   bytes.Clone(original),
		Content:    bytes.Clone(content),
		Existed:    existed,
		Mode:       mode,
		Operations: []string{operation},
	}
	tx.changes[path] = c
	tx.order = append(tx.order, path)
	return c
}

// Pending returns the buffered change for path, if any.
func (tx *Transaction) Pending(path string) (*PendingChange, bool) {
	c, ok := tx.changes[path]
	return c, ok
}

// Changes returns pending changes in the order their files were first touched.
func (tx *Transaction) Changes() []*PendingChange {
	out := make([]*PendingChange, 0, len(tx.order))
	for _, p := range tx.order {
		out = append(out, tx.changes[p])
	}
	return out
}

// Len returns the number of files with pending changes.
func (tx *Transaction) Len() int { return len(tx.order) }

// Preview is the combined, read-only view of pending changes.
type Preview struct {
	Diffs   map[string]string `json:"diffs"`
	Paths   []string          `json:"paths"`
	Stats   []FileStats       `json:"stats"`
	Added   int               `json:"added"`
	Removed int               `json:"removed"`
}

// Text concatenates the per-file diffs in path order.
func (p Preview) Text() string {
	var sb strings.Builder
	for _, path := range p.Paths {
		sb.WriteString(p.Diffs[path])
	}
	return sb.String()
}

// Preview computes diffs for every pending change. display maps a file
// path to the name shown in diff headers; nil keeps the path.
func (tx *Transaction) Preview(context int, display func(string) string) Preview {
	pv := Preview{Diffs: make(map[string]string)}
	for _, c := range tx.Changes() {
		name := c.Path
		if display != nil {
			name = display(c.Path)
		}
		d := c.Diff(name, context)
		if d == "" {
			continue
		}
		pv.Diffs[c.Path] = d
		pv.Paths = append(pv.Paths, c.Path)
	}
	sort.Strings(pv.Paths)

	if stats, err := DiffStats(pv.Text()); err == nil {
		pv.Stats = stats
		for _, s := range stats {
			pv.Added += s.Added
			pv.Removed += s.Removed
		}
	}
	return pv
}

// CommitReport describes what a commit did to the filesystem.
type CommitReport struct {
	TransactionID string   `json:"transaction_id"`
	DryRun        bool     `json:"dry_run"`
	Committed     []string `json:"committed,omitempty"`
	Restored      []string `json:"restored,omitempty"`
	Unrestored    []string `json:"unrestored,omitempty"`
	Failed        string   `json:"failed,omitempty"`
	Err           error    `json:"-"`
}

// TransactionManager owns the single active transaction of a session.
type TransactionManager struct {
	current      *Transaction
	atomicWriter *AtomicWriter
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(atomicWriter *AtomicWriter) *TransactionManager {
	if atomicWriter == nil {
		atomicWriter = NewAtomicWriter(DefaultAtomicConfig())
	}
	return &TransactionManager{atomicWriter: atomicWriter}
}

// Current returns the active transaction or nil.
func (tm *TransactionManager) Current() *Transaction {
	return tm.current
}

// Begin starts a new transaction. Only one may be open at a time.
func (tm *TransactionManager) Begin(description string) (*Transaction, error) {
	if tm.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionActive, tm.current.ID)
	}

	tx := &Transaction{
		ID:          newTransactionID(),
		Description: description,
		Started:     time.Now(),
		Status:      TxPending,
		changes:     make(map[string]*PendingChange),
	}
	tm.current = tx
	return tx, nil
}

func (tm *TransactionManager) check(tx *Transaction) error {
	if tx == nil {
		return ErrNoTransaction
	}
	if tx.Status != TxPending {
		return fmt.Errorf("%w: %s is %s", ErrTransactionClosed, tx.ID, tx.Status)
	}
	if tx != tm.current {
		return fmt.Errorf("%w: %s is not the active transaction", ErrNoTransaction, tx.ID)
	}
	return nil
}

// Commit writes every pending file or none of them.
//
// All files are staged to temp files first; a staging failure removes the
// temps and leaves every destination untouched. Renames follow; if one
// fails, files already renamed are restored from their in-memory originals.
// The returned error is reserved for misuse; I/O failures are in the report.
func (tm *TransactionManager) Commit(tx *Transaction, dryRun bool) (CommitReport, error) {
	if err := tm.check(tx); err != nil {
		return CommitReport{}, err
	}
	report := CommitReport{TransactionID: tx.ID, DryRun: dryRun}
	changes := tx.Changes()

	if dryRun {
		tm.close(tx, TxCommitted)
		return report, nil
	}

	staged := make([]*StagedFile, 0, len(changes))
	for _, c := range changes {
		sf, err := tm.atomicWriter.Stage(c.Path, c.Content, c.Mode)
		if err != nil {
			for _, s := range staged {
				s.Discard()
			}
			report.Failed = c.Path
			report.Err = fmt.Errorf("%w: staging %s: %v", ErrWrite, c.Path, err)
			tm.close(tx, TxFailed)
			return report, nil
		}
		staged = append(staged, sf)
	}

	for i, sf := range staged {
		if err := sf.Commit(); err != nil {
			report.Failed = sf.Path
			report.Err = fmt.Errorf("%w: renaming %s: %v", ErrWrite, sf.Path, err)
			for _, rest := range staged[i+1:] {
				rest.Discard()
			}
			for j := i - 1; j >= 0; j-- {
				if rerr := tm.restore(changes[j]); rerr != nil {
					report.Unrestored = append(report.Unrestored, changes[j].Path)
				} else {
					report.Restored = append(report.Restored, changes[j].Path)
				}
			}
			report.Committed = report.Unrestored
			tm.close(tx, TxFailed)
			return report, nil
		}
		report.Committed = append(report.Committed, sf.Path)
	}

	tm.close(tx, TxCommitted)
	return report, nil
}

// Rollback discards every pending change and returns how many were dropped.
// It never touches the filesystem.
func (tm *TransactionManager) Rollback(tx *Transaction) (int, error) {
	if err := tm.check(tx); err != nil {
		return 0, err
	}
	n := tx.Len()
	tm.close(tx, TxRolledBack)
	return n, nil
}

func (tm *TransactionManager) close(tx *Transaction, status TxStatus) {
	tx.Status = status
	tx.Completed = time.Now()
	if status != TxCommitted {
		tx.changes = map[string]*PendingChange{}
		tx.order = nil
	}
	if tm.current == tx {
		tm.current = nil
	}
}

// restore puts a file back to its pre-transaction state.
func (tm *TransactionManager) restore(c *PendingChange) error {
	if !c.Existed {
		if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return tm.atomicWriter.WriteFile(c.Path, c.Original, c.Mode)
}

func newTransactionID() string {
	return "tx_" + uuid.NewString()
}
