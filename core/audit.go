package core

import (
	"time"
)

// CommitRecord is the auditable summary of a commit or immediate write.
type CommitRecord struct {
	TransactionID string
	Description   string
	Status        TxStatus
	Immediate     bool
	Started       time.Time
	Completed     time.Time
	Changes       []ChangeSummary
}

// ChangeSummary describes what one commit did to one file.
type ChangeSummary struct {
	Path       string
	Operations []string
	Before     []byte
	After      []byte
	Existed    bool
	Diff       string
	Added      int
	Removed    int
}

// Record summarizes the pending changes of tx. It must be taken before the
// transaction closes, since a failed or rolled back transaction drops its
// changes.
func (tx *Transaction) Record(context int, display func(string) string) CommitRecord {
	rec := CommitRecord{
		TransactionID: tx.ID,
		Description:   tx.Description,
		Status:        tx.Status,
		Started:       tx.Started,
	}
	for _, c := range tx.Changes() {
		name := c.Path
		if display != nil {
			name = display(c.Path)
		}
		rec.Changes = append(rec.Changes, summarize(c.Path, c.Original, c.Content, c.Existed, c.Diff(name, context), c.Operations))
	}
	return rec
}

// ImmediateRecord summarizes a single write made outside a transaction.
func ImmediateRecord(path, operation string, before, after []byte, existed bool, diff string) CommitRecord {
	now := time.Now()
	return CommitRecord{
		TransactionID: newTransactionID(),
		Description:   operation,
		Status:        TxCommitted,
		Immediate:     true,
		Started:       now,
		Completed:     now,
		Changes:       []ChangeSummary{summarize(path, before, after, existed, diff, []string{operation})},
	}
}

func summarize(path string, before, after []byte, existed bool, diff string, ops []string) ChangeSummary {
	cs := ChangeSummary{
		Path:       path,
		Operations: append([]string(nil), ops...),
		Before:     before,
		After:      after,
		Existed:    existed,
		Diff:       diff,
	}
	if stats, err := DiffStats(diff); err == nil {
		for _, s := range stats {
			cs.Added += s.Added
			cs.Removed += s.Removed
		}
	}
	return cs
}
