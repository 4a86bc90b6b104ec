package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/models"
)

// AuditLog persists commit records.
type AuditLog struct {
	db *gorm.DB
}

// NewAuditLog wraps an open, migrated database.
func NewAuditLog(db *gorm.DB) *AuditLog {
	return &AuditLog{db: db}
}

// OpenAuditLog connects to dsn and returns an audit log over it.
func OpenAuditLog(dsn string, debug bool) (*AuditLog, error) {
	db, err := Connect(dsn, debug)
	if err != nil {
		return nil, err
	}
	return NewAuditLog(db), nil
}

// RecordCommit stores rec and its file changes in one database transaction.
func (a *AuditLog) RecordCommit(ctx context.Context, rec core.CommitRecord) error {
	row := models.TransactionRecord{
		ID:          rec.TransactionID,
		Description: rec.Description,
		Status:      string(rec.Status),
		Immediate:   rec.Immediate,
		StartedAt:   rec.Started,
		CompletedAt: rec.Completed,
	}

	paths := make([]string, 0, len(rec.Changes))
	for _, c := range rec.Changes {
		paths = append(paths, c.Path)
		row.Added += c.Added
		row.Removed += c.Removed

		ops, err := json.Marshal(c.Operations)
		if err != nil {
			return fmt.Errorf("encoding operations for %s: %w", c.Path, err)
		}
		change := models.ChangeRecord{
			Path:        c.Path,
			Operations:  datatypes.JSON(ops),
			Created:     !c.Existed,
			AfterDigest: digest(c.After),
			Added:       c.Added,
			Removed:     c.Removed,
			Diff:        c.Diff,
		}
		if c.Existed {
			change.BaseDigest = digest(c.Before)
		}
		row.Changes = append(row.Changes, change)
	}

	files, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encoding files: %w", err)
	}
	row.FilesChanged = datatypes.JSON(files)

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("recording %s: %w", rec.TransactionID, err)
		}
		return nil
	})
}

// Recent returns the latest records with their changes, newest first.
func (a *AuditLog) Recent(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.TransactionRecord
	err := a.db.WithContext(ctx).
		Preload("Changes", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Order("completed_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return rows, nil
}

// Close releases the underlying connection pool.
func (a *AuditLog) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
