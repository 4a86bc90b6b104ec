package models

import (
	"time"

	"gorm.io/datatypes"
)

// TransactionRecord is one audited commit: a transaction or a single
// immediate write.
type TransactionRecord struct {
	ID          string `gorm:"primaryKey;type:varchar(40)"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"type:varchar(20);index;not null"` // committed, failed
	Immediate   bool   `gorm:"default:false"`

	FilesChanged datatypes.JSON `gorm:"type:jsonb"` // list of paths
	Added        int            `gorm:"default:0"`
	Removed      int            `gorm:"default:0"`

	StartedAt   time.Time
	CompletedAt time.Time `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`

	// Relationships
	Changes []ChangeRecord `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
}

// ChangeRecord is the audited change of one file within a transaction.
type ChangeRecord struct {
	ID            uint   `gorm:"primaryKey"`
	TransactionID string `gorm:"type:varchar(40);index;not null"`
	Path          string `gorm:"type:text;not null"`

	Operations datatypes.JSON `gorm:"type:jsonb"` // operation names in order
	Created    bool           `gorm:"default:false"`

	// Checksums for validation
	BaseDigest  string `gorm:"type:varchar(64)"` // SHA256 of original
	AfterDigest string `gorm:"type:varchar(64)"` // SHA256 of modified

	Added   int    `gorm:"default:0"`
	Removed int    `gorm:"default:0"`
	Diff    string `gorm:"type:text"`
}

// TableName customizations for cleaner names
func (TransactionRecord) TableName() string { return "transactions" }
func (ChangeRecord) TableName() string      { return "changes" }
