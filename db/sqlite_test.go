package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/pymorph/core"
	"github.com/oxhq/pymorph/models"
)

func TestDriverFor(t *testing.T) {
	tests := map[string]string{
		"libsql://db.turso.io":      DriverLibSQL,
		"https://db.example.com":    DriverLibSQL,
		"http://127.0.0.1:8080":     DriverLibSQL,
		":memory:":                  DriverPure,
		"sqlite+pure:/tmp/audit.db": DriverPure,
		"/var/lib/pymorph/audit.db": DriverSQLite,
		"relative/audit.db":         DriverSQLite,
		"libsqlish.db":              DriverSQLite,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, DriverFor(dsn), dsn)
	}
}

func TestConnect_Memory(t *testing.T) {
	db, err := Connect(":memory:", false)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&models.TransactionRecord{}))
	assert.True(t, db.Migrator().HasTable(&models.ChangeRecord{}))
}

func TestConnect_PureFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	db, err := Connect(PurePrefix+path, false)
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestConnect_DirectoryFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Connect(PurePrefix+filepath.Join(blocker, "audit.db"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create database directory")
}

func TestAuditLog_RecordAndRecent(t *testing.T) {
	log, err := OpenAuditLog(":memory:", false)
	require.NoError(t, err)
	defer log.Close()
	ctx := context.Background()

	base := time.Now()
	first := core.CommitRecord{
		TransactionID: "tx_old",
		Description:   "first",
		Status:        core.TxCommitted,
		Started:       base,
		Completed:     base,
		Changes: []core.ChangeSummary{
			{Path: "a.py", Operations: []string{"rename"}, Before: []byte("a"), After: []byte("b"), Existed: true, Added: 1, Removed: 1},
		},
	}
	second := core.CommitRecord{
		TransactionID: "tx_new",
		Description:   "second",
		Status:        core.TxCommitted,
		Immediate:     true,
		Started:       base.Add(time.Second),
		Completed:     base.Add(time.Second),
		Changes: []core.ChangeSummary{
			{Path: "b.py", Operations: []string{"create_module"}, After: []byte("x = 1\n"), Added: 1},
			{Path: "c.py", Operations: []string{"add_import", "rename"}, Before: []byte("c"), After: []byte("d"), Existed: true, Added: 2},
		},
	}
	require.NoError(t, log.RecordCommit(ctx, first))
	require.NoError(t, log.RecordCommit(ctx, second))

	rows, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	latest := rows[0]
	assert.Equal(t, "tx_new", latest.ID)
	assert.True(t, latest.Immediate)
	assert.Equal(t, 3, latest.Added)
	assert.JSONEq(t, `["b.py","c.py"]`, string(latest.FilesChanged))
	require.Len(t, latest.Changes, 2)
	assert.True(t, latest.Changes[0].Created)
	assert.Empty(t, latest.Changes[0].BaseDigest)
	assert.Len(t, latest.Changes[1].BaseDigest, 64)
	assert.JSONEq(t, `["add_import","rename"]`, string(latest.Changes[1].Operations))

	limited, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Error(t, log.RecordCommit(ctx, first), "duplicate transaction ids are rejected")
}
