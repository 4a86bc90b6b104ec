package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/pymorph/models"
)

// PurePrefix selects the CGO-free SQLite driver for a file DSN.
const PurePrefix = "sqlite+pure:"

// Driver names reported by DriverFor.
const (
	DriverLibSQL = "libsql"
	DriverPure   = "sqlite+pure"
	DriverSQLite = "sqlite"
)

// DriverFor picks the driver a DSN is opened with.
func DriverFor(dsn string) string {
	switch {
	case isURL(dsn):
		return DriverLibSQL
	case strings.HasPrefix(dsn, PurePrefix), dsn == ":memory:":
		return DriverPure
	default:
		return DriverSQLite
	}
}

// Connect establishes a database connection and runs migrations.
func Connect(dsn string, debug bool) (*gorm.DB, error) {
	driverName := DriverFor(dsn)
	path := strings.TrimPrefix(dsn, PurePrefix)

	// Ensure directory exists for file-based SQLite
	if driverName != DriverLibSQL && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	config := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	switch driverName {
	case DriverLibSQL:
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("PYMORPH_LIBSQL_AUTH_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}

		conn = sql.OpenDB(connector)
		dialector = sqlite.New(sqlite.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	case DriverPure:
		dialector = puresqlite.Open(path)
	default:
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		// Every connection to :memory: is a separate database.
		if path == ":memory:" {
			sqlDB.SetMaxOpenConns(1)
		}
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return db, nil
}

// isURL checks if the DSN is a URL (for Turso) or file path
func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "libsql://")
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TransactionRecord{},
		&models.ChangeRecord{},
	)
}
