// Package storage implements the Task Store: the resumable,
// per-day pipeline state and article results backing the daily digest.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hn-digest/hn-digest-go/internal/config"
	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps SQLite database connections with read/write separation.
// Writer uses a single connection to avoid SQLITE_BUSY errors. Reader
// uses multiple connections for parallel queries.
type DB struct {
	mu     sync.RWMutex
	writer *sql.DB
	reader *sql.DB
	path   string
}

// New creates a new database with read/write separation and initializes
// the schema.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	isMemory := dbPath == ":memory:"

	var writerDSN, readerDSN string
	if isMemory {
		baseDSN := "file:hndigest?mode=memory&cache=shared"
		writerDSN = baseDSN + "&_txlock=immediate"
		readerDSN = baseDSN
	} else {
		writerDSN = dbPath + "?_txlock=immediate"
		readerDSN = dbPath + "?mode=ro"
	}

	writer, err := sql.Open("sqlite", writerDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	if err := configureConnection(ctx, writer, false); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("configure writer: %w", err)
	}

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	reader, err := sql.Open("sqlite", readerDSN)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	reader.SetMaxOpenConns(10)
	reader.SetMaxIdleConns(5)
	reader.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	if err := configureConnection(ctx, reader, true); err != nil {
		_ = writer.Close()
		_ = reader.Close()
		return nil, fmt.Errorf("configure reader: %w", err)
	}

	if err := reader.PingContext(ctx); err != nil {
		_ = writer.Close()
		_ = reader.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{writer: writer, reader: reader, path: dbPath}, nil
}

func configureConnection(ctx context.Context, conn *sql.DB, readOnly bool) error {
	if !readOnly {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return fmt.Errorf("enable WAL: %w", err)
		}
	}

	busyTimeoutMs := int(config.DatabaseBusyTimeout.Milliseconds())
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs)); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA temp_store=MEMORY"); err != nil {
		return fmt.Errorf("failed to set temp store: %w", err)
	}

	if !readOnly {
		if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
			return fmt.Errorf("failed to set synchronous mode: %w", err)
		}
	} else {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
			return fmt.Errorf("failed to set query-only mode: %w", err)
		}
	}

	return nil
}

// Close closes both reader and writer database connections.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs []error
	if db.reader != nil {
		if err := db.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader: %w", err))
		}
	}
	if db.writer != nil {
		if err := db.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Writer returns the writer connection for write operations.
func (db *DB) Writer() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writer
}

// Reader returns the reader connection pool for read operations.
func (db *DB) Reader() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.reader
}

// Path returns the database file path.
func (db *DB) Path() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.path
}

// Ping verifies both database connections are alive.
func (db *DB) Ping(ctx context.Context) error {
	db.mu.RLock()
	writer := db.writer
	reader := db.reader
	db.mu.RUnlock()
	return errors.Join(
		writer.PingContext(ctx),
		reader.PingContext(ctx),
	)
}

