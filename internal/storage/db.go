// Package storage is the local SQLite card cache.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps the cache database connection.
type DB struct {
	conn *sql.DB
}

// Config holds database settings.
type Config struct {
	// Path is the SQLite file. ":memory:" opens a private in-memory database.
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	// JournalMode is a SQLite journal mode (WAL, DELETE, MEMORY, ...).
	JournalMode string

	// AutoMigrate applies pending migrations on Open.
	AutoMigrate bool
}

// DefaultConfig returns settings for a file-backed cache.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		AutoMigrate:     true,
	}
}

// Open opens the database, creating its directory and applying migrations
// when AutoMigrate is set.
func Open(config *Config) (*DB, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	inMemory := config.Path == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Migrations open their own connection, so they run first against the
	// file. An in-memory database is migrated on its single connection.
	if config.AutoMigrate && !inMemory {
		if err := migrateFile(config.Path); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", dsn(config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory {
		// Every new connection would get its own empty database.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(config.MaxOpenConns)
		conn.SetMaxIdleConns(config.MaxIdleConns)
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to close database after ping error: %w (original error: %v)", closeErr, err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if config.AutoMigrate && inMemory {
		if err := db.applySchema(); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return db, nil
}

func dsn(config *Config) string {
	params := url.Values{}
	if config.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", config.BusyTimeout.Milliseconds()))
	}
	if config.JournalMode != "" && config.Path != ":memory:" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", config.JournalMode))
	}
	if len(params) == 0 {
		return config.Path
	}
	return config.Path + "?" + params.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping verifies the connection is alive.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
