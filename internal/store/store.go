// Package store caches compiled artifacts in a SQLite database keyed
// by the content hash of the source module and the target name.
// Compilation is deterministic, so a hit returns exactly the bytes a
// fresh compilation would produce.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tensorvm/tcbridge/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Cache is a durable artifact cache. Safe for concurrent use within
// one process.
type Cache struct {
	db *sql.DB
}

// Key returns the cache key for a module: the SHA-256 of its
// canonical textual form. Modules that print identically share a key.
func Key(mod *ir.Module) string {
	sum := sha256.Sum256([]byte(ir.Print(mod)))
	return hex.EncodeToString(sum[:])
}

// Open creates or opens the cache database at path. Idempotent.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports a single writer; keep the pool at one
	// connection to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores an artifact under (sourceHash, target). Duplicate keys
// are silently ignored: the artifact bytes for a key never change, so
// first write wins.
func (c *Cache) Put(ctx context.Context, sourceHash, target string, artifact []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO artifacts (source_hash, target, artifact)
		VALUES (?, ?, ?)
		ON CONFLICT(source_hash, target) DO NOTHING
	`, sourceHash, target, artifact)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// Get returns the cached artifact for (sourceHash, target), or
// ok=false on a miss.
func (c *Cache) Get(ctx context.Context, sourceHash, target string) (artifact []byte, ok bool, err error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT artifact FROM artifacts
		WHERE source_hash = ? AND target = ?
	`, sourceHash, target)
	if err := row.Scan(&artifact); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, true, nil
}

// Count returns the number of cached artifacts.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return n, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
