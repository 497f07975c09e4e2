// Package cache is a content-addressed compilation cache: the optimized
// instruction tree for a source file, keyed on sha256(source), so that
// `bf build` looks up the digest before parsing and, on a hit, skips
// straight to codegen with the cached tree instead of re-parsing and
// re-optimizing. It never caches JIT'd code itself — code memory is
// tied to the life of its owning jit.Module, never persisted to disk.
//
// Backed by modernc.org/sqlite, a pure-Go sqlite driver, so the cache
// needs no cgo toolchain to build.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"bf/internal/optimizer"
)

// Cache wraps a sqlite-backed store of optimized trees.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) a cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS compiled (
	digest     TEXT PRIMARY KEY,
	ops_json   TEXT NOT NULL,
	walk_len   INTEGER NOT NULL,
	rendered   TEXT NOT NULL
)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: migrate: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the underlying sqlite handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Digest returns the cache key for a source string.
func Digest(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached optimized tree for source's digest, if any.
func (c *Cache) Lookup(digest string) ([]optimizer.OpInstr, bool, error) {
	var opsJSON string
	err := c.db.QueryRow(`SELECT ops_json FROM compiled WHERE digest = ?`, digest).Scan(&opsJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}

	var ops []optimizer.OpInstr
	if err := json.Unmarshal([]byte(opsJSON), &ops); err != nil {
		return nil, false, fmt.Errorf("cache: decode: %w", err)
	}
	return ops, true, nil
}

// Store records source's optimized tree, its rendered canonical form,
// and its instruction count under digest, replacing any prior entry.
func (c *Cache) Store(digest string, ops []optimizer.OpInstr, rendered string) error {
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO compiled (digest, ops_json, walk_len, rendered) VALUES (?, ?, ?, ?)
		 ON CONFLICT(digest) DO UPDATE SET ops_json = excluded.ops_json, walk_len = excluded.walk_len, rendered = excluded.rendered`,
		digest, string(opsJSON), optimizer.WalkLen(ops), rendered,
	)
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}
