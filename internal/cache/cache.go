// Package cache provides incremental analysis for MSVC code analysis runs.
//
// Analyzing a translation unit is as expensive as compiling it, and most
// sources do not change between runs. The cache:
//
//  1. Keys each analysis by SHA256 of source content + command line + environment
//  2. Stores entry metadata in BoltDB
//  3. Keeps a copy of each SARIF log in the filesystem under artifacts/<hash>/
//
// A source whose key matches a successful entry is not analyzed again; its
// SARIF log is restored into the results directory when it has gone missing.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".cmake-analyze-cache"

	// bucketName is the BoltDB bucket name for cache entries
	bucketName = "analyses"
)

// Cache manages SARIF artifacts and metadata using BoltDB
type Cache struct {
	db   *bbolt.DB
	root string // Root directory for cache (.cmake-analyze-cache/)
}

// New creates a new cache instance
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Open BoltDB
	dbPath := filepath.Join(cacheDir, "cache.db")
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Create bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Get retrieves the cache entry for key
// Returns nil if cache miss
func (c *Cache) Get(key Key) (*Entry, error) {
	hash, err := HashSource(key)
	if err != nil {
		return nil, fmt.Errorf("failed to hash source: %w", err)
	}

	var entry Entry
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(hash))
		if data == nil {
			return nil // Cache miss
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}

	if entry.Hash == "" {
		return nil, nil // Cache miss
	}

	return &entry, nil
}

// Store saves a cache entry for key and, on success, copies the SARIF log
// at sarifPath into the cache.
func (c *Cache) Store(key Key, sarifPath, runID string, success bool) error {
	hash, err := HashSource(key)
	if err != nil {
		return fmt.Errorf("failed to hash source: %w", err)
	}

	entry := Entry{
		Hash:            hash,
		SourceFile:      key.SourceFile,
		Command:         key.Command,
		CompilerVersion: key.CompilerVersion,
		SarifLog:        filepath.Base(sarifPath),
		RunID:           runID,
		Timestamp:       time.Now(),
		Success:         success,
	}

	// Copy the log first so an entry never points at a missing artifact
	if success {
		if entry.SarifHash, err = HashFile(sarifPath); err != nil {
			return fmt.Errorf("failed to hash sarif log: %w", err)
		}

		if err := CopyArtifacts(filepath.Dir(sarifPath), c.artifactDir(hash), []string{entry.SarifLog}); err != nil {
			return fmt.Errorf("failed to copy artifacts: %w", err)
		}
	}

	// Store metadata in BoltDB
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(hash), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// Restore copies the cached SARIF log of entry into destDir
func (c *Cache) Restore(entry *Entry, destDir string) error {
	if !entry.Success || entry.SarifLog == "" {
		return fmt.Errorf("cannot restore failed analysis or analysis with no log")
	}

	artifactDir := c.artifactDir(entry.Hash)

	// Never copy a damaged log into the results directory
	got, err := HashFile(filepath.Join(artifactDir, entry.SarifLog))
	if err != nil {
		return fmt.Errorf("failed to hash cached log: %w", err)
	}

	if got != entry.SarifHash {
		return fmt.Errorf("cached log %s does not match its recorded hash", entry.SarifLog)
	}

	return RestoreArtifacts(artifactDir, destDir, []string{entry.SarifLog})
}

// Clear removes all cache entries and artifacts
func (c *Cache) Clear() error {
	// Clear BoltDB
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	err = c.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return err
	}

	// Remove artifacts directory
	artifactsDir := filepath.Join(c.root, "artifacts")
	if err := os.RemoveAll(artifactsDir); err != nil {
		return fmt.Errorf("failed to remove artifacts: %w", err)
	}

	return nil
}

// Stats returns cache statistics
func (c *Cache) Stats() (int, int64, error) {
	var count int
	var totalSize int64

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	// Calculate total artifact size
	artifactsDir := filepath.Join(c.root, "artifacts")
	err = filepath.Walk(artifactsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !info.IsDir() {
			totalSize += info.Size()
		}

		return nil
	})

	return count, totalSize, nil
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.root
}

// artifactDir returns the directory path for a given cache hash
func (c *Cache) artifactDir(hash string) string {
	return filepath.Join(c.root, "artifacts", hash)
}
