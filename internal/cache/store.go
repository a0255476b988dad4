// Package cache persists analysis results in SQLite so that unchanged files
// are not parsed again.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	_ "modernc.org/sqlite"

	"github.com/scan-io-git/blockscan/internal/analyzer"
	"github.com/scan-io-git/blockscan/internal/rules"
)

// Store is an analyzer.Cache backed by a SQLite database.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	registry *rules.Registry
	logger   hclog.Logger
}

var _ analyzer.Cache = (*Store)(nil)

// Open opens or creates the cache database at dbPath. Cached rule ids are
// resolved against registry.
func Open(dbPath string, registry *rules.Registry, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Writers serialize on the store mutex; one connection keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, registry: registry, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	var cleanLines []string
	for _, line := range strings.Split(schemaSQL, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "--") && trimmed != "" {
			cleanLines = append(cleanLines, line)
		}
	}
	if _, err := s.db.Exec(strings.Join(cleanLines, "\n")); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("cache schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the findings stored for path when they were computed from the
// same digest. Storage errors are logged and reported as a miss.
func (s *Store) Get(path, digest string) ([]analyzer.Finding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	findings, err := s.get(path, digest)
	if err != nil {
		if !errors.Is(err, errMiss) {
			s.logger.Warn("cache lookup failed", "path", path, "reason", err)
		}
		return nil, false
	}
	return findings, true
}

var errMiss = errors.New("cache miss")

func (s *Store) get(path, digest string) ([]analyzer.Finding, error) {
	var (
		fileID int64
		stored string
	)
	err := s.db.QueryRow(`SELECT id, digest FROM files WHERE path = ?`, path).Scan(&fileID, &stored)
	if err == sql.ErrNoRows {
		return nil, errMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	if stored != digest {
		return nil, errMiss
	}

	rows, err := s.db.Query(`SELECT line, col, function, rule_id FROM findings WHERE file_id = ? ORDER BY seq`, fileID)
	if err != nil {
		return nil, fmt.Errorf("get findings: %w", err)
	}
	defer rows.Close()

	findings := []analyzer.Finding{}
	for rows.Next() {
		f := analyzer.Finding{Path: path}
		var ruleID string
		if err := rows.Scan(&f.Line, &f.Column, &f.Function, &ruleID); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		rule, ok := s.registry.Lookup(ruleID)
		if !ok {
			return nil, errMiss
		}
		f.Rule = rule
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// Put replaces the stored findings of path.
func (s *Store) Put(path, digest string, findings []analyzer.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO files (path, digest, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			digest = excluded.digest,
			updated_at = CURRENT_TIMESTAMP
	`, path, digest); err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	var fileID int64
	if err := tx.QueryRow(`SELECT id FROM files WHERE path = ?`, path).Scan(&fileID); err != nil {
		return fmt.Errorf("get file id: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM findings WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete findings: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO findings (file_id, seq, line, col, function, rule_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range findings {
		if _, err := stmt.Exec(fileID, i, f.Line, f.Column, f.Function, f.Rule.ID()); err != nil {
			return fmt.Errorf("insert finding: %w", err)
		}
	}
	return tx.Commit()
}

// Len returns the number of cached files.
func (s *Store) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count files: %w", err)
	}
	return n, nil
}

// Prune removes entries whose path no longer exists on disk.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT path FROM files`)
	if err != nil {
		return 0, fmt.Errorf("list files: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan path: %w", err)
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			stale = append(stale, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, path := range stale {
		if _, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
			return 0, fmt.Errorf("delete %s: %w", path, err)
		}
	}
	if len(stale) > 0 {
		s.logger.Debug("pruned cache entries", "count", len(stale))
	}
	return len(stale), nil
}
