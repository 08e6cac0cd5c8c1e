// Package store manages the two independent sqlite stores, their schemas,
// transactions, a bounded read cache and file-level backup/restore.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/browsint/browsint/internal/metrics"
)

// Config locates the store files.
type Config struct {
	Dir       string
	BackupDir string
	CacheSize int
}

// Store is an explicit handle over the named databases. Construct once and
// pass to every component; there is no package-level instance.
type Store struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	conns map[string]*sql.DB
	cache *queryCache
}

// Open connects both stores, applies pragmas and ensures schemas.
func Open(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 50
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	if cfg.BackupDir == "" {
		cfg.BackupDir = filepath.Join(cfg.Dir, "backups")
	}

	s := &Store{
		cfg:    cfg,
		logger: logger,
		conns:  make(map[string]*sql.DB, 2),
		cache:  newQueryCache(cfg.CacheSize),
	}
	for _, name := range Names() {
		if err := s.open(name); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) open(name string) error {
	db, err := sql.Open("sqlite", s.Path(name))
	if err != nil {
		return fmt.Errorf("open %s store: %w", name, err)
	}
	// One live connection per store; transactions serialize on it.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("%s on %s store: %w", pragma, name, err)
		}
	}
	for _, stmt := range schemas[name] {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("init %s schema: %w", name, err)
		}
	}
	s.conns[name] = db
	return nil
}

// Path returns the database file path for a store name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.cfg.Dir, name+".db")
}

func (s *Store) conn(name string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.conns[name]
	if !ok {
		return nil, fmt.Errorf("unknown store %q", name)
	}
	return db, nil
}

// WithTx runs fn inside a transaction on the named store. Any error rolls
// back; success commits and invalidates the read cache.
func (s *Store) WithTx(ctx context.Context, name string, fn func(*sql.Tx) error) error {
	db, err := s.conn(name)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx on %s: %w", name, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.String("store", name), zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit on %s: %w", name, err)
	}
	s.cache.clear()
	return nil
}

// Exec runs a single write statement outside an explicit transaction and
// invalidates the read cache.
func (s *Store) Exec(ctx context.Context, name, query string, args ...any) (sql.Result, error) {
	db, err := s.conn(name)
	if err != nil {
		return nil, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	s.cache.clear()
	return res, nil
}

// FetchOne returns the first row as a column map, or nil when none.
func (s *Store) FetchOne(ctx context.Context, name, query string, args ...any) (map[string]any, error) {
	rows, err := s.FetchAll(ctx, name, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchAll returns every row as a column map.
func (s *Store) FetchAll(ctx context.Context, name, query string, args ...any) ([]map[string]any, error) {
	db, err := s.conn(name)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// Cached is FetchAll behind the bounded read cache keyed by
// (store, query, args). The cache is cleared wholesale on any write.
func (s *Store) Cached(ctx context.Context, name, query string, args ...any) ([]map[string]any, error) {
	key := cacheKey(name, query, args)
	if rows, ok := s.cache.get(key); ok {
		if metrics.StoreQueryCacheHits != nil {
			metrics.StoreQueryCacheHits.Inc()
		}
		return rows, nil
	}
	rows, err := s.FetchAll(ctx, name, query, args...)
	if err != nil {
		return nil, err
	}
	s.cache.put(key, rows)
	return rows, nil
}

// ClearCache drops every cached read result.
func (s *Store) ClearCache() {
	s.cache.clear()
}

// Size returns the database file size in bytes.
func (s *Store) Size(name string) (int64, error) {
	if _, err := s.conn(name); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.Path(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes every store connection.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, db := range s.conns {
		if err := db.Close(); err != nil {
			s.logger.Warn("close store failed", zap.String("store", name), zap.Error(err))
		}
		delete(s.conns, name)
	}
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
