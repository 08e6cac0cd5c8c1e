package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Backup checkpoints the named store and copies its file to the backup
// directory as <store>_<YYYYMMDD_HHMMSS>.db. Returns the backup path.
func (s *Store) Backup(name string) (string, error) {
	db, err := s.conn(name)
	if err != nil {
		return "", err
	}
	// Fold the WAL into the main file so the copy is complete.
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("checkpoint %s: %w", name, err)
	}

	if err := os.MkdirAll(s.cfg.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	stamp := time.Now().Format("20060102_150405")
	dest := filepath.Join(s.cfg.BackupDir, fmt.Sprintf("%s_%s.db", name, stamp))
	if err := copyFile(s.Path(name), dest); err != nil {
		return "", fmt.Errorf("backup %s: %w", name, err)
	}
	s.logger.Info("store backed up", zap.String("store", name), zap.String("path", dest))
	return dest, nil
}

// Restore replaces the named store with the given backup file: disconnect,
// copy over, reopen and re-ensure the schema. No logical replay.
func (s *Store) Restore(name, backupPath string) error {
	s.mu.Lock()
	db, ok := s.conns[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown store %q", name)
	}
	if err := db.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close %s before restore: %w", name, err)
	}
	delete(s.conns, name)
	s.mu.Unlock()

	if err := copyFile(backupPath, s.Path(name)); err != nil {
		return fmt.Errorf("restore %s: %w", name, err)
	}
	// Stale WAL/SHM files would shadow the restored content.
	os.Remove(s.Path(name) + "-wal")
	os.Remove(s.Path(name) + "-shm")

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(name); err != nil {
		return err
	}
	s.cache.clear()
	s.logger.Info("store restored", zap.String("store", name), zap.String("from", backupPath))
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
