package updater

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	backupFilename     = "camstream.backup"
	backupInfoFilename = "backup.json"
)

type backupInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

// backupStore keeps a single copy of a replaced binary.
type backupStore struct {
	dir    string
	logger *slog.Logger
}

func newBackupStore(dir string, logger *slog.Logger) (*backupStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("backup dir: %w", err)
		}
		dir = filepath.Join(home, ".cache", "camstream", "backup")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &backupStore{dir: dir, logger: logger}, nil
}

func (b *backupStore) save(execPath, version string) error {
	if err := copyFile(execPath, filepath.Join(b.dir, backupFilename)); err != nil {
		return err
	}

	data, err := json.Marshal(backupInfo{
		Version:   version,
		CreatedAt: time.Now(),
		ExecPath:  execPath,
	})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(b.dir, backupInfoFilename), data, 0o644); err != nil {
		return fmt.Errorf("write backup info: %w", err)
	}

	b.logger.Info("Backup created", "version", version, "dir", b.dir)
	return nil
}

func (b *backupStore) load() (backupInfo, error) {
	var info backupInfo
	data, err := os.ReadFile(filepath.Join(b.dir, backupInfoFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return info, ErrNoBackup
	}
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, fmt.Errorf("parse backup info: %w", err)
	}
	if _, err := os.Stat(filepath.Join(b.dir, backupFilename)); err != nil {
		return info, ErrNoBackup
	}
	return info, nil
}

func (b *backupStore) restore() (backupInfo, error) {
	info, err := b.load()
	if err != nil {
		return info, err
	}
	if err := copyFile(filepath.Join(b.dir, backupFilename), info.ExecPath); err != nil {
		return info, fmt.Errorf("restore backup: %w", err)
	}
	b.logger.Info("Backup restored", "version", info.Version)
	return info, nil
}

// copyFile writes src to a temporary file beside dst and renames it into
// place, so a running binary is replaced rather than truncated.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
