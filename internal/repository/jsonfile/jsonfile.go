// Package jsonfile stores guild configuration and verification snapshots in
// two JSON documents on the local filesystem. Every mutation rewrites the
// whole document while holding both an in-process mutex and an advisory lock
// on a sibling "<path>.lock" file, so the server and guildctl can share files.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"guildgate/internal/logger"
	"guildgate/internal/repository"
)

type Store struct {
	repository.GuildConfigRepository
	repository.VerificationRecordRepository
}

// NewStore creates file-backed repositories. Parent directories are created
// on demand; missing files read as empty documents.
func NewStore(configPath, auditPath string) (*Store, error) {
	for _, path := range []string{configPath, auditPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &Store{
		GuildConfigRepository:        NewGuildConfigRepository(configPath),
		VerificationRecordRepository: NewVerificationRecordRepository(auditPath),
	}, nil
}

// document guards a single JSON file
type document struct {
	mu   sync.Mutex
	path string
	file *flock.Flock
}

func newDocument(path string) *document {
	return &document{path: path, file: flock.New(path + ".lock")}
}

// lock serializes load-modify-save cycles within the process and across
// processes. The returned func releases both locks.
func (d *document) lock() (func(), error) {
	d.mu.Lock()
	if err := d.file.Lock(); err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("lock %s: %w", d.path, err)
	}
	return func() {
		if err := d.file.Unlock(); err != nil {
			logger.Warn("Failed to release file lock", "path", d.path, "error", err)
		}
		d.mu.Unlock()
	}, nil
}

// load decodes the file into v. A missing or empty file leaves v untouched.
func (d *document) load(v any) error {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", d.path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.path, err)
	}
	return nil
}

// save writes v through a temp file and rename so readers never observe a
// partially written document.
func (d *document) save(v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(d.path), filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", d.path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.path)
}
