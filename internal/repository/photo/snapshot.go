package photo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/memoir/internal/db"
)

// Snapshot persists the whole record document. Reads and writes are whole-document only.
type Snapshot interface {
	// Read returns the stored document. A missing document reads as nil data.
	Read(ctx context.Context) ([]byte, error)
	// Write replaces the stored document. A failed write leaves the previous document intact.
	Write(ctx context.Context, data []byte) error
	// Location describes where the document lives, for error context.
	Location() string
}

// FileSnapshot keeps the document in a single JSON file.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot creates a file-backed snapshot at path.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: filepath.Clean(path)}
}

// Location returns the file path.
func (f *FileSnapshot) Location() string { return f.path }

// Ping reports whether the snapshot directory is reachable.
func (f *FileSnapshot) Ping(_ context.Context) error {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// Read loads the file content.
func (f *FileSnapshot) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Write stages data in a temp file next to the target and renames it over the target.
func (f *FileSnapshot) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("rename to %s: %w", f.path, err)
	}
	return nil
}

// kv is the consumer interface for the key-value snapshot (ISP).
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KVSnapshot keeps the document as a single value in a key-value store.
type KVSnapshot struct {
	store kv
	key   string
}

// NewKVSnapshot creates a snapshot stored at key.
func NewKVSnapshot(s kv, key string) *KVSnapshot {
	return &KVSnapshot{store: s, key: key}
}

// Location returns the key.
func (k *KVSnapshot) Location() string { return "key " + k.key }

// Read loads the value at the key.
func (k *KVSnapshot) Read(ctx context.Context) ([]byte, error) {
	data, err := k.store.Get(ctx, k.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", k.key, err)
	}
	return data, nil
}

// Write replaces the value at the key.
func (k *KVSnapshot) Write(ctx context.Context, data []byte) error {
	if err := k.store.Set(ctx, k.key, data); err != nil {
		return fmt.Errorf("set %s: %w", k.key, err)
	}
	return nil
}
