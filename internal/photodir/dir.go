// Package photodir is the filesystem side of the photo library: it lists
// file names for rebuilds, stores imported image bytes and watches the
// directory for changes. Image content is treated as opaque bytes.
package photodir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// Dir is a flat directory of photo files.
type Dir struct {
	path string
}

// New creates a Dir rooted at path.
func New(path string) *Dir {
	return &Dir{path: filepath.Clean(path)}
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// List returns the sorted names of regular files in the directory.
// Filtering by extension is left to the record store.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w: %w", d.path, domain.ErrIO, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Import writes r as the file name inside the directory, replacing any existing file.
// Returns the path written.
func (d *Dir) Import(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w: %w", d.path, domain.ErrIO, err)
	}

	tmp, err := os.CreateTemp(d.path, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("import %s: %w: %w", name, domain.ErrIO, err)
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, readerWithContext(ctx, r))
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("import %s: %w: %w", name, domain.ErrIO, err)
	}

	target := filepath.Join(d.path, name)
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("import %s: %w: %w", name, domain.ErrIO, err)
	}
	return target, nil
}

// Open returns the bytes of the named photo. The caller closes the reader.
func (d *Dir) Open(name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.path, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("photo %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w: %w", name, domain.ErrIO, err)
	}
	return f, nil
}

// ValidateName accepts plain image file names only (no separators, no traversal).
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid photo name %q", domain.ErrInvalidRecord, name)
	}
	if !domphoto.IsImageName(name) {
		return fmt.Errorf("%w: %q is not a recognized image file", domain.ErrInvalidRecord, name)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
