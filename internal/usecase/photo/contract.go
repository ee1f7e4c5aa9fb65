package photo

import (
	"context"
	"io"

	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// Repository defines the record store contract.
type Repository interface {
	Put(rec domphoto.Record)
	AppendTags(id string, newTags []string) bool
	FindByTag(tag string) []string
	Get(id string) (domphoto.Record, bool)
	List() []domphoto.Record
	Save(ctx context.Context) error
	Rebuild(ctx context.Context, listing []string) error
	Reconcile(ctx context.Context, listing []string) (added, removed int, err error)
	Clear(ctx context.Context) error
}

// Directory lists and stores photo files.
type Directory interface {
	Path() string
	List(ctx context.Context) ([]string, error)
	Import(ctx context.Context, name string, r io.Reader) (string, error)
	Open(name string) (io.ReadCloser, error)
}
