package memoir

import (
	"context"
	"fmt"
	"io"
	"time"
)

// PhotoService manages photo records. Mutations are saved before returning.
type PhotoService struct {
	svc photoUseCase
	obs *observer
}

// List returns every photo sorted by id.
func (s *PhotoService) List() []Photo {
	return photosFromDomain(s.svc.List())
}

// FindByTag returns photos carrying tag exactly, sorted by id.
func (s *PhotoService) FindByTag(tag string) []Photo {
	return photosFromDomain(s.svc.FindByTag(tag))
}

// Get returns a photo by id.
func (s *PhotoService) Get(id string) (Photo, error) {
	rec, err := s.svc.Get(id)
	if err != nil {
		return Photo{}, fmt.Errorf("get photo: %w", err)
	}
	return photoFromDomain(&rec), nil
}

// Put inserts or replaces a photo's tag list.
func (s *PhotoService) Put(ctx context.Context, id string, tags []string) (p Photo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("photos.put", start, err) }()

	rec, err := s.svc.Put(ctx, id, tags)
	if err != nil {
		return Photo{}, fmt.Errorf("put photo: %w", err)
	}
	return photoFromDomain(&rec), nil
}

// AppendTags adds tags to an existing photo. Unknown ids return ErrNotFound.
func (s *PhotoService) AppendTags(ctx context.Context, id string, tags ...string) (p Photo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("photos.append_tags", start, err) }()

	rec, err := s.svc.AppendTags(ctx, id, tags)
	if err != nil {
		return Photo{}, fmt.Errorf("append tags: %w", err)
	}
	return photoFromDomain(&rec), nil
}

// Import writes image bytes into the photo directory and records them.
func (s *PhotoService) Import(ctx context.Context, name string, r io.Reader, tags ...string) (p Photo, err error) {
	start := time.Now()
	defer func() { s.obs.observe("photos.import", start, err) }()

	rec, err := s.svc.Import(ctx, name, r, tags)
	if err != nil {
		return Photo{}, fmt.Errorf("import photo: %w", err)
	}
	return photoFromDomain(&rec), nil
}

// Rebuild replaces every record with one per image in the photo directory.
func (s *PhotoService) Rebuild(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { s.obs.observeRebuild(start, n, err) }()

	n, err = s.svc.Rebuild(ctx)
	if err != nil {
		return 0, fmt.Errorf("rebuild: %w", err)
	}
	return n, nil
}

// Clear removes every record.
func (s *PhotoService) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.obs.observe("photos.clear", start, err) }()

	if err = s.svc.Clear(ctx); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}
