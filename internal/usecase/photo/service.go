package photo

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// Service handles photo records. Every mutation is written through to the snapshot.
type Service struct {
	repo   Repository
	dir    Directory
	now    func() time.Time
	logger *zap.Logger
}

// New creates a photo service.
func New(repo Repository, dir Directory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, dir: dir, now: time.Now, logger: logger}
}

// WithClock overrides the time source for saved-at tags.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns every record sorted by id.
func (s *Service) List() []domphoto.Record {
	return s.repo.List()
}

// FindByTag returns the records carrying tag exactly, sorted by id.
func (s *Service) FindByTag(tag string) []domphoto.Record {
	ids := s.repo.FindByTag(tag)
	out := make([]domphoto.Record, 0, len(ids))
	for _, id := range ids {
		// A concurrent Clear may remove the record between the two reads.
		if rec, ok := s.repo.Get(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Get returns the record for id.
func (s *Service) Get(id string) (domphoto.Record, error) {
	rec, ok := s.repo.Get(id)
	if !ok {
		return domphoto.Record{}, fmt.Errorf("photo %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Put replaces the record's tag list wholesale and saves.
func (s *Service) Put(ctx context.Context, id string, tags []string) (domphoto.Record, error) {
	rec, err := domphoto.New(id, tags)
	if err != nil {
		return domphoto.Record{}, err
	}

	s.repo.Put(rec)
	if err := s.repo.Save(ctx); err != nil {
		return domphoto.Record{}, fmt.Errorf("put photo %s: %w", id, err)
	}
	return rec, nil
}

// AppendTags adds tags to an existing record and saves.
func (s *Service) AppendTags(ctx context.Context, id string, tags []string) (domphoto.Record, error) {
	if !s.repo.AppendTags(id, tags) {
		return domphoto.Record{}, fmt.Errorf("photo %s: %w", id, domain.ErrNotFound)
	}
	if err := s.repo.Save(ctx); err != nil {
		return domphoto.Record{}, fmt.Errorf("append tags to %s: %w", id, err)
	}
	return s.Get(id)
}

// Import stores image bytes under name and records it with a fresh path tag,
// a fresh saved-at tag and any extra tags. Re-importing an existing id
// replaces the file but keeps the record's user tags.
func (s *Service) Import(ctx context.Context, name string, r io.Reader, extra []string) (domphoto.Record, error) {
	written, err := s.dir.Import(ctx, name, r)
	if err != nil {
		return domphoto.Record{}, fmt.Errorf("import photo: %w", err)
	}

	tags := domphoto.SynthesizeTags(name, s.dir.Path(), s.now())
	if prev, ok := s.repo.Get(name); ok {
		tags = append(tags, prev.UserTags()...)
	}
	for _, t := range extra {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	rec, err := s.Put(ctx, name, tags)
	if err != nil {
		return domphoto.Record{}, err
	}

	s.logger.Info("photo imported", zap.String("id", name), zap.String("file", written))
	return rec, nil
}

// Open returns the image bytes of a recorded photo. The caller closes the reader.
func (s *Service) Open(id string) (io.ReadCloser, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	rc, err := s.dir.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	return rc, nil
}

// Rebuild rescans the photo directory and replaces every record.
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	listing, err := s.dir.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list photos: %w", err)
	}
	if err := s.repo.Rebuild(ctx, listing); err != nil {
		return 0, fmt.Errorf("rebuild records: %w", err)
	}
	return len(s.repo.List()), nil
}

// Reconcile adds records for new images in the photo directory and drops
// records of deleted ones. Existing tag lists are kept.
func (s *Service) Reconcile(ctx context.Context) (added, removed int, err error) {
	listing, err := s.dir.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list photos: %w", err)
	}
	added, removed, err = s.repo.Reconcile(ctx, listing)
	if err != nil {
		return added, removed, fmt.Errorf("reconcile records: %w", err)
	}
	return added, removed, nil
}

// Clear removes every record and saves.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
