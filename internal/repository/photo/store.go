package photo

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// Store is the in-memory id -> tags map with whole-document persistence.
// The mutex covers both the map and snapshot I/O, so concurrent Save/Load
// never interleave.
type Store struct {
	mu       sync.RWMutex
	records  map[string][]string
	snap     Snapshot
	dirty    bool
	photoDir string
	now      func() time.Time
	logger   *zap.Logger
}

// New creates an empty store persisted through snap.
func New(snap Snapshot, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		records: make(map[string][]string),
		snap:    snap,
		now:     time.Now,
		logger:  logger,
	}
}

// WithPhotoDir sets the directory used for path tags synthesized by Rebuild.
func (s *Store) WithPhotoDir(dir string) *Store {
	s.photoDir = dir
	return s
}

// WithClock overrides the time source for saved-at tags.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// PhotoDir returns the directory used for synthesized path tags.
func (s *Store) PhotoDir() string { return s.photoDir }

// Put inserts or replaces the tag list for the record's id.
func (s *Store) Put(rec domphoto.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(rec.ID(), rec.Tags())
}

func (s *Store) putLocked(id string, tags []string) {
	if tags == nil {
		tags = []string{}
	}
	s.records[id] = tags
	s.dirty = true
}

// AppendTags concatenates newTags to the record's tag list. Returns false if id is unknown.
func (s *Store) AppendTags(id string, newTags []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags, ok := s.records[id]
	if !ok {
		s.logger.Debug("append tags to unknown photo ignored", zap.String("id", id))
		return false
	}
	merged := make([]string, 0, len(tags)+len(newTags))
	merged = append(merged, tags...)
	merged = append(merged, newTags...)
	s.records[id] = merged
	s.dirty = true
	return true
}

// FindByTag returns the sorted ids whose tag list contains tag exactly.
func (s *Store) FindByTag(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, tags := range s.records {
		if slices.Contains(tags, tag) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Get returns the record for id.
func (s *Store) Get(id string) (domphoto.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tags, ok := s.records[id]
	if !ok {
		return domphoto.Record{}, false
	}
	return domphoto.Reconstruct(id, slices.Clone(tags)), true
}

// List returns every record sorted by id.
func (s *Store) List() []domphoto.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]domphoto.Record, len(ids))
	for i, id := range ids {
		out[i] = domphoto.Reconstruct(id, slices.Clone(s.records[id]))
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dirty reports whether memory holds changes the snapshot does not.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Save serializes the whole map, then overwrites the snapshot.
// On failure memory is kept and the store stays dirty.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := s.snap.Write(ctx, data); err != nil {
		s.dirty = true
		return fmt.Errorf("save records to %s: %w: %w", s.snap.Location(), domain.ErrIO, err)
	}
	s.dirty = false
	s.logger.Debug("records saved",
		zap.String("location", s.snap.Location()),
		zap.Int("records", len(s.records)),
	)
	return nil
}

// Load replaces memory with the snapshot content. A missing snapshot loads as empty.
// On failure memory is left unchanged.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.snap.Read(ctx)
	if err != nil {
		return fmt.Errorf("load records from %s: %w: %w", s.snap.Location(), domain.ErrIO, err)
	}

	records := make(map[string][]string)
	if data != nil {
		records, err = decodeRecords(data)
		if err != nil {
			return fmt.Errorf("load records from %s: %w", s.snap.Location(), err)
		}
	}

	s.records = records
	s.dirty = false
	s.logger.Debug("records loaded",
		zap.String("location", s.snap.Location()),
		zap.Int("records", len(records)),
	)
	return nil
}

// decodeRecords parses an object of string -> string array.
func decodeRecords(data []byte) (map[string][]string, error) {
	var records map[string][]string
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: document is not an object", domain.ErrParse)
	}
	for id, tags := range records {
		if id == "" {
			return nil, fmt.Errorf("%w: empty photo id", domain.ErrParse)
		}
		if tags == nil {
			records[id] = []string{}
		}
	}
	return records, nil
}

// Rebuild discards every record, then inserts each image name from listing
// with a path tag and a saved-at tag, then saves.
func (s *Store) Rebuild(ctx context.Context, listing []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.records = make(map[string][]string, len(listing))
	s.dirty = true
	for _, name := range listing {
		if name == "" || !domphoto.IsImageName(name) {
			continue
		}
		s.putLocked(name, domphoto.SynthesizeTags(name, s.photoDir, now))
	}

	s.logger.Info("records rebuilt",
		zap.Int("listed", len(listing)),
		zap.Int("records", len(s.records)),
	)
	return s.saveLocked(ctx)
}

// Reconcile aligns the records with listing and keeps every existing tag list.
// Image names without a record are added with synthesized tags. Records whose
// path tag points at a file in the photo directory that is no longer listed
// are dropped. Records pointing elsewhere, or without a path tag, stay. The
// store is saved only when something changed.
func (s *Store) Reconcile(ctx context.Context, listing []string) (added, removed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]struct{}, len(listing))
	now := s.now()
	for _, name := range listing {
		if name == "" || !domphoto.IsImageName(name) {
			continue
		}
		present[name] = struct{}{}
		if _, ok := s.records[name]; ok {
			continue
		}
		s.putLocked(name, domphoto.SynthesizeTags(name, s.photoDir, now))
		added++
	}

	for id, tags := range s.records {
		if _, ok := present[id]; ok {
			continue
		}
		rec := domphoto.Reconstruct(id, tags)
		if p, ok := rec.Path(); ok && p == domphoto.PhotoPath(id, s.photoDir) {
			delete(s.records, id)
			s.dirty = true
			removed++
		}
	}

	if added == 0 && removed == 0 {
		return 0, 0, nil
	}
	s.logger.Info("records reconciled",
		zap.Int("added", added),
		zap.Int("removed", removed),
		zap.Int("records", len(s.records)),
	)
	return added, removed, s.saveLocked(ctx)
}

// Clear removes every record, then saves.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string][]string)
	s.dirty = true
	return s.saveLocked(ctx)
}
