package photo

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/memoir/internal/domain"
)

const (
	// PathTagPrefix marks the tag holding the photo location.
	PathTagPrefix = "path: "
	// SavedAtTagPrefix marks the tag holding the time the photo was recorded.
	SavedAtTagPrefix = "saved at: "
)

// imageExtensions is the recognized image extension set (lower case, no dot).
var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tiff": {},
}

// Record is a photo identifier plus its ordered tag list (immutable value object).
type Record struct {
	id   string
	tags []string
}

// New validates and creates a Record. Tags may be empty.
func New(id string, tags []string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return Record{}, fmt.Errorf("%w: photo id is required", domain.ErrInvalidRecord)
	}
	return Record{id: id, tags: slices.Clone(tags)}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(id string, tags []string) Record {
	return Record{id: id, tags: tags}
}

// ID returns the photo identifier.
func (r *Record) ID() string { return r.id }

// Tags returns a copy of the tag list in insertion order.
func (r *Record) Tags() []string { return slices.Clone(r.tags) }

// HasTag reports whether the tag list contains tag exactly.
func (r *Record) HasTag(tag string) bool { return slices.Contains(r.tags, tag) }

// Path returns the value of the first path tag.
func (r *Record) Path() (string, bool) {
	for _, t := range r.tags {
		if v, ok := strings.CutPrefix(t, PathTagPrefix); ok {
			return v, true
		}
	}
	return "", false
}

// DescriptiveTags returns every tag except path tags, order kept.
func (r *Record) DescriptiveTags() []string {
	out := make([]string, 0, len(r.tags))
	for _, t := range r.tags {
		if IsPathTag(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// UserTags returns the tags that are neither path nor saved-at tags, order kept.
func (r *Record) UserTags() []string {
	out := make([]string, 0, len(r.tags))
	for _, t := range r.tags {
		if IsPathTag(t) || IsSavedAtTag(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsPathTag reports whether tag is a path tag.
func IsPathTag(tag string) bool { return strings.HasPrefix(tag, PathTagPrefix) }

// IsSavedAtTag reports whether tag is a saved-at tag.
func IsSavedAtTag(tag string) bool { return strings.HasPrefix(tag, SavedAtTagPrefix) }

// IsImageName reports whether name carries a recognized image extension (case-insensitive).
func IsImageName(name string) bool {
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	_, ok := imageExtensions[strings.ToLower(ext[1:])]
	return ok
}

// PhotoPath is the path tag value of a photo named name inside dir.
func PhotoPath(name, dir string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

// SynthesizeTags builds the tag list for a photo discovered in dir: a path tag and a saved-at tag.
func SynthesizeTags(name, dir string, now time.Time) []string {
	return []string{
		PathTagPrefix + PhotoPath(name, dir),
		SavedAtTagPrefix + now.UTC().Format(time.RFC3339),
	}
}
