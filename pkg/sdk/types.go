package memoir

import domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"

// Photo is one record of the library.
type Photo struct {
	ID   string
	Tags []string
	// Path is the value of the path tag, empty if the record has none.
	Path string
}

// MatchResult is the outcome of Client.Match. Found=false means the model
// picked nothing usable; it is not an error.
type MatchResult struct {
	Photo  Photo
	Found  bool
	Answer string
}

func photoFromDomain(rec *domphoto.Record) Photo {
	p := Photo{ID: rec.ID(), Tags: rec.Tags()}
	if path, ok := rec.Path(); ok {
		p.Path = path
	}
	return p
}

func photosFromDomain(recs []domphoto.Record) []Photo {
	out := make([]Photo, len(recs))
	for i := range recs {
		out[i] = photoFromDomain(&recs[i])
	}
	return out
}
