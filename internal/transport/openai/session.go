package openai

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kailas-cloud/memoir/internal/domain"
)

// Status is the lifecycle of a stream session.
type Status int

const (
	// StatusPending means no token has arrived yet.
	StatusPending Status = iota
	// StatusPartial means at least one token has been accumulated.
	StatusPartial
	// StatusDone means the sentinel was seen and the future holds the text.
	StatusDone
	// StatusFailed means the stream ended with an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPartial:
		return "partial"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session owns the decode state of one streaming request. Deliveries are
// serialized by the session mutex and processed in call order.
type Session struct {
	id     string
	future *Future

	mu      sync.Mutex
	decoder *Decoder
	text    strings.Builder
	status  Status
	tokens  int
	dropped int
}

// newSession creates a session that resolves future.
func newSession(future *Future) *Session {
	return &Session{
		id:      uuid.NewString(),
		future:  future,
		decoder: NewDecoder(),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Deliver feeds one chunk of the response body. Chunks after the session
// finished are ignored.
func (s *Session) Deliver(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedLocked() {
		return
	}
	s.applyLocked(s.decoder.Feed(chunk))
}

// Close marks the end of the body. A stream that ends before [DONE] fails.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedLocked() {
		return
	}
	s.applyLocked(s.decoder.Flush())
	if !s.finishedLocked() {
		s.failLocked(fmt.Errorf("%w: stream ended before %s", domain.ErrTransport, doneMarker))
	}
}

// Fail ends the session with err unless it already finished.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedLocked() {
		return
	}
	s.failLocked(err)
}

// Finished reports whether the session reached done or failed.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedLocked()
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Stats returns the number of accumulated tokens and dropped events.
func (s *Session) Stats() (tokens, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.dropped
}

func (s *Session) applyLocked(b Batch) {
	for _, tok := range b.Tokens {
		s.text.WriteString(tok)
		s.tokens++
		s.status = StatusPartial
	}
	s.dropped += b.Dropped

	switch {
	case b.Err != nil:
		s.failLocked(b.Err)
	case b.Done:
		s.status = StatusDone
		s.future.resolve(s.text.String(), nil)
	}
}

func (s *Session) failLocked(err error) {
	s.status = StatusFailed
	s.future.resolve("", err)
}

func (s *Session) finishedLocked() bool {
	return s.status == StatusDone || s.status == StatusFailed
}

// chunkSize is the read size used when pulling a stream body.
const chunkSize = 4096

// pump feeds r into the session until the stream finishes or r is drained.
// It returns the read error that cut the body short; EOF closes the session.
func (s *Session) pump(r io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.Deliver(buf[:n])
			if s.Finished() {
				return nil
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			s.Close()
			return nil
		default:
			return err
		}
	}
}
