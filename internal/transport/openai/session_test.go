package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/kailas-cloud/memoir/internal/domain"
)

func newTestSession() (*Session, *Future) {
	f := newFuture(nil)
	return newSession(f), f
}

func TestSession_StatusTransitions(t *testing.T) {
	s, f := newTestSession()
	if s.Status() != StatusPending {
		t.Fatalf("initial status = %s", s.Status())
	}

	s.Deliver([]byte(event("Hi")))
	if s.Status() != StatusPartial {
		t.Fatalf("status after token = %s", s.Status())
	}
	if f.Resolved() {
		t.Fatal("future resolved before [DONE]")
	}

	s.Deliver([]byte("data: [DONE]\n"))
	if s.Status() != StatusDone {
		t.Fatalf("status after done = %s", s.Status())
	}
	text, err := f.Wait(context.Background())
	if err != nil || text != "Hi" {
		t.Errorf("Wait = %q, %v", text, err)
	}
}

func TestSession_ResolvesExactlyOnce(t *testing.T) {
	s, f := newTestSession()
	s.Deliver([]byte(event("Hello") + "data: [DONE]\n"))
	s.Deliver([]byte(event(" again") + "data: [DONE]\n"))
	s.Fail(errors.New("late failure"))
	s.Close()

	text, err := f.Wait(context.Background())
	if err != nil || text != "Hello" {
		t.Errorf("Wait = %q, %v", text, err)
	}
	if f.resolve("other", nil) {
		t.Error("future accepted a second resolution")
	}
	if s.Status() != StatusDone {
		t.Errorf("status = %s", s.Status())
	}
}

func TestSession_CloseBeforeDoneFails(t *testing.T) {
	s, f := newTestSession()
	s.Deliver([]byte(event("partial")))
	s.Close()

	_, err := f.Wait(context.Background())
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if s.Status() != StatusFailed {
		t.Errorf("status = %s", s.Status())
	}
}

func TestSession_CloseFlushesTrailingSentinel(t *testing.T) {
	s, f := newTestSession()
	s.Deliver([]byte(event("ok") + "data: [DONE]"))
	s.Close()

	text, err := f.Wait(context.Background())
	if err != nil || text != "ok" {
		t.Errorf("Wait = %q, %v", text, err)
	}
}

func TestSession_ConcurrentDeliveriesAreSerialized(t *testing.T) {
	s, f := newTestSession()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Deliver([]byte(event("x")))
		}()
	}
	wg.Wait()
	s.Deliver([]byte("data: [DONE]\n"))

	text, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(text) != 50 {
		t.Errorf("accumulated %d tokens, want 50", len(text))
	}
	tokens, dropped := s.Stats()
	if tokens != 50 || dropped != 0 {
		t.Errorf("stats = %d, %d", tokens, dropped)
	}
}

func TestSession_IDsAreUnique(t *testing.T) {
	a, _ := newTestSession()
	b, _ := newTestSession()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids: %q %q", a.ID(), b.ID())
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{
		StatusPending: "pending",
		StatusPartial: "partial",
		StatusDone:    "done",
		StatusFailed:  "failed",
		Status(9):     "status(9)",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", int(s), s.String(), want)
		}
	}
}

func TestFuture_WaitRespectsContext(t *testing.T) {
	f := newFuture(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if f.Resolved() {
		t.Error("abandoning the wait must not resolve the future")
	}
}

func TestFuture_CancelResolvesAndCancelsRequest(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	f := newFuture(cancel)

	f.Cancel()
	f.Cancel()

	_, err := f.Wait(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reqCtx.Err() == nil {
		t.Error("request context not canceled")
	}
}

func TestFuture_CancelAfterResolutionKeepsValue(t *testing.T) {
	f := newFuture(nil)
	f.resolve("done", nil)
	f.Cancel()

	text, err := f.Wait(context.Background())
	if err != nil || text != "done" {
		t.Errorf("Wait = %q, %v", text, err)
	}
}

func TestFuture_ManyWaiters(t *testing.T) {
	f := newFuture(nil)
	results := make(chan string, 10)
	for i := 0; i < 10; i++ {
		go func() {
			text, _ := f.Wait(context.Background())
			results <- text
		}()
	}
	f.resolve("v", nil)
	for i := 0; i < 10; i++ {
		select {
		case got := <-results:
			if got != "v" {
				t.Errorf("waiter %d got %q", i, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("waiter %d never woke", i)
		}
	}
}

func TestSessionPump_ByteAtATime(t *testing.T) {
	s, f := newTestSession()
	stream := event("Hel") + "data: nonsense\n" + event("lo") + "data: [DONE]\n" + event("ignored")

	if err := s.pump(iotest.OneByteReader(strings.NewReader(stream))); err != nil {
		t.Fatalf("pump: %v", err)
	}
	text, err := f.Wait(context.Background())
	if err != nil || text != "Hello" {
		t.Errorf("Wait = %q, %v", text, err)
	}
	if _, dropped := s.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestSessionPump_StopsReadingAfterDone(t *testing.T) {
	s, f := newTestSession()
	boom := errors.New("read past the end")
	body := io.MultiReader(strings.NewReader(event("ok")+"data: [DONE]\n"), iotest.ErrReader(boom))

	if err := s.pump(body); err != nil {
		t.Fatalf("pump read past [DONE]: %v", err)
	}
	if text, err := f.Wait(context.Background()); err != nil || text != "ok" {
		t.Errorf("Wait = %q, %v", text, err)
	}
}

func TestSessionPump_EOFBeforeDone(t *testing.T) {
	s, f := newTestSession()

	if err := s.pump(strings.NewReader(event("cut"))); err != nil {
		t.Fatalf("EOF is not a read error: %v", err)
	}
	if _, err := f.Wait(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestSessionPump_UnterminatedDoneAtEOF(t *testing.T) {
	s, f := newTestSession()

	if err := s.pump(strings.NewReader(event("fin") + "data: [DONE]")); err != nil {
		t.Fatalf("pump: %v", err)
	}
	if text, err := f.Wait(context.Background()); err != nil || text != "fin" {
		t.Errorf("Wait = %q, %v", text, err)
	}
}

func TestSessionPump_ReadError(t *testing.T) {
	s, f := newTestSession()
	boom := errors.New("connection reset")

	err := s.pump(io.MultiReader(strings.NewReader(event("a")), iotest.ErrReader(boom)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
	if f.Resolved() {
		t.Error("future resolved by pump on a read error; the caller decides how to fail")
	}
}
