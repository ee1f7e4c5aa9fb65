package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
	"github.com/kailas-cloud/memoir/internal/photodir"
	photorepo "github.com/kailas-cloud/memoir/internal/repository/photo"
	healthuc "github.com/kailas-cloud/memoir/internal/usecase/health"
	matchuc "github.com/kailas-cloud/memoir/internal/usecase/match"
	photouc "github.com/kailas-cloud/memoir/internal/usecase/photo"
)

// --- Test doubles ---

type memSnapshot struct {
	mu       sync.Mutex
	data     []byte
	writeErr error
}

func (m *memSnapshot) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSnapshot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memSnapshot) Location() string { return "memory" }

func (m *memSnapshot) Ping(_ context.Context) error { return nil }

type fixedCompletion struct {
	answer string
	err    error
}

func (f fixedCompletion) Wait(_ context.Context) (string, error) { return f.answer, f.err }
func (f fixedCompletion) Cancel()                                {}

type fakeCompleter struct {
	answer string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []domain.Message) (matchuc.Completion, error) {
	return fixedCompletion{answer: f.answer, err: f.err}, nil
}

func (f *fakeCompleter) CompleteOnce(_ context.Context, _ []domain.Message) (string, error) {
	return f.answer, f.err
}

type testEnv struct {
	handler http.Handler
	store   *photorepo.Store
	snap    *memSnapshot
	llm     *fakeCompleter
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, nil)
}

func newTestEnvWithLogger(t *testing.T, logger *zap.Logger) *testEnv {
	t.Helper()

	dir := t.TempDir()
	snap := &memSnapshot{}
	store := photorepo.New(snap, nil).WithPhotoDir(dir)
	photos := photodir.New(dir)
	llm := &fakeCompleter{}

	server := NewServer(
		photouc.New(store, photos, nil),
		matchuc.New(store, llm, nil),
		healthuc.New(snap, nil),
		logger,
	).WithMaxUpload(1024)

	r := gochi.NewRouter()
	server.RegisterRoutes(r)
	return &testEnv{handler: r, store: store, snap: snap, llm: llm, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, id string, tags ...string) {
	t.Helper()
	rec, err := domphoto.New(id, tags)
	if err != nil {
		t.Fatal(err)
	}
	e.store.Put(rec)
	if err := e.store.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}

// --- Tests ---

func TestPutAndGetPhoto(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/photos/a.png", strings.NewReader(`{"tags":["path: /p/a.png","beach"]}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("put: got %d, body %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/photos/a.png", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: got %d", rr.Code)
	}
	got := decode[PhotoResponse](t, rr)
	if got.ID != "a.png" || got.Path != "/p/a.png" || len(got.Tags) != 2 {
		t.Errorf("unexpected photo: %+v", got)
	}

	if !bytes.Contains(env.snap.data, []byte(`"a.png"`)) {
		t.Errorf("expected record persisted, snapshot %s", env.snap.data)
	}
}

func TestGetPhoto_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/photos/missing.png", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodePhotoNotFound {
		t.Errorf("code: got %s, want %s", resp.Code, CodePhotoNotFound)
	}
}

func TestPutPhoto_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPut, "/photos/a.png", strings.NewReader(`{"tags":`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestPutPhoto_SaveFailure(t *testing.T) {
	env := newTestEnv(t)
	env.snap.writeErr = errors.New("disk full")

	rr := env.do(t, http.MethodPut, "/photos/a.png", strings.NewReader(`{"tags":["x"]}`))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeStorageError {
		t.Errorf("code: got %s, want %s", resp.Code, CodeStorageError)
	}
	if !env.store.Dirty() {
		t.Error("store must stay dirty after failed save")
	}
}

func TestAppendTags(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "a.png", "x")

	rr := env.do(t, http.MethodPost, "/photos/a.png/tags", strings.NewReader(`{"tags":["y"]}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, body %s", rr.Code, rr.Body.String())
	}
	got := decode[PhotoResponse](t, rr)
	if len(got.Tags) != 2 || got.Tags[1] != "y" {
		t.Errorf("unexpected tags: %v", got.Tags)
	}
}

func TestAppendTags_Absent(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/photos/nope.png/tags", strings.NewReader(`{"tags":["y"]}`))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if env.store.Len() != 0 {
		t.Error("absent record must not be created")
	}
}

func TestAppendTags_Empty(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "a.png")

	rr := env.do(t, http.MethodPost, "/photos/a.png/tags", strings.NewReader(`{"tags":[]}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestListPhotos_ByTag(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "b.png", "cat")
	env.seed(t, "a.png", "cat", "dog")
	env.seed(t, "c.png", "dog")

	rr := env.do(t, http.MethodGet, "/photos?tag=cat", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	got := decode[PhotoListResponse](t, rr)
	if got.Count != 2 || got.Items[0].ID != "a.png" || got.Items[1].ID != "b.png" {
		t.Errorf("unexpected list: %+v", got)
	}

	rr = env.do(t, http.MethodGet, "/photos", nil)
	if got := decode[PhotoListResponse](t, rr); got.Count != 3 {
		t.Errorf("expected 3 photos, got %d", got.Count)
	}
}

func TestUploadAndDownloadImage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/photos/x.png/image?tag=beach&tag=sunset", strings.NewReader("pixels"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: got %d, body %s", rr.Code, rr.Body.String())
	}
	got := decode[PhotoResponse](t, rr)
	if len(got.Tags) != 4 || got.Tags[2] != "beach" || got.Tags[3] != "sunset" {
		t.Errorf("unexpected tags: %v", got.Tags)
	}
	if !strings.HasSuffix(got.Path, "/x.png") {
		t.Errorf("unexpected path: %s", got.Path)
	}

	rr = env.do(t, http.MethodGet, "/photos/x.png/image", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download: got %d", rr.Code)
	}
	if rr.Body.String() != "pixels" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: got %q", ct)
	}
}

func TestUploadImage_NotAnImage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/photos/notes.txt/image", strings.NewReader("text"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rr.Code)
	}
}

func TestUploadImage_TooLarge(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/photos/big.png/image", bytes.NewReader(make([]byte, 4096)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", rr.Code)
	}
	if env.store.Len() != 0 {
		t.Error("oversized upload must not create a record")
	}
}

func TestRebuildAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "stale.png", "x")
	for _, name := range []string{"a.png", "b.txt", "C.JPG"} {
		if err := os.WriteFile(filepath.Join(env.dir, name), []byte("data"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	rr := env.do(t, http.MethodPost, "/photos/rebuild", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("rebuild: got %d, body %s", rr.Code, rr.Body.String())
	}
	if got := decode[RebuildResponse](t, rr); got.Count != 2 {
		t.Errorf("expected 2 records, got %d", got.Count)
	}
	if _, ok := env.store.Get("stale.png"); ok {
		t.Error("rebuild must drop records without files")
	}

	rr = env.do(t, http.MethodDelete, "/photos", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear: got %d", rr.Code)
	}
	if env.store.Len() != 0 {
		t.Error("expected empty store")
	}
}

func TestMatch(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "x.png", "path: /p/x.png", "beach", "sunset")
	env.seed(t, "y.png", "path: /p/y.png", "cat")

	tests := []struct {
		name     string
		answer   string
		err      error
		body     string
		wantCode int
		wantErr  ErrorResponseCode
	}{
		{name: "found", answer: "x.png", body: `{"query":"sunset at the beach"}`, wantCode: http.StatusOK},
		{name: "no match", answer: "z.png", body: `{"query":"a dog"}`,
			wantCode: http.StatusNotFound, wantErr: CodeNoMatch},
		{name: "empty query", body: `{"query":""}`,
			wantCode: http.StatusUnprocessableEntity, wantErr: CodeInvalidPrompt},
		{name: "provider failure", err: domain.ErrTransport, body: `{"query":"beach"}`,
			wantCode: http.StatusBadGateway, wantErr: CodeProviderError},
		{name: "provider timeout", err: context.DeadlineExceeded, body: `{"query":"beach"}`,
			wantCode: http.StatusGatewayTimeout, wantErr: CodeProviderTimeout},
		{name: "bad body", body: `nope`, wantCode: http.StatusBadRequest, wantErr: CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.llm.answer, env.llm.err = tt.answer, tt.err

			rr := env.do(t, http.MethodPost, "/match", strings.NewReader(tt.body))
			if rr.Code != tt.wantCode {
				t.Fatalf("got %d, want %d (body %s)", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantErr != "" {
				resp := decode[ErrorResponse](t, rr)
				if resp.Code != tt.wantErr {
					t.Errorf("code: got %s, want %s", resp.Code, tt.wantErr)
				}
				return
			}
			resp := decode[MatchResponse](t, rr)
			if resp.Photo.ID != "x.png" || resp.Photo.Path != "/p/x.png" {
				t.Errorf("unexpected match: %+v", resp)
			}
		})
	}
}

func TestMatch_NoMatchBody(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "x.png", "path: /p/x.png")
	env.llm.answer = "NONE"

	rr := env.do(t, http.MethodPost, "/match", strings.NewReader(`{"query":"a dog"}`))
	resp := decode[ErrorResponse](t, rr)
	if resp.Code != CodeNoMatch || resp.Message != "nothing found" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["store"] != "ok" {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/collections", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error, got %q", ct)
	}
}

func TestSafeDomainMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{domain.ErrNoMatch, "nothing found"},
		{errors.Join(errors.New("secret detail"), domain.ErrIO), "io error"},
		{errors.New("db password leaked"), "internal error"},
		{context.DeadlineExceeded, context.DeadlineExceeded.Error()},
	}
	for _, tt := range tests {
		if got := safeDomainMessage(tt.err); got != tt.want {
			t.Errorf("safeDomainMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMatch_ClientGoneIsNotAnInternalError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	env := newTestEnvWithLogger(t, zap.New(core))
	env.seed(t, "x.png", "path: /p/x.png", "beach")
	env.llm.err = context.Canceled

	rr := env.do(t, http.MethodPost, "/match", strings.NewReader(`{"query":"beach"}`))
	if rr.Code != 499 {
		t.Fatalf("got %d, want 499 (body %s)", rr.Code, rr.Body.String())
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeClientClosed {
		t.Errorf("code: got %s, want %s", resp.Code, CodeClientClosed)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no error logs, got %d", logs.Len())
	}
}
