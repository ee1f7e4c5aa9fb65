package memoir

import (
	"context"
	"io"

	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
	matchuc "github.com/kailas-cloud/memoir/internal/usecase/match"
)

// --- photoUseCase mock ---

type mockPhotoUC struct {
	listFn       func() []domphoto.Record
	findFn       func(tag string) []domphoto.Record
	getFn        func(id string) (domphoto.Record, error)
	putFn        func(ctx context.Context, id string, tags []string) (domphoto.Record, error)
	appendTagsFn func(ctx context.Context, id string, tags []string) (domphoto.Record, error)
	importFn     func(ctx context.Context, name string, r io.Reader, extra []string) (domphoto.Record, error)
	rebuildFn    func(ctx context.Context) (int, error)
	clearFn      func(ctx context.Context) error
}

func (m *mockPhotoUC) List() []domphoto.Record { return m.listFn() }

func (m *mockPhotoUC) FindByTag(tag string) []domphoto.Record { return m.findFn(tag) }

func (m *mockPhotoUC) Get(id string) (domphoto.Record, error) { return m.getFn(id) }

func (m *mockPhotoUC) Put(ctx context.Context, id string, tags []string) (domphoto.Record, error) {
	return m.putFn(ctx, id, tags)
}

func (m *mockPhotoUC) AppendTags(ctx context.Context, id string, tags []string) (domphoto.Record, error) {
	return m.appendTagsFn(ctx, id, tags)
}

func (m *mockPhotoUC) Import(
	ctx context.Context, name string, r io.Reader, extra []string,
) (domphoto.Record, error) {
	return m.importFn(ctx, name, r, extra)
}

func (m *mockPhotoUC) Rebuild(ctx context.Context) (int, error) { return m.rebuildFn(ctx) }

func (m *mockPhotoUC) Clear(ctx context.Context) error { return m.clearFn(ctx) }

// --- matchUseCase mock ---

type mockMatchUC struct {
	matchFn func(ctx context.Context, query string) (matchuc.Outcome, error)
}

func (m *mockMatchUC) Match(ctx context.Context, query string) (matchuc.Outcome, error) {
	return m.matchFn(ctx, query)
}

// --- helpers ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

func testClient(photoSvc photoUseCase, matchSvc matchUseCase) *Client {
	return &Client{
		backend:  &mockPinger{},
		photoSvc: photoSvc,
		matchSvc: matchSvc,
	}
}
