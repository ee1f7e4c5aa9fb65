package match

import (
	"context"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
)

// RecordReader reads photo records.
type RecordReader interface {
	List() []domphoto.Record
	Get(id string) (domphoto.Record, bool)
}

// Completion is a pending model answer.
type Completion interface {
	Wait(ctx context.Context) (string, error)
	Cancel()
}

// Completer asks a chat model for an answer, streamed or single-shot.
type Completer interface {
	Complete(ctx context.Context, msgs []domain.Message) (Completion, error)
	CompleteOnce(ctx context.Context, msgs []domain.Message) (string, error)
}
