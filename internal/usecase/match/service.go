package match

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
	"github.com/kailas-cloud/memoir/internal/metrics"
)

// State is a step of one match run.
type State string

const (
	// Idle means no query has been submitted.
	Idle State = "idle"
	// AwaitingModel means the prompt was sent and the answer is pending.
	AwaitingModel State = "awaiting_model"
	// Resolved means the model answered; the outcome may or may not hold a photo.
	Resolved State = "resolved"
	// Failed means the completion failed.
	Failed State = "failed"
)

// Outcome is the terminal result of a match run.
// Resolved with Found=false is "nothing found", not an error.
type Outcome struct {
	State  State
	Answer string
	Record domphoto.Record
	Found  bool
}

// Service matches a free-text description to one photo using a chat model.
type Service struct {
	records RecordReader
	llm     Completer
	stream  bool
	logger  *zap.Logger
}

// New creates a match service. Streaming completions are used by default.
func New(records RecordReader, llm Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{records: records, llm: llm, stream: true, logger: logger}
}

// WithStreaming selects streamed (true) or single-shot (false) completions.
func (s *Service) WithStreaming(stream bool) *Service {
	s.stream = stream
	return s
}

// Match runs Idle -> AwaitingModel -> Resolved | Failed for query.
// If ctx ends while waiting, the pending completion is canceled.
func (s *Service) Match(ctx context.Context, query string) (Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Outcome{State: Idle}, fmt.Errorf("%w: query is required", domain.ErrInvalidPrompt)
	}

	records := s.records.List()
	if len(records) == 0 {
		s.logger.Debug("match skipped, library is empty")
		metrics.MatchOutcomesTotal.WithLabelValues("no_match").Inc()
		return Outcome{State: Resolved}, nil
	}

	msgs := buildPrompt(records, query)
	s.logger.Debug("match awaiting model",
		zap.Int("records", len(records)),
		zap.Bool("stream", s.stream),
	)

	answer, err := s.ask(ctx, msgs)
	if err != nil {
		metrics.MatchOutcomesTotal.WithLabelValues("failed").Inc()
		return Outcome{State: Failed}, fmt.Errorf("match %q: %w", query, err)
	}

	out := s.resolve(answer)
	if out.Found {
		metrics.MatchOutcomesTotal.WithLabelValues("matched").Inc()
	} else {
		metrics.MatchOutcomesTotal.WithLabelValues("no_match").Inc()
	}
	return out, nil
}

func (s *Service) ask(ctx context.Context, msgs []domain.Message) (string, error) {
	if !s.stream {
		answer, err := s.llm.CompleteOnce(ctx, msgs)
		if err != nil {
			return "", fmt.Errorf("complete: %w", err)
		}
		return answer, nil
	}

	pending, err := s.llm.Complete(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("start completion: %w", err)
	}
	defer pending.Cancel()

	answer, err := pending.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("await completion: %w", err)
	}
	return answer, nil
}

// resolve maps the model's answer back to a record with a path tag.
func (s *Service) resolve(answer string) Outcome {
	id := normalizeAnswer(answer)
	out := Outcome{State: Resolved, Answer: id}

	if id == "" || id == noneAnswer {
		s.logger.Debug("model found no matching photo")
		return out
	}

	rec, ok := s.records.Get(id)
	if !ok {
		s.logger.Info("model answered with unknown photo id", zap.String("answer", id))
		return out
	}
	if _, ok := rec.Path(); !ok {
		s.logger.Info("matched photo has no path tag", zap.String("id", id))
		return out
	}

	out.Record = rec
	out.Found = true
	return out
}
