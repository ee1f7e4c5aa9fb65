package memoir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/memoir/internal/db/redis"
	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
	"github.com/kailas-cloud/memoir/internal/photodir"
	photorepo "github.com/kailas-cloud/memoir/internal/repository/photo"
	openaiChat "github.com/kailas-cloud/memoir/internal/transport/openai"
	healthuc "github.com/kailas-cloud/memoir/internal/usecase/health"
	matchuc "github.com/kailas-cloud/memoir/internal/usecase/match"
	photouc "github.com/kailas-cloud/memoir/internal/usecase/photo"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped out in tests.
type photoUseCase interface {
	List() []domphoto.Record
	FindByTag(tag string) []domphoto.Record
	Get(id string) (domphoto.Record, error)
	Put(ctx context.Context, id string, tags []string) (domphoto.Record, error)
	AppendTags(ctx context.Context, id string, tags []string) (domphoto.Record, error)
	Import(ctx context.Context, name string, r io.Reader, extra []string) (domphoto.Record, error)
	Rebuild(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

type matchUseCase interface {
	Match(ctx context.Context, query string) (matchuc.Outcome, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Client is the memoir library entry point.
type Client struct {
	closeFn   func()
	backend   pinger
	photoSvc  photoUseCase
	matchSvc  matchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New opens the record store, loads the persisted document and wires the
// match workflow. The provided context bounds backend readiness and loading.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{stream: true}
	for _, o := range opts {
		o.apply(cfg)
	}

	snap, closeFn, err := createSnapshot(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		closeFn()
		return nil, err
	}

	store := photorepo.New(snap, zap.NewNop()).WithPhotoDir(cfg.photoDir)
	if err := store.Load(ctx); err != nil {
		closeFn()
		return nil, fmt.Errorf("memoir: load records: %w", err)
	}

	var completer matchuc.Completer = noopCompleter{}
	var checker healthuc.CompletionChecker
	if cfg.apiKey != "" {
		chat := openaiChat.NewClient(chatConfig(cfg))
		completer = &chatCompleter{client: chat}
		checker = chat
	}

	return &Client{
		closeFn:   closeFn,
		backend:   snap,
		photoSvc:  photouc.New(store, photodir.New(cfg.photoDir), zap.NewNop()),
		matchSvc:  matchuc.New(store, completer, zap.NewNop()).WithStreaming(cfg.stream),
		healthSvc: healthuc.New(snap, checker),
		obs:       obs,
	}, nil
}

// snapshot is a record backend that can report its availability.
type snapshot interface {
	photorepo.Snapshot
	pinger
}

func createSnapshot(ctx context.Context, cfg *clientConfig) (snapshot, func(), error) {
	switch cfg.backend {
	case "file":
		if cfg.storePath == "" {
			return nil, nil, errors.New("memoir: file store path required")
		}
		return photorepo.NewFileSnapshot(cfg.storePath), func() {}, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("memoir: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("memoir: redis not ready: %w", err)
		}
		key := cfg.redisKey
		if key == "" {
			key = "memoir:photos"
		}
		return &kvSnapshot{KVSnapshot: photorepo.NewKVSnapshot(s, key), pinger: s}, s.Close, nil
	case "":
		return nil, nil, errors.New("memoir: record store required (use WithFileStore or WithRedis)")
	default:
		return nil, nil, fmt.Errorf("memoir: unknown store backend %q", cfg.backend)
	}
}

type kvSnapshot struct {
	*photorepo.KVSnapshot
	pinger
}

func chatConfig(cfg *clientConfig) *openaiChat.Config {
	def := domain.DefaultCompletionConfig()
	out := &openaiChat.Config{
		APIKey:      cfg.apiKey,
		BaseURL:     cfg.baseURL,
		Model:       cfg.model,
		Temperature: def.Temperature,
		TopP:        def.TopP,
		Timeout:     cfg.timeout,
		Provider:    "openai",
	}
	if out.BaseURL == "" {
		out.BaseURL = "https://api.openai.com/v1"
	}
	if out.Model == "" {
		out.Model = def.Model
	}
	if cfg.temperature != nil {
		out.Temperature = *cfg.temperature
	}
	if cfg.topP != nil {
		out.TopP = *cfg.topP
	}
	return out
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks record backend availability.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Photos returns the photo record service.
func (c *Client) Photos() *PhotoService {
	return &PhotoService{svc: c.photoSvc, obs: c.obs}
}

// Match asks the model which photo fits query.
func (c *Client) Match(ctx context.Context, query string) (res MatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observeMatch(start, res, err) }()

	out, err := c.matchSvc.Match(ctx, query)
	if err != nil {
		return MatchResult{}, fmt.Errorf("match: %w", err)
	}
	res = MatchResult{Found: out.Found, Answer: out.Answer}
	if out.Found {
		res.Photo = photoFromDomain(&out.Record)
	}
	return res, nil
}

// chatCompleter wraps the chat client to satisfy the match workflow.
type chatCompleter struct {
	client *openaiChat.Client
}

func (a *chatCompleter) Complete(ctx context.Context, msgs []domain.Message) (matchuc.Completion, error) {
	f, err := a.client.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (a *chatCompleter) CompleteOnce(ctx context.Context, msgs []domain.Message) (string, error) {
	return a.client.CompleteOnce(ctx, msgs)
}

// noopCompleter fails every call (used when no completion endpoint is configured).
type noopCompleter struct{}

var errCompletionNotConfigured = errors.New("memoir: completion not configured (use WithCompletion)")

func (noopCompleter) Complete(_ context.Context, _ []domain.Message) (matchuc.Completion, error) {
	return nil, errCompletionNotConfigured
}

func (noopCompleter) CompleteOnce(_ context.Context, _ []domain.Message) (string, error) {
	return "", errCompletionNotConfigured
}
