package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/domain"
	"github.com/kailas-cloud/memoir/internal/metrics"
)

const (
	modeStream = "stream"
	modeOnce   = "once"

	errorBodyLimit = 512
)

// Config holds the chat-completion provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	TopP        float32
	// Timeout bounds a whole completion, from request to resolution. Zero means no deadline.
	Timeout    time.Duration
	Provider   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
// Streaming requests are decoded by Decoder; single-shot requests go through go-openai.
type Client struct {
	api         *openai.Client
	http        *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float32
	topP        float32
	timeout     time.Duration
	provider    string
	logger      *zap.Logger
}

// NewClient creates a chat-completion client.
func NewClient(cfg *Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpClient

	return &Client{
		api:         openai.NewClientWithConfig(clientCfg),
		http:        httpClient,
		endpoint:    clientCfg.BaseURL + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     cfg.Timeout,
		provider:    cfg.Provider,
		logger:      logger,
	}
}

// chatRequest is the streaming request body.
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Stream      bool             `json:"stream"`
	Temperature float32          `json:"temperature"`
	TopP        float32          `json:"top_p"`
}

// Complete starts a streaming completion and returns its future immediately.
// The request runs on its own goroutine; ctx (plus the configured timeout)
// bounds it. Only invalid input is reported as an error here; everything
// else resolves the future.
func (c *Client) Complete(ctx context.Context, msgs []domain.Message) (*Future, error) {
	if err := domain.ValidateMessages(msgs); err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Stream:      true,
		Temperature: c.temperature,
		TopP:        c.topP,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	reqCtx, cancel := c.requestContext(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	future := newFuture(cancel)
	sess := newSession(future)
	go c.stream(reqCtx, cancel, req, sess)
	return future, nil
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// stream performs the request and pumps the body into sess until it finishes.
func (c *Client) stream(ctx context.Context, cancel context.CancelFunc, req *http.Request, sess *Session) {
	start := time.Now()
	log := c.logger.With(zap.String("session_id", sess.ID()), zap.String("model", c.model))
	defer func() {
		cancel()
		c.observeStream(sess, time.Since(start), log)
	}()

	log.Debug("completion stream started")

	resp, err := c.http.Do(req)
	if err != nil {
		sess.Fail(transportError(ctx, "send chat request", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		sess.Fail(fmt.Errorf("%w: chat completion status %d: %s",
			domain.ErrTransport, resp.StatusCode, strings.TrimSpace(string(excerpt))))
		return
	}

	if err := sess.pump(resp.Body); err != nil {
		sess.Fail(transportError(ctx, "read chat stream", err))
	}
}

func (c *Client) observeStream(sess *Session, elapsed time.Duration, log *zap.Logger) {
	_, err := sess.future.Wait(context.Background())
	tokens, dropped := sess.Stats()

	status := "success"
	switch {
	case errors.Is(err, context.Canceled):
		status = "canceled"
	case err != nil:
		status = "error"
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, modeStream, status).Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model, modeStream).Observe(elapsed.Seconds())
	metrics.CompletionStreamTokensTotal.WithLabelValues(c.provider, c.model).Add(float64(tokens))
	if dropped > 0 {
		metrics.CompletionDroppedEventsTotal.WithLabelValues(c.provider, c.model).Add(float64(dropped))
		log.Warn("completion stream dropped undecodable events", zap.Int("dropped", dropped))
	}

	log.Debug("completion stream finished",
		zap.String("status", sess.Status().String()),
		zap.Int("tokens", tokens),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
}

// CompleteOnce runs a single-shot completion and returns choices[0].message.content.
func (c *Client) CompleteOnce(ctx context.Context, msgs []domain.Message) (string, error) {
	if err := domain.ValidateMessages(msgs); err != nil {
		return "", err
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(msgs),
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, modeOnce, "error").Inc()
		return "", parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, modeOnce, "error").Inc()
		return "", fmt.Errorf("%w: completion response has no choices", domain.ErrParse)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, modeOnce, "error").Inc()
		return "", fmt.Errorf("%w: completion response has no message content", domain.ErrParse)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, modeOnce, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model, modeOnce).Observe(duration.Seconds())

	return content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func toChatMessages(msgs []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
