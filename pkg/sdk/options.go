package memoir

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	backend   string // "file" or "redis"
	storePath string
	addrs     []string
	password  string
	redisKey  string

	photoDir string

	baseURL     string
	apiKey      string
	model       string
	temperature *float32
	topP        *float32
	stream      bool
	timeout     time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithFileStore keeps the record document in a JSON file at path.
func WithFileStore(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = "file"
		c.storePath = path
	})
}

// WithRedis keeps the record document as a single value at key in Redis or Valkey.
func WithRedis(addr, password, key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend = "redis"
		c.addrs = []string{addr}
		c.password = password
		c.redisKey = key
	})
}

// WithPhotoDir sets the directory scanned by Rebuild and written by Import.
func WithPhotoDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.photoDir = dir
	})
}

// WithCompletion configures the OpenAI-compatible chat endpoint used by Match.
func WithCompletion(baseURL, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.baseURL = baseURL
		c.apiKey = apiKey
		c.model = model
	})
}

// WithSampling overrides temperature and top_p. Defaults: 0.2 and 1.
func WithSampling(temperature, topP float32) Option {
	return optionFunc(func(c *clientConfig) {
		c.temperature = &temperature
		c.topP = &topP
	})
}

// WithStreaming selects streamed (default) or single-shot completions.
func WithStreaming(stream bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.stream = stream
	})
}

// WithTimeout bounds each completion request. Zero means no client-side bound.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.timeout = d
	})
}

// WithLogger enables structured logging for library operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers operation counts and durations on the given
// registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
