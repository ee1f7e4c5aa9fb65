package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/config"
	dbRedis "github.com/kailas-cloud/memoir/internal/db/redis"
	"github.com/kailas-cloud/memoir/internal/domain"
	logpkg "github.com/kailas-cloud/memoir/internal/logger"
	"github.com/kailas-cloud/memoir/internal/metrics"
	"github.com/kailas-cloud/memoir/internal/photodir"
	photorepo "github.com/kailas-cloud/memoir/internal/repository/photo"
	chiTransport "github.com/kailas-cloud/memoir/internal/transport/chi"
	openaiChat "github.com/kailas-cloud/memoir/internal/transport/openai"
	healthuc "github.com/kailas-cloud/memoir/internal/usecase/health"
	matchuc "github.com/kailas-cloud/memoir/internal/usecase/match"
	photouc "github.com/kailas-cloud/memoir/internal/usecase/photo"
	"github.com/kailas-cloud/memoir/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting memoir API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("photos_dir", cfg.Photos.Dir),
		zap.String("model", cfg.Completion.Model),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterCompletionMetrics()

	ctx := context.Background()

	// Snapshot backend for the record document
	snap, closeSnap := buildSnapshot(ctx, &cfg, logger)
	defer closeSnap()

	store := photorepo.New(snap, logger.Named("store")).WithPhotoDir(cfg.Photos.Dir)
	if err := store.Load(ctx); err != nil {
		logger.Fatal("Failed to load photo records", zap.String("location", snap.Location()), zap.Error(err))
	}
	logger.Info("Photo records loaded", zap.Int("records", store.Len()))

	photos := photodir.New(cfg.Photos.Dir)

	settings := cfg.CompletionSettings()
	chat := openaiChat.NewClient(&openaiChat.Config{
		APIKey:      cfg.Completion.APIKey,
		BaseURL:     cfg.Completion.BaseURL,
		Model:       settings.Model,
		Temperature: settings.Temperature,
		TopP:        settings.TopP,
		Timeout:     time.Duration(cfg.Completion.TimeoutSec) * time.Second,
		Provider:    cfg.Completion.Provider,
		Logger:      logger.Named("completion"),
	})

	// Create use case services
	photoSvc := photouc.New(store, photos, logger.Named("photos"))
	matchSvc := matchuc.New(store, newCompleter(chat), logger.Named("match")).WithStreaming(settings.Stream)
	healthSvc := healthuc.New(snap, chat)

	if cfg.Photos.RebuildOnStart && store.Len() == 0 {
		n, err := photoSvc.Rebuild(ctx)
		if err != nil {
			logger.Warn("Initial rebuild failed", zap.Error(err))
		} else {
			logger.Info("Initial rebuild finished", zap.Int("records", n))
		}
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.Photos.Watch {
		startWatcher(watchCtx, &cfg, photoSvc, logger)
	}

	// Create chi server
	server := chiTransport.NewServer(photoSvc, matchSvc, healthSvc, logger).
		WithMaxUpload(int64(cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	if store.Dirty() {
		if err := store.Save(shutdownCtx); err != nil {
			logger.Error("Unsaved photo records", zap.Error(err))
		}
	}

	logger.Info("Server stopped gracefully")
}

// snapshotBackend is a record snapshot that can report its availability.
type snapshotBackend interface {
	photorepo.Snapshot
	Ping(ctx context.Context) error
}

// buildSnapshot selects the file or redis backend. The returned func releases it.
func buildSnapshot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (snapshotBackend, func()) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		kv, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Store.Addrs,
			Password: cfg.Store.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		if err := kv.WaitForReady(ctx, time.Duration(cfg.Store.ReadinessTimeout)*time.Second); err != nil {
			kv.Close()
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Store.Addrs))
		return &redisSnapshot{KVSnapshot: photorepo.NewKVSnapshot(kv, cfg.Store.Key), pinger: kv}, kv.Close
	default:
		return photorepo.NewFileSnapshot(cfg.Store.Path), func() {}
	}
}

// redisSnapshot pings through the underlying redis client.
type redisSnapshot struct {
	*photorepo.KVSnapshot
	pinger interface {
		Ping(ctx context.Context) error
	}
}

func (r *redisSnapshot) Ping(ctx context.Context) error { return r.pinger.Ping(ctx) }

// startWatcher reconciles records whenever images appear or disappear in the photo directory.
func startWatcher(ctx context.Context, cfg *config.Config, photoSvc *photouc.Service, logger *zap.Logger) {
	log := logger.Named("watcher")
	w, err := photodir.NewWatcher(
		cfg.Photos.Dir,
		time.Duration(cfg.Photos.DebounceMS)*time.Millisecond,
		func(ctx context.Context) {
			added, removed, err := photoSvc.Reconcile(ctx)
			if err != nil {
				log.Warn("Reconcile after directory change failed", zap.Error(err))
				return
			}
			if added > 0 || removed > 0 {
				log.Info("Reconciled after directory change", zap.Int("added", added), zap.Int("removed", removed))
			}
		},
		log,
	)
	if err != nil {
		log.Warn("Photo watcher disabled", zap.Error(err))
		return
	}
	if err := w.Start(ctx); err != nil {
		log.Warn("Photo watcher disabled", zap.Error(err))
		return
	}
	go func() {
		<-ctx.Done()
		if err := w.Stop(); err != nil {
			log.Warn("Stop photo watcher", zap.Error(err))
		}
	}()
}

// completer adapts the chat client to the match workflow's Completer.
type completer struct {
	client *openaiChat.Client
}

func newCompleter(client *openaiChat.Client) *completer {
	return &completer{client: client}
}

func (c *completer) Complete(ctx context.Context, msgs []domain.Message) (matchuc.Completion, error) {
	f, err := c.client.Complete(ctx, msgs)
	if err != nil {
		// Return a nil interface, not a typed nil *Future.
		return nil, err
	}
	return f, nil
}

func (c *completer) CompleteOnce(ctx context.Context, msgs []domain.Message) (string, error) {
	return c.client.CompleteOnce(ctx, msgs)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", routePattern(r)),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
