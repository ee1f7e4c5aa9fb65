package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/memoir/internal/domain"
	domphoto "github.com/kailas-cloud/memoir/internal/domain/photo"
	logpkg "github.com/kailas-cloud/memoir/internal/logger"
	"github.com/kailas-cloud/memoir/internal/metrics"
	healthuc "github.com/kailas-cloud/memoir/internal/usecase/health"
	matchuc "github.com/kailas-cloud/memoir/internal/usecase/match"
	photouc "github.com/kailas-cloud/memoir/internal/usecase/photo"
	"github.com/kailas-cloud/memoir/internal/version"
)

const noMatchMessage = "nothing found"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the photo and match HTTP API.
type Server struct {
	photos        *photouc.Service
	matcher       *matchuc.Service
	health        *healthuc.Service
	maxUpload     int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	photos *photouc.Service,
	matcher *matchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		photos:    photos,
		matcher:   matcher,
		health:    health,
		maxUpload: 32 << 20,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		payloadTooLargeHandler,
		sentinelHandler(domain.ErrNoMatch, http.StatusNotFound, CodeNoMatch),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodePhotoNotFound),
		sentinelHandler(domain.ErrInvalidRecord, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidPrompt, http.StatusUnprocessableEntity, CodeInvalidPrompt),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeProviderTimeout),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrParse, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrIO, http.StatusInternalServerError, CodeStorageError),
	}
	return s
}

// WithMaxUpload limits image upload size in bytes.
func (s *Server) WithMaxUpload(n int64) *Server {
	if n > 0 {
		s.maxUpload = n
	}
	return s
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/photos", func(r chi.Router) {
		r.Get("/", s.ListPhotos)
		r.Delete("/", s.ClearPhotos)
		r.Post("/rebuild", s.RebuildPhotos)
		r.Get("/{id}", s.GetPhoto)
		r.Put("/{id}", s.PutPhoto)
		r.Post("/{id}/tags", s.AppendTags)
		r.Get("/{id}/image", s.GetImage)
		r.Post("/{id}/image", s.UploadImage)
	})

	r.Post("/match", s.Match)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// ListPhotos handles GET /photos. An optional ?tag= filters by exact tag.
func (s *Server) ListPhotos(w http.ResponseWriter, r *http.Request) {
	var recs []domphoto.Record
	if tag := r.URL.Query().Get("tag"); tag != "" {
		recs = s.photos.FindByTag(tag)
	} else {
		recs = s.photos.List()
	}

	items := make([]PhotoResponse, len(recs))
	for i := range recs {
		items[i] = photoToResponse(&recs[i])
	}
	writeJSON(w, http.StatusOK, PhotoListResponse{Items: items, Count: len(items)})
}

// GetPhoto handles GET /photos/{id}.
func (s *Server) GetPhoto(w http.ResponseWriter, r *http.Request) {
	rec, err := s.photos.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photoToResponse(&rec))
}

// PutPhoto handles PUT /photos/{id}: the tag list is replaced wholesale.
func (s *Server) PutPhoto(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := s.photos.Put(r.Context(), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photoToResponse(&rec))
}

// AppendTags handles POST /photos/{id}/tags.
func (s *Server) AppendTags(w http.ResponseWriter, r *http.Request) {
	var req TagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Tags) == 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "At least one tag is required")
		return
	}

	rec, err := s.photos.AppendTags(r.Context(), chi.URLParam(r, "id"), req.Tags)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, photoToResponse(&rec))
}

// GetImage handles GET /photos/{id}/image.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rc, err := s.photos.Open(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	defer func() { _ = rc.Close() }()

	ct := mime.TypeByExtension(path.Ext(id))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		logpkg.FromContext(r.Context()).Warn("image write interrupted", zap.String("id", id), zap.Error(err))
	}
}

// UploadImage handles POST /photos/{id}/image. The body is the raw image;
// repeated ?tag= values are added after the synthesized tags.
func (s *Server) UploadImage(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	defer func() { _ = body.Close() }()

	rec, err := s.photos.Import(r.Context(), chi.URLParam(r, "id"), body, r.URL.Query()["tag"])
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, photoToResponse(&rec))
}

// RebuildPhotos handles POST /photos/rebuild.
func (s *Server) RebuildPhotos(w http.ResponseWriter, r *http.Request) {
	n, err := s.photos.Rebuild(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{Count: n})
}

// ClearPhotos handles DELETE /photos.
func (s *Server) ClearPhotos(w http.ResponseWriter, r *http.Request) {
	if err := s.photos.Clear(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Match handles POST /match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	out, err := s.matcher.Match(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !out.Found {
		s.handleDomainError(w, r, domain.ErrNoMatch)
		return
	}

	logpkg.FromContext(r.Context()).Debug("photo matched",
		zap.String("id", out.Record.ID()),
		zap.String("state", string(out.State)),
	)
	writeJSON(w, http.StatusOK, MatchResponse{
		Photo:  photoToResponse(&out.Record),
		Answer: out.Answer,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrNoMatch) {
		return noMatchMessage
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRecord,
		domain.ErrInvalidPrompt,
		domain.ErrTransport,
		domain.ErrParse,
		domain.ErrIO,
		context.DeadlineExceeded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// payloadTooLargeHandler maps an exceeded upload limit to 413.
func payloadTooLargeHandler(w http.ResponseWriter, err error, _ string) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "image exceeds upload limit")
	return true
}

// statusClientClosedRequest is written when the caller went away before the answer was ready.
const statusClientClosedRequest = 499

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	if errors.Is(err, context.Canceled) {
		log.Debug("client closed request", zap.Error(err))
		writeError(w, statusClientClosedRequest, CodeClientClosed, "request canceled")
		return
	}
	if errors.Is(err, domain.ErrNoMatch) {
		log.Debug("no match", zap.Error(err))
	} else {
		log.Warn("domain error", zap.Error(err))
	}

	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func photoToResponse(rec *domphoto.Record) PhotoResponse {
	resp := PhotoResponse{ID: rec.ID(), Tags: rec.Tags()}
	if p, ok := rec.Path(); ok {
		resp.Path = p
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	return resp
}
