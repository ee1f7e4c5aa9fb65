package memoir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation statuses.
const (
	statusOK       = "ok"
	statusError    = "error"
	statusCanceled = "canceled"
)

// Match outcomes. A no-match is a successful call and is counted apart from failures.
const (
	outcomeMatched  = "matched"
	outcomeNoMatch  = "no_match"
	outcomeFailed   = "failed"
	outcomeCanceled = "canceled"
)

type libMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	matches    *prometheus.CounterVec
	indexed    prometheus.Gauge
}

func newLibMetrics(reg prometheus.Registerer) (*libMetrics, error) {
	var (
		m   libMetrics
		err error
	)
	m.operations, err = adopt(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoir",
		Subsystem: "lib",
		Name:      "operations_total",
		Help:      "Library calls by operation and status (ok, error, canceled).",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	m.duration, err = adopt(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "memoir",
		Subsystem: "lib",
		Name:      "operation_duration_seconds",
		Help:      "Library call duration in seconds.",
		Buckets:   []float64{.005, .025, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	m.matches, err = adopt(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memoir",
		Subsystem: "lib",
		Name:      "match_outcomes_total",
		Help:      "Match calls by outcome (matched, no_match, failed, canceled).",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	m.indexed, err = adopt(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "memoir",
		Subsystem: "lib",
		Name:      "indexed_photos",
		Help:      "Photos recorded by the last directory rebuild.",
	}))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// adopt registers c, or returns the collector already registered under the
// same descriptor so several clients can share one registry.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("memoir: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("memoir: metric already registered as %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer logs and measures library calls. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *libMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newLibMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func callStatus(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled):
		return statusCanceled
	default:
		return statusError
	}
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	status := callStatus(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	args := append([]any{"op", op, "duration", dur}, attrs...)
	switch status {
	case statusError:
		o.logger.Warn("operation failed", append(args, "error", err)...)
	case statusCanceled:
		o.logger.Debug("operation canceled", args...)
	default:
		o.logger.Debug("operation completed", args...)
	}
}

// matchOutcome classifies a finished Match call.
func matchOutcome(res MatchResult, err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case err != nil:
		return outcomeFailed
	case res.Found:
		return outcomeMatched
	default:
		return outcomeNoMatch
	}
}

func (o *observer) observeMatch(start time.Time, res MatchResult, err error) {
	if o == nil {
		return
	}
	outcome := matchOutcome(res, err)
	if o.metrics != nil {
		o.metrics.matches.WithLabelValues(outcome).Inc()
	}
	attrs := []any{"outcome", outcome}
	if res.Found {
		attrs = append(attrs, "photo", res.Photo.ID)
	}
	o.observe("match", start, err, attrs...)
}

func (o *observer) observeRebuild(start time.Time, n int, err error) {
	if o == nil {
		return
	}
	if err == nil && o.metrics != nil {
		o.metrics.indexed.Set(float64(n))
	}
	o.observe("photos.rebuild", start, err, "photos", n)
}
