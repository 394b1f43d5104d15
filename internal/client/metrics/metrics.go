// Package metrics exposes Prometheus collectors for the client agent.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imagesync"

// Metrics records upload, deletion and derivative activity. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	uploads           *prometheus.CounterVec
	deletions         *prometheus.CounterVec
	derivativeSeconds *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

// MustNew registers the collectors with reg and panics on a duplicate name.
// Tests pass a fresh prometheus.NewRegistry().
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "attempts_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deletion",
			Name:      "attempts_total",
			Help:      "Deletion attempts by outcome.",
		}, []string{"outcome"}),
		derivativeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "derivatives",
			Name:      "render_duration_seconds",
			Help:      "Time spent resizing and encoding one derivative.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"size", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by tier that answered.",
		}, []string{"tier"}),
	}
	reg.MustRegister(m.uploads, m.deletions, m.derivativeSeconds, m.cacheLookups)
	return m
}

// Upload outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeOffline = "offline"
	OutcomeLocal   = "local"
)

func (m *Metrics) RecordUpload(err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) RecordDeletion(result string) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDerivative(size string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.derivativeSeconds.WithLabelValues(size, status).Observe(d.Seconds())
}

// RecordCacheLookup counts a lookup answered by tier ("memory", "disk", "miss").
func (m *Metrics) RecordCacheLookup(tier string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(tier).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
