package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for cbc.
type Metrics struct {
	config MetricsConfig

	// Document metrics
	documentsGenerated *prometheus.CounterVec
	documentDuration   *prometheus.HistogramVec

	// Resolver metrics
	unresolvedTokens *prometheus.CounterVec

	// Store metrics
	storeQueries *prometheus.CounterVec

	// IP assignment metrics
	ipAssignments *prometheus.CounterVec

	// Policy metrics
	policyFindings *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		documentsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_generated_total",
				Help:      "Total number of documents generated",
			},
			[]string{"kind", "status"},
		),
		documentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_duration_seconds",
				Help:      "Duration of document assembly in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),

		unresolvedTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "unresolved_tokens_total",
				Help:      "Total number of script lines dropped for an unresolved placeholder",
			},
			[]string{"token"},
		),

		storeQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_queries_total",
				Help:      "Total number of catalogue queries run",
			},
			[]string{"query"},
		),

		ipAssignments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ip_assignments_total",
				Help:      "Total number of build address assignments",
			},
			[]string{"status"},
		),

		policyFindings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_findings_total",
				Help:      "Total number of build lint findings",
			},
			[]string{"rule", "severity"},
		),
	}

	registry.MustRegister(
		m.documentsGenerated,
		m.documentDuration,
		m.unresolvedTokens,
		m.storeQueries,
		m.ipAssignments,
		m.policyFindings,
	)

	return m, nil
}

// RecordDocument records an assembled document with its status and duration.
func (m *Metrics) RecordDocument(kind, status string, duration time.Duration) {
	if m.documentsGenerated == nil {
		return
	}
	m.documentsGenerated.WithLabelValues(kind, status).Inc()
	m.documentDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordUnresolvedToken records a script line dropped for token.
func (m *Metrics) RecordUnresolvedToken(token string) {
	if m.unresolvedTokens == nil {
		return
	}
	m.unresolvedTokens.WithLabelValues(token).Inc()
}

// RecordQuery records one catalogue query.
func (m *Metrics) RecordQuery(query string) {
	if m.storeQueries == nil {
		return
	}
	m.storeQueries.WithLabelValues(query).Inc()
}

// RecordIPAssignment records an address assignment attempt.
func (m *Metrics) RecordIPAssignment(status string) {
	if m.ipAssignments == nil {
		return
	}
	m.ipAssignments.WithLabelValues(status).Inc()
}

// RecordPolicyFinding records one lint finding.
func (m *Metrics) RecordPolicyFinding(rule, severity string) {
	if m.policyFindings == nil {
		return
	}
	m.policyFindings.WithLabelValues(rule, severity).Inc()
}

// Registry returns the underlying registry, or nil when metrics are off.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WriteTextfile writes the registry to path in the node-exporter textfile
// format. It does nothing when metrics are off or path is empty.
func (m *Metrics) WriteTextfile(path string) error {
	if m.registry == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes the metrics endpoint until ctx is done.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.config.Enabled {
		return fmt.Errorf("metrics are disabled")
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
