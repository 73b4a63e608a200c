package telemetry

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcome labels
const (
	WebhookResultProcessed  = "processed"
	WebhookResultDuplicate  = "duplicate"
	WebhookResultIgnored    = "ignored"
	WebhookResultRejected   = "rejected"
	WebhookResultRetryable  = "retryable_error"
	WebhookResultPermanent  = "permanent_error"
	DownloadResultRedirect  = "redirected"
	DownloadResultInvalid   = "invalid"
	DownloadResultError     = "error"
	ReconcileResultOK       = "ok"
	ReconcileResultPartial  = "partial"
	ReconcileResultFailed   = "failed"
	defaultMetricsNamespace = "commerce_sync"
)

// Metrics holds the Prometheus collectors of the service on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	webhooksTotal       *prometheus.CounterVec
	webhookDuration     *prometheus.HistogramVec
	orderTransitions    *prometheus.CounterVec
	ordersCreated       prometheus.Counter
	downloadsTotal      *prometheus.CounterVec
	productSyncTotal    *prometheus.CounterVec
	reconcileRuns       *prometheus.CounterVec
	reconcileDuration   prometheus.Histogram
	reconcileMappings   *prometheus.GaugeVec
}

// NewMetrics creates and registers all collectors. An empty namespace uses "commerce_sync".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultMetricsNamespace
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by topic and outcome",
		}, []string{"topic", "result"}),
		webhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_processing_duration_seconds",
			Help:      "Duration of webhook processing by topic",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Order status changes observed by the reconciler",
		}, []string{"from", "to"}),
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders stored for the first time",
		}),
		downloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download link redemptions by outcome",
		}, []string{"result"}),
		productSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_sync_operations_total",
			Help:      "Product sync operations by operation and status",
		}, []string{"operation", "status"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_reconcile_runs_total",
			Help:      "Product reconcile runs by result",
		}, []string{"result"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "product_reconcile_duration_seconds",
			Help:      "Duration of a product reconcile run",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		reconcileMappings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "product_reconcile_last_mappings",
			Help:      "Mappings synced and failed in the last reconcile run",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.webhooksTotal,
		m.webhookDuration,
		m.orderTransitions,
		m.ordersCreated,
		m.downloadsTotal,
		m.productSyncTotal,
		m.reconcileRuns,
		m.reconcileDuration,
		m.reconcileMappings,
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RegisterDBStats exports sql.DB pool statistics labelled with dbName.
func (m *Metrics) RegisterDBStats(db *sql.DB, dbName string) error {
	if m == nil || db == nil {
		return nil
	}
	return m.registry.Register(collectors.NewDBStatsCollector(db, dbName))
}

// ObserveHTTPRequest records one served request. route is the matched pattern.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveWebhook records one delivery outcome.
func (m *Metrics) ObserveWebhook(topic, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(topic, result).Inc()
	m.webhookDuration.WithLabelValues(topic).Observe(elapsed.Seconds())
}

// ObserveOrderCreated counts a first-seen order.
func (m *Metrics) ObserveOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// ObserveOrderTransition counts a status change of an existing order.
func (m *Metrics) ObserveOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

// ObserveDownload records one redemption attempt.
func (m *Metrics) ObserveDownload(result string) {
	if m == nil {
		return
	}
	m.downloadsTotal.WithLabelValues(result).Inc()
}

// ObserveProductSync records one push, pull, delete or inventory operation.
func (m *Metrics) ObserveProductSync(operation, status string) {
	if m == nil {
		return
	}
	m.productSyncTotal.WithLabelValues(operation, status).Inc()
}

// ObserveReconcile records a reconcile run. err is the run-level failure, if any.
func (m *Metrics) ObserveReconcile(synced, failed int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := ReconcileResultOK
	switch {
	case err != nil:
		result = ReconcileResultFailed
	case failed > 0:
		result = ReconcileResultPartial
	}
	m.reconcileRuns.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.reconcileMappings.WithLabelValues("synced").Set(float64(synced))
		m.reconcileMappings.WithLabelValues("errors").Set(float64(failed))
	}
}
