package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records per-route HTTP metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	gatherer        prometheus.Gatherer
}

// NewMetrics registers the HTTP collectors with reg, or with the default
// registerer when reg is nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "verdandi"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := []string{"method", "path", "status"}
	f := promauto.With(reg)

	m := &Metrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, labels),
		// Gateway round trips dominate the slow end.
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, labels),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests being served.",
		}),
		gatherer: prometheus.DefaultGatherer,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		lv := []string{r.Method, routeLabel(r), strconv.Itoa(sw.status)}
		m.requestsTotal.WithLabelValues(lv...).Inc()
		m.requestDuration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry the collectors were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// routeLabel is the matched route pattern without its method. Requests that
// did not come through the mux fall back to normalizePath.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return normalizePath(r.URL.Path)
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// idLabels names the placeholder for the segment after each admin
// collection. Everything else in the path is a fixed word.
var idLabels = map[string]string{
	"orders":               ":id",
	"payment-transactions": ":id",
	"shipments":            ":id",
	"customers":            ":id",
	"items":                ":item_id",
}

// normalizePath replaces identifiers in admin routes with placeholders so
// label cardinality stays bounded.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/admin/") {
		return path
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if label, ok := idLabels[segments[i-1]]; ok {
			segments[i] = label
		}
	}
	return "/" + strings.Join(segments, "/")
}
