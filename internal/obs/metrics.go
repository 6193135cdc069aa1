package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics plus counters for the authorization engine itself.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	tokenVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Access and refresh token verifications by outcome.",
		},
		[]string{"outcome"},
	)

	permissionCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_cache_lookups_total",
			Help: "Permission cache lookups by result.",
		},
		[]string{"result"},
	)

	permissionDenials = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_permission_denials_total",
		Help: "Requests rejected for a missing permission.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		tokenVerifications, permissionCacheLookups, permissionDenials,
	)
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TokenVerification records a token verification outcome
// (ok, invalid, expired, revoked).
func TokenVerification(outcome string) {
	tokenVerifications.WithLabelValues(outcome).Inc()
}

// CacheLookup records a permission cache lookup result (hit, miss, error).
func CacheLookup(result string) {
	permissionCacheLookups.WithLabelValues(result).Inc()
}

// PermissionDenied counts authorization rejections.
func PermissionDenied() {
	permissionDenials.Inc()
}

// Instrument wraps the handler with request count, latency and in-flight gauges.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		path := CanonicalPath(r.URL.Path)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers out of admin paths so metric
// label cardinality stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "admin" {
		return path
	}
	switch parts[1] {
	case "users", "profiles":
		if len(parts) == 4 {
			return "/admin/" + parts[1] + "/:id/" + parts[3]
		}
	case "teams":
		if len(parts) == 4 {
			return "/admin/teams/:id/" + parts[3]
		}
		if len(parts) == 5 {
			return "/admin/teams/:id/" + parts[3] + "/:id"
		}
	}
	return path
}

// statusWriter captures the response code for metrics labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
