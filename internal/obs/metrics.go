package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	rosterAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roster_anomalies_total",
			Help: "Source records skipped during roster aggregation.",
		},
		[]string{"source"},
	)

	permissionChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_checks_total",
			Help: "Permission checks by capability and outcome.",
		},
		[]string{"capability", "result"},
	)

	verificationReviews = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_reviews_total",
			Help: "Verification records reviewed by outcome.",
		},
		[]string{"outcome"},
	)

	tasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_enqueued_total",
			Help: "Background tasks handed to the broker.",
		},
		[]string{"task", "result"},
	)

	initOnce sync.Once
)

// Init registers every metric in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			rosterAnomalies, permissionChecks, verificationReviews, tasksEnqueued,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RosterAnomaly(source string) {
	rosterAnomalies.WithLabelValues(source).Inc()
}

func PermissionCheck(capability string, granted bool) {
	result := "denied"
	if granted {
		result = "granted"
	}
	permissionChecks.WithLabelValues(capability, result).Inc()
}

func VerificationReviewed(outcome string) {
	verificationReviews.WithLabelValues(outcome).Inc()
}

func TaskEnqueued(task string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	tasksEnqueued.WithLabelValues(task, result).Inc()
}

// Instrument records in-flight count, totals and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// parameterized lists path prefixes whose next segment is an identifier,
// with the optional trailing segments allowed after it.
var parameterized = []struct {
	prefix      string
	placeholder string
	suffixes    []string
}{
	{"/v1/accounts/", ":id", []string{"overrides", "roles"}},
	{"/v1/roster/riders/", ":zwid", nil},
	{"/v1/roster/filters/", ":id", nil},
	{"/v1/verification/", ":id", []string{"review"}},
	{"/v1/settings/", ":key", nil},
	{"/v1/dbot/sync_user_roles/", ":discord_id", nil},
	{"/v1/applications/", ":id", []string{"applicant"}},
	{"/v1/links/", ":id", nil},
	{"/v1/dbot/membership_application/", ":discord_id", nil},
	{"/v1/dbot/teammate_profile/", ":zwid", nil},
	{"/v1/dbot/zwiftpower_profile/", ":zwid", nil},
}

// CanonicalPath collapses identifiers in known routes so metric label
// cardinality stays bounded.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	for _, route := range parameterized {
		rest, ok := strings.CutPrefix(p, route.prefix)
		if !ok || rest == "" {
			continue
		}
		parts := strings.Split(rest, "/")
		switch len(parts) {
		case 1:
			return route.prefix + route.placeholder
		case 2:
			for _, s := range route.suffixes {
				if parts[1] == s {
					return route.prefix + route.placeholder + "/" + s
				}
			}
		}
		return p
	}
	return p
}
