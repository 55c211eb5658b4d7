package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinoosan/books/internal/service/coa"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "books",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "books",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	coaImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "books",
			Name:      "coa_imports_total",
			Help:      "Chart-of-accounts imports by result",
		},
		[]string{"result"},
	)
	coaImportAccountsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "books",
			Name:      "coa_import_accounts_total",
			Help:      "Accounts touched by chart-of-accounts imports",
		},
		[]string{"change"},
	)
	balanceComputationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "books",
			Name:      "balance_computations_total",
			Help:      "Balance computations by result",
		},
		[]string{"result"},
	)
	balanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "books",
			Name:      "balance_duration_seconds",
			Help:      "Duration of balance computations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}

// ObserveImport records the outcome of a chart import.
func ObserveImport(res coa.Result, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !res.Changed():
		result = "unchanged"
	}
	coaImportsTotal.WithLabelValues(result).Inc()
	if err != nil {
		return
	}
	coaImportAccountsTotal.WithLabelValues("created").Add(float64(res.Created))
	coaImportAccountsTotal.WithLabelValues("updated").Add(float64(res.Updated))
	coaImportAccountsTotal.WithLabelValues("unchanged").Add(float64(res.Unchanged))
}

func observeBalance(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	balanceComputationsTotal.WithLabelValues(result).Inc()
	balanceDuration.Observe(time.Since(start).Seconds())
}
