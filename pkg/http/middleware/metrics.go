package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "AlphaDesk/pkg/logger"
)

// Metrics records request counts and latency labelled by the route template,
// which keeps label cardinality bounded. Slow requests are logged as warnings.
func Metrics(reg prometheus.Registerer, l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	f := promauto.With(reg)
	requests := f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alphadesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "class"},
	)
	duration := f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alphadesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)
	inFlight := f.NewGauge(prometheus.GaugeOpts{
		Name: "alphadesk_http_in_flight_requests",
		Help: "Current number of in-flight HTTP requests",
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inFlight.Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			inFlight.Dec()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			requests.WithLabelValues(route, method, statusClass(status)).Inc()
			duration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			if slowThreshold > 0 && elapsed >= slowThreshold && route != "/ws" {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("method", method),
					applogger.String("status", strconv.Itoa(status)),
					applogger.Duration("duration_ms", elapsed),
				)
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
