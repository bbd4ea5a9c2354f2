package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/spec-kit/user-admin-service/pkg/util/errorutil"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	commandsTotal   *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	triggersTotal   *prometheus.CounterVec
}

// NewMetrics registers collectors on a private registry, together with the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP error responses by error code.",
		}, []string{"method", "route", "code"}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_admin_commands_total",
			Help: "Total number of user admin commands by outcome.",
		}, []string{"command", "outcome"}),
		compensations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_admin_compensations_total",
			Help: "Total number of compensating actions by step and outcome.",
		}, []string{"step", "outcome"}),
		triggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "user_admin_profile_deletion_triggers_total",
			Help: "Total number of profile deletion triggers by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordRequest observes a finished HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, route, code).Inc()
}

// RecordCommand counts a command outcome: "ok" or the error code.
func (m *Metrics) RecordCommand(command string, err error) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, outcome(err)).Inc()
}

// RecordCompensation counts a compensating action.
func (m *Metrics) RecordCompensation(step string, err error) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(step, outcome(err)).Inc()
}

// RecordTrigger counts a processed, skipped or failed profile deletion trigger.
func (m *Metrics) RecordTrigger(result string) {
	if m == nil {
		return
	}
	m.triggersTotal.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.CodeOf(err)
}
