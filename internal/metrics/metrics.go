package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitflyer_broker_operations_total",
			Help: "Broker facade operations by outcome.",
		},
		[]string{"op", "product", "outcome"},
	)
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitflyer_broker_operation_duration_seconds",
			Help:    "Duration of broker facade operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "product"},
	)
	AuditEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitflyer_broker_audit_entries_total",
			Help: "Audit log entries by event and outcome.",
		},
		[]string{"event", "success"},
	)
	TransportRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bitflyer_transport_requests_total",
			Help: "Exchange REST requests by endpoint and HTTP status.",
		},
		[]string{"endpoint", "status"},
	)
	TransportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bitflyer_transport_request_duration_seconds",
			Help:    "Duration of exchange REST requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	ProbeUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bitflyer_monitor_probe_up",
			Help: "1 when the last monitor probe succeeded and reported a usable exchange.",
		},
		[]string{"probe", "product"},
	)
	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bitflyer_monitor_last_traded_price",
			Help: "Last traded price from the ticker probe.",
		},
		[]string{"product"},
	)
)

func Register(registry *prometheus.Registry) {
	registry.MustRegister(Operations, OperationDuration, AuditEntries, TransportRequests, TransportDuration, ProbeUp, LastPrice)
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveOperation records one facade call. outcome is "ok" or the fault kind.
func ObserveOperation(op, product, outcome string, started time.Time) {
	Operations.WithLabelValues(op, product, outcome).Inc()
	OperationDuration.WithLabelValues(op, product).Observe(time.Since(started).Seconds())
}

func SetProbe(probe, product string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	ProbeUp.WithLabelValues(probe, product).Set(v)
}

func ObserveTransport(endpoint, status string, started time.Time) {
	TransportRequests.WithLabelValues(endpoint, status).Inc()
	TransportDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
