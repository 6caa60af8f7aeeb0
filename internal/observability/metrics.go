package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	RoleClient = "client"
	RolePeer   = "peer"
)

var (
	registerOnce sync.Once

	exchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packwire",
			Subsystem: "exchange",
			Name:      "total",
			Help:      "Request/response exchanges by outcome.",
		},
		[]string{"role", "result"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packwire",
			Subsystem: "exchange",
			Name:      "duration_seconds",
			Help:      "Exchange duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)
	exchangeBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packwire",
			Subsystem: "exchange",
			Name:      "bytes_total",
			Help:      "Bytes moved by exchanges.",
		},
		[]string{"role", "direction"},
	)
	peerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "packwire",
			Subsystem: "peer",
			Name:      "active_connections",
			Help:      "Connections currently served by the peer.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "packwire",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "packwire",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			exchanges,
			exchangeDuration,
			exchangeBytes,
			peerConnections,
			httpRequests,
			httpDuration,
		)
	})
}

// RecordExchange counts one exchange. result is a short outcome label such as
// "success" or "io_error".
func RecordExchange(role, result string, written, read int, duration time.Duration) {
	RegisterMetrics()
	exchanges.WithLabelValues(role, result).Inc()
	exchangeDuration.WithLabelValues(role).Observe(duration.Seconds())
	if written > 0 {
		exchangeBytes.WithLabelValues(role, "out").Add(float64(written))
	}
	if read > 0 {
		exchangeBytes.WithLabelValues(role, "in").Add(float64(read))
	}
}

func PeerConnOpened() {
	RegisterMetrics()
	peerConnections.Inc()
}

func PeerConnClosed() {
	RegisterMetrics()
	peerConnections.Dec()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
