package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wlctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	wireMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "wire",
			Name:      "messages_total",
			Help:      "Protocol messages by direction, interface and message.",
		},
		[]string{"node", "direction", "interface", "message"},
	)
	wireBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "wire",
			Name:      "bytes_total",
			Help:      "Framed protocol bytes by direction.",
		},
		[]string{"node", "direction"},
	)
	wireFDs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "wire",
			Name:      "fds_total",
			Help:      "File descriptors passed by direction.",
		},
		[]string{"node", "direction"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "wire",
			Name:      "protocol_errors_total",
			Help:      "Fatal protocol errors by kind.",
		},
		[]string{"node", "kind"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wlctl",
			Subsystem: "monitor",
			Name:      "connect_attempts_total",
			Help:      "Display connect attempts by outcome.",
		},
		[]string{"node", "success"},
	)
	globalsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "wlctl",
			Subsystem: "monitor",
			Name:      "globals",
			Help:      "Globals currently advertised by the display.",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			wireMessages, wireBytes, wireFDs, protocolErrors,
			reconnects, globalsGauge,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordConnectAttempt(node string, success bool) {
	RegisterMetrics()
	reconnects.WithLabelValues(node, strconv.FormatBool(success)).Inc()
}

func SetGlobals(node string, n int) {
	RegisterMetrics()
	globalsGauge.WithLabelValues(node).Set(float64(n))
}

// WireMetrics counts protocol traffic for one named connection. It
// satisfies session.Metrics.
type WireMetrics struct {
	Node string
}

func NewWireMetrics(node string) *WireMetrics {
	RegisterMetrics()
	return &WireMetrics{Node: node}
}

func (m *WireMetrics) MessageSent(iface, message string, size, fds int) {
	m.record("sent", iface, message, size, fds)
}

func (m *WireMetrics) MessageReceived(iface, message string, size, fds int) {
	m.record("received", iface, message, size, fds)
}

func (m *WireMetrics) ProtocolError(kind string) {
	protocolErrors.WithLabelValues(m.Node, kind).Inc()
}

func (m *WireMetrics) record(direction, iface, message string, size, fds int) {
	wireMessages.WithLabelValues(m.Node, direction, iface, message).Inc()
	wireBytes.WithLabelValues(m.Node, direction).Add(float64(size))
	if fds > 0 {
		wireFDs.WithLabelValues(m.Node, direction).Add(float64(fds))
	}
}
