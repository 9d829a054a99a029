package webdavbridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus-backed observability surface for the WebDAV
// bridge. A nil *Metrics disables collection with zero overhead; every
// method here is safe to call on a nil receiver.
type Metrics struct {
	requests     *prometheus.CounterVec
	reconnects   prometheus.Counter
	bytesRead    prometheus.Counter
	bytesWritten prometheus.Counter
}

// NewMetrics registers the bridge's collectors against reg. Pass nil to
// disable metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "n3dssmb_webdav_requests_total",
				Help: "Total WebDAV requests handled, by HTTP method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		reconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "n3dssmb_smb_reconnects_total",
			Help: "Total SMB1 reconnects triggered by a failed liveness echo.",
		}),
		bytesRead: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "n3dssmb_smb_bytes_read_total",
			Help: "Total bytes read from the console over SMB1.",
		}),
		bytesWritten: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "n3dssmb_smb_bytes_written_total",
			Help: "Total bytes written to the console over SMB1.",
		}),
	}
}

func (m *Metrics) observeRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) observeBytesRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) observeBytesWritten(n int) {
	if m == nil {
		return
	}
	m.bytesWritten.Add(float64(n))
}
