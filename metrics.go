package duplexrpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These CounterVecs/GaugeVecs are registered once at package init and
// shared across every connection in the process, labeled by
// connection_id; this is the home the prometheus client gets in this
// module (the teacher's go.mod required it but never imported it).
var (
	metricRequestsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "requests_sent_total",
		Help:      "Outbound requests sent.",
	}, []string{"connection_id"})

	metricRequestsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "requests_received_total",
		Help:      "Inbound requests received.",
	}, []string{"connection_id"})

	metricRequestsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "requests_handled_total",
		Help:      "Inbound requests responded to.",
	}, []string{"connection_id"})

	metricNotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "notifications_sent_total",
		Help:      "Outbound notifications sent.",
	}, []string{"connection_id"})

	metricNotificationsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "notifications_received_total",
		Help:      "Inbound notifications received.",
	}, []string{"connection_id"})

	metricNotificationsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "notifications_handled_total",
		Help:      "Inbound notifications processed.",
	}, []string{"connection_id"})

	metricParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "parse_errors_total",
		Help:      "Framing or codec parse errors, by kind.",
	}, []string{"connection_id", "kind"})

	metricInvalidIDResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "invalid_id_responses_total",
		Help:      "Responses received for an unknown or expired request id.",
	}, []string{"connection_id"})

	metricNilIDErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "duplexrpc",
		Name:      "nil_id_errors_total",
		Help:      "Nil-id error-responses received from the peer.",
	}, []string{"connection_id"})

	metricPendingResponses = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "duplexrpc",
		Name:      "pending_responses",
		Help:      "Outstanding outbound requests awaiting a response.",
	}, []string{"connection_id"})
)

// connMetrics binds the package-level vectors to one connection_id label so
// call sites don't repeat it.
type connMetrics struct {
	connectionID          string
	requestsSent          prometheus.Counter
	requestsReceived      prometheus.Counter
	requestsHandled       prometheus.Counter
	notificationsSent     prometheus.Counter
	notificationsReceived prometheus.Counter
	notificationsHandled  prometheus.Counter
	invalidIDResponses    prometheus.Counter
	nilIDErrors           prometheus.Counter
	pendingResponses      prometheus.Gauge
}

func newConnMetrics(connectionID string) *connMetrics {
	return &connMetrics{
		connectionID:          connectionID,
		requestsSent:          metricRequestsSent.WithLabelValues(connectionID),
		requestsReceived:      metricRequestsReceived.WithLabelValues(connectionID),
		requestsHandled:       metricRequestsHandled.WithLabelValues(connectionID),
		notificationsSent:     metricNotificationsSent.WithLabelValues(connectionID),
		notificationsReceived: metricNotificationsReceived.WithLabelValues(connectionID),
		notificationsHandled:  metricNotificationsHandled.WithLabelValues(connectionID),
		invalidIDResponses:    metricInvalidIDResponses.WithLabelValues(connectionID),
		nilIDErrors:           metricNilIDErrors.WithLabelValues(connectionID),
		pendingResponses:      metricPendingResponses.WithLabelValues(connectionID),
	}
}

func (m *connMetrics) parseError(kind string) {
	metricParseErrors.WithLabelValues(m.connectionID, kind).Inc()
}
