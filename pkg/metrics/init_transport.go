package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransportMetrics() {
	factory := promauto.With(r.registry)

	r.TransportMessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_messages_total",
			Help:      "Protocol messages by transport, type and direction",
		},
		[]string{"transport", "type", "direction"},
	)

	r.TransportBytesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_bytes_total",
			Help:      "Encoded bytes moved by transport and direction",
		},
		[]string{"transport", "direction"},
	)

	r.TransportErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Transport failures by transport and stage",
		},
		[]string{"transport", "stage"},
	)
}
