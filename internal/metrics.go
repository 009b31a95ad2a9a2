package internal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by the gateway and the session.
type Metrics struct {
	Requests *prometheus.CounterVec
	Retries  prometheus.Counter
	Renewals *prometheus.CounterVec
}

// NewMetrics creates the collectors. With a nil registerer they are created
// but not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "requests_total",
			Help:      "HTTP attempts issued by the request gateway, by method and status class.",
		}, []string{"method", "status"}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "request_retries_total",
			Help:      "Requests replayed after a successful credential renewal.",
		}),
		Renewals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum_client",
			Name:      "renewals_total",
			Help:      "Credential renewal attempts that reached the network, by outcome.",
		}, []string{"outcome"}),
	}
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code == 401:
		return "401"
	case code < 500:
		return "4xx"
	}
	return "5xx"
}
