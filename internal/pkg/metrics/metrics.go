package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// authOperations counts core operations by outcome (ok or the error label).
	authOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of auth operations by outcome",
	}, []string{"operation", "outcome"})

	gatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total number of remote gateway calls by outcome",
	}, []string{"gateway", "outcome"})

	// compensations counts rollbacks of local mutations after a failed remote step.
	compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_compensations_total",
		Help: "Total number of compensating rollbacks by outcome",
	}, []string{"operation", "outcome"})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOperation(operation, outcome string) {
	authOperations.WithLabelValues(operation, outcome).Inc()
}

func RecordGateway(gateway, outcome string) {
	gatewayRequests.WithLabelValues(gateway, outcome).Inc()
}

func RecordCompensation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	compensations.WithLabelValues(operation, outcome).Inc()
}
