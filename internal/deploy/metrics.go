package deploy

import "github.com/prometheus/client_golang/prometheus"

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmhost",
			Subsystem: "deploy",
			Name:      "operations_total",
			Help:      "Deployment operations by kind and result",
		},
		[]string{"op", "result"},
	)

	provisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmhost",
			Subsystem: "deploy",
			Name:      "provision_duration_seconds",
			Help:      "Time from provisioning request to endpoint in service",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 3600},
		},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmhost",
			Subsystem: "deploy",
			Name:      "generate_duration_seconds",
			Help:      "Round-trip time of generation requests",
			Buckets:   prometheus.DefBuckets,
		},
	)

	liveEndpoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llmhost",
			Subsystem: "deploy",
			Name:      "live_endpoints",
			Help:      "Endpoints created and not yet torn down",
		},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal, provisionDuration, generateDuration, liveEndpoints)
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
}
