package utils

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// solvesTotal counts finished solves.
	// Labels: status (solved, infeasible, error)
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vybium_pep",
		Subsystem: "bridge",
		Name:      "solves_total",
		Help:      "Total PEP solves by terminal status",
	}, []string{"status"})

	// solveDuration measures compile plus solve time.
	// Labels: status (as solvesTotal)
	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vybium_pep",
		Subsystem: "bridge",
		Name:      "solve_duration_seconds",
		Help:      "PEP compile and solve duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"status"})

	// solverIterations tracks interior-point iterations per solve.
	solverIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vybium_pep",
		Subsystem: "sdp",
		Name:      "iterations",
		Help:      "Interior-point iterations per solve",
		Buckets:   prometheus.LinearBuckets(5, 5, 20),
	})

	// constraintsAssembled counts assembled constraints.
	// Labels: kind (scalar, lmi, duplicate)
	constraintsAssembled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vybium_pep",
		Subsystem: "assembler",
		Name:      "constraints_total",
		Help:      "Total assembled constraints by kind",
	}, []string{"kind"})

	// certificatesChecked counts certificate verifications.
	// Labels: verified (true, false)
	certificatesChecked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vybium_pep",
		Subsystem: "certificate",
		Name:      "checks_total",
		Help:      "Total certificate verifications by outcome",
	}, []string{"verified"})
)

// RecordSolve records a terminal solve outcome; status is the lowercase
// terminal state name
func RecordSolve(status string, d time.Duration, iterations int) {
	solvesTotal.WithLabelValues(status).Inc()
	solveDuration.WithLabelValues(status).Observe(d.Seconds())
	if iterations > 0 {
		solverIterations.Observe(float64(iterations))
	}
}

// RecordConstraints records the size of an assembled problem
func RecordConstraints(scalars, lmis, duplicates int) {
	constraintsAssembled.WithLabelValues("scalar").Add(float64(scalars))
	constraintsAssembled.WithLabelValues("lmi").Add(float64(lmis))
	constraintsAssembled.WithLabelValues("duplicate").Add(float64(duplicates))
}

// RecordCertificate records a certificate verification outcome
func RecordCertificate(verified bool) {
	label := "false"
	if verified {
		label = "true"
	}
	certificatesChecked.WithLabelValues(label).Inc()
}

// MetricsHandler serves the default prometheus registry
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
