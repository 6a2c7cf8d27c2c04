package validation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "github.com/specialistvlad/stagecheck/internal/validation"

// Task results used as the "result" label.
const (
	ResultPassed     = "passed"
	ResultViolations = "violations"
	ResultFailed     = "failed"
	ResultCancelled  = "cancelled"
)

// Metrics are the validation counters. They accumulate across passes.
type Metrics struct {
	// Tasks counts validation tasks by result.
	Tasks *prometheus.CounterVec
	// Violations counts blocking-navigation violations by hole kind.
	Violations *prometheus.CounterVec
	Duration   prometheus.Histogram
}

// NewMetrics creates the validation metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecheck_validation_tasks_total",
			Help: "Total validation tasks by result",
		}, []string{"result"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecheck_validation_violations_total",
			Help: "Blocking-navigation violations by hole kind",
		}, []string{"kind"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagecheck_validation_task_duration_seconds",
			Help:    "Duration of one validation task including retries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}
