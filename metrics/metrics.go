package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stepline-ci/stepline/types"
)

const (
	MetricsNamespace = "stepline"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "steps_total",
		Help:      "Count of executed steps",
	}, []string{
		"recipe",
		"run_id",
		"step",
		"status",
	})

	stepDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "step_duration_seconds",
		Help:      "Wall-clock duration of each step",
	}, []string{
		"recipe",
		"run_id",
		"step",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Exit code of build runs",
	}, []string{
		"recipe",
		"run_id",
	})

	parseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "log_parse_errors_total",
		Help:      "Count of soft parsing errors seen by the log classifier",
	}, []string{
		"run_id",
		"step",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordStep counts one executed step under its final presentation status.
func RecordStep(recipe, runID, step string, status types.Status, duration time.Duration) {
	label := string(status)
	if label == "" {
		label = "SUCCESS"
	}
	if Debug {
		log.Debug("metric inc",
			"m", "steps_total",
			"recipe", recipe,
			"run_id", runID,
			"step", step,
			"status", label)
	}
	stepsTotal.WithLabelValues(recipe, runID, step, label).Inc()
	stepDuration.WithLabelValues(recipe, runID, step).Set(duration.Seconds())
}

// RecordRunResult records the exit code of a completed run.
func RecordRunResult(recipe, runID string, exitCode int) {
	if Debug {
		log.Debug("metric set",
			"m", "run_results",
			"recipe", recipe,
			"run_id", runID,
			"exit_code", exitCode)
	}
	runResults.WithLabelValues(recipe, runID).Set(float64(exitCode))
}

// RecordParseErrors counts classifier soft errors attributed to a step.
func RecordParseErrors(runID, step string, count int) {
	if count <= 0 {
		return
	}
	parseErrorsTotal.WithLabelValues(runID, step).Add(float64(count))
}
