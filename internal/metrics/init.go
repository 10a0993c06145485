package metrics

import (
	"media-converter/internal/conversion"
	"media-converter/internal/mediatypes"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	outcomes := []string{conversion.OutcomeSucceeded, conversion.OutcomeFailed, conversion.OutcomeAbandoned}

	for _, mode := range mediatypes.Modes() {
		m := string(mode)
		for _, outcome := range outcomes {
			JobsTotal.WithLabelValues(m, outcome)
			JobDuration.WithLabelValues(m, outcome)
		}
		JobsInProgress.WithLabelValues(m)
		StaleResultsTotal.WithLabelValues(m)
		UploadBytes.WithLabelValues(m)
	}

	for _, status := range []string{"success", "error"} {
		EngineLoadsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"write", "read", "remove"} {
		FilesystemStaleErrors.WithLabelValues(op)
		FilesystemRetries.WithLabelValues(op, "success")
		FilesystemRetries.WithLabelValues(op, "failure")
	}
}
