package metrics

import (
	"time"

	"media-converter/internal/artifact"
	"media-converter/internal/conversion"
	"media-converter/internal/engine"
	"media-converter/internal/filesystem"
	"media-converter/internal/mediatypes"
)

// jobObserver implements conversion.Observer.
type jobObserver struct{}

// NewJobObserver creates an observer that records conversion job metrics.
func NewJobObserver() conversion.Observer {
	return &jobObserver{}
}

func (o *jobObserver) JobStarted(mode mediatypes.Mode) {
	JobsInProgress.WithLabelValues(string(mode)).Inc()
}

func (o *jobObserver) JobFinished(mode mediatypes.Mode, outcome string, duration time.Duration) {
	m := string(mode)
	JobsInProgress.WithLabelValues(m).Dec()
	JobsTotal.WithLabelValues(m, outcome).Inc()
	JobDuration.WithLabelValues(m, outcome).Observe(duration.Seconds())
}

func (o *jobObserver) StaleResult(mode mediatypes.Mode) {
	StaleResultsTotal.WithLabelValues(string(mode)).Inc()
}

// engineObserver implements engine.Observer.
type engineObserver struct{}

// NewEngineObserver creates an observer that records engine load metrics.
func NewEngineObserver() engine.Observer {
	return &engineObserver{}
}

func (o *engineObserver) ObserveLoad(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EngineLoadsTotal.WithLabelValues(status).Inc()
	EngineLoadDuration.Observe(duration.Seconds())
}

func (o *engineObserver) ObserveState(state engine.State) {
	EngineState.Set(float64(state))
}

// artifactObserver implements artifact.Observer.
type artifactObserver struct{}

// NewArtifactObserver creates an observer that tracks live artifacts.
func NewArtifactObserver() artifact.Observer {
	return &artifactObserver{}
}

func (o *artifactObserver) ObserveLive(count int) {
	ArtifactsLive.Set(float64(count))
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records working storage
// retry metrics.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveStaleError(op string) {
	FilesystemStaleErrors.WithLabelValues(op).Inc()
}

func (o *filesystemObserver) ObserveRetry(op string, _ int, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	FilesystemRetries.WithLabelValues(op, result).Inc()
}
