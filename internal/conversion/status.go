package conversion

// Status is the lifecycle stage of a conversion job.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusValidating Status = "validating"
	StatusPreparing  Status = "preparing"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Active reports whether a job in this status still has work outstanding.
func (s Status) Active() bool {
	switch s {
	case StatusValidating, StatusPreparing, StatusRunning:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// validTransition enforces the job state machine edges. Any status may
// return to idle through a reset.
func validTransition(from, to Status) bool {
	if to == StatusIdle {
		return true
	}
	switch from {
	case StatusIdle:
		return to == StatusValidating
	case StatusValidating:
		return to == StatusPreparing || to == StatusRunning || to == StatusFailed
	case StatusPreparing:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed
	default:
		return false
	}
}

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	// KindInvalidInput means the file does not match the active mode.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindEngineInit means the video engine could not be loaded.
	KindEngineInit ErrorKind = "engine_init"
	// KindTranscode means the conversion itself failed.
	KindTranscode ErrorKind = "transcode"
)
