package filesystem

// Observer records retry metrics. The implementation lives in the metrics
// package to avoid an import cycle.
type Observer interface {
	// ObserveStaleError records one transient failure of op.
	ObserveStaleError(op string)
	// ObserveRetry records the end of a retried op. err is nil on success.
	ObserveRetry(op string, attempts int, err error)
}

// defaultObserver is set once at startup. Nil skips recording.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}
