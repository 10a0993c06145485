package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "CONVERT_WORKERS"

// Count returns the number of workers for a task, derived from GOMAXPROCS
// (which follows container CPU limits) times multiplier, capped by limit.
// A limit of 0 means no cap. CONVERT_WORKERS overrides the calculation.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU), used to size
// libvips' internal thread pool for image conversion.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}
