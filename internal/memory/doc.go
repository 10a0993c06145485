// Package memory keeps the converter inside its container memory budget.
//
// Uploads and converted outputs are held in memory, and libvips and the
// ffmpeg child process allocate outside the Go heap. [ConfigureFromEnv]
// sets GOMEMLIMIT to a share of MEMORY_LIMIT so the heap leaves room for
// them. [Monitor] samples heap usage and, between the critical and high
// water marks, refuses new conversions with [ErrMemoryPressure].
//
//	memory.ConfigureFromEnv()
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
package memory
