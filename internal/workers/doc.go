/*
Package workers sizes worker pools from the CPU budget the process actually
has.

Inside containers runtime.NumCPU reports the host's CPUs while GOMAXPROCS
follows the cgroup limit, so Count starts from GOMAXPROCS:

	// libvips threads for HEIC decoding, at most 4
	concurrency := workers.ForCPU(4)

Operators can pin the value with CONVERT_WORKERS; the limit still applies.
*/
package workers
