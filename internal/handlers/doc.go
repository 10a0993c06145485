// Package handlers provides the HTTP bridge between a front end and the
// conversion orchestrator.
//
// It includes handlers for:
//   - Mode selection and state snapshots
//   - File upload and conversion
//   - Incremental and long-poll event reads
//   - Artifact download by identity
//   - Health, readiness, version and metrics endpoints
//
// Uploads are refused with 503 while the memory monitor reports critical
// usage.
package handlers
