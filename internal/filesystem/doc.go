// Package filesystem retries file operations that fail transiently on
// network-mounted storage.
//
// The ffmpeg working directory (WORK_DIR) is often a container volume. On
// NFS a file handle can go stale (ESTALE) between the write of the input and
// the read of the output; such errors, along with EINTR and EAGAIN, are
// retried with exponential backoff:
//
//	err := filesystem.WriteFile(ctx, path, data, 0o600, filesystem.DefaultRetryConfig())
//
// Any other error, fs.ErrNotExist included, is returned immediately.
//
// Retry metrics are recorded through an [Observer] registered with
// [SetObserver].
package filesystem
