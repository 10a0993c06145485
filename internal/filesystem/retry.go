package filesystem

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"media-converter/internal/logging"
)

var log = logging.Component("fs")

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns defaults suited to NFS and SMB mounts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isTransient reports errors worth retrying: stale NFS handles and
// interrupted or would-block system calls.
func isTransient(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.ESTALE, syscall.EINTR, syscall.EAGAIN:
		return true
	}
	return false
}

// Do runs fn until it succeeds, fails with a non-transient error, the
// retries are used up or ctx is done. op labels logs and metrics.
func Do(ctx context.Context, op string, config RetryConfig, fn func() error) error {
	backoff := config.InitialBackoff
	var err error

	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTransient(err) {
			if attempt > 0 {
				if err == nil {
					log.Info("%s succeeded on retry %d", op, attempt)
				}
				observeRetry(op, attempt+1, err)
			}
			return err
		}

		if o := defaultObserver; o != nil {
			o.ObserveStaleError(op)
		}
		if attempt >= config.MaxRetries {
			break
		}

		log.Debug("%s: %v, retrying in %v (attempt %d/%d)", op, err, backoff, attempt+1, config.MaxRetries)
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			observeRetry(op, attempt+1, ctx.Err())
			return err
		}
		backoff = min(backoff*2, config.MaxBackoff)
	}

	log.Warn("%s failed after %d retries: %v", op, config.MaxRetries, err)
	observeRetry(op, config.MaxRetries+1, err)
	return err
}

func observeRetry(op string, attempts int, err error) {
	if o := defaultObserver; o != nil {
		o.ObserveRetry(op, attempts, err)
	}
}

// WriteFile is os.WriteFile with retries.
func WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode, config RetryConfig) error {
	return Do(ctx, "write", config, func() error {
		return os.WriteFile(path, data, perm)
	})
}

// ReadFile is os.ReadFile with retries.
func ReadFile(ctx context.Context, path string, config RetryConfig) ([]byte, error) {
	var data []byte
	err := Do(ctx, "read", config, func() error {
		var err error
		data, err = os.ReadFile(path)
		return err
	})
	return data, err
}

// Remove is os.Remove with retries. A missing file is not retried.
func Remove(ctx context.Context, path string, config RetryConfig) error {
	return Do(ctx, "remove", config, func() error {
		return os.Remove(path)
	})
}
