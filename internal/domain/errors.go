package domain

import (
	"errors"
	"fmt"
)

// Sentinel kinds for experiment failures. A fatal error aborts the
// affected job immediately; a retryable one means the external sampler
// completed without producing usable output and the attempt should be
// cleaned up and repeated.
var (
	ErrFatal     = errors.New("experiment failure")
	ErrRetryable = errors.New("wsi repeat")
)

// Fatalf wraps a formatted message as a fatal experiment error.
func Fatalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrFatal)...)
}

// Retryablef wraps a formatted message as a retryable WSI failure.
func Retryablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrRetryable)...)
}

// IsRetryable reports whether err is a transient WSI failure.
func IsRetryable(err error) bool { return errors.Is(err, ErrRetryable) }

// IsFatal reports whether err is a non-retryable experiment failure.
func IsFatal(err error) bool { return errors.Is(err, ErrFatal) }
