package videos

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidIdentifier indicates the input is not a recognised video URL or identifier.
	ErrInvalidIdentifier = errors.New("invalid video identifier")
	// ErrInvalidQuery indicates search parameters that cannot be normalised.
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrQuotaExceeded indicates the daily upstream quota cannot cover the operation.
	ErrQuotaExceeded = errors.New("upstream quota exceeded")
	// ErrUpstreamUnavailable indicates the video provider failed, timed out or is not configured.
	ErrUpstreamUnavailable = errors.New("video provider unavailable")
	// ErrNotFound indicates the provider has no video for a well-formed identifier.
	ErrNotFound = errors.New("video not found")
)

// QuotaExceededError reports a denied reservation together with the ledger
// state a caller needs for a retry hint.
type QuotaExceededError struct {
	Used    int64
	Limit   int64
	Cost    int64
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("upstream quota exceeded: %d of %d used, operation costs %d", e.Used, e.Limit, e.Cost)
}

// Is lets errors.Is match against ErrQuotaExceeded.
func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// RetryAfter returns how long until the ledger window resets, relative to now.
func (e *QuotaExceededError) RetryAfter(now time.Time) time.Duration {
	if e.ResetAt.IsZero() || !e.ResetAt.After(now) {
		return 0
	}
	return e.ResetAt.Sub(now)
}

// UpstreamError describes a failed provider response. It never leaves the
// gateway; callers only see ErrUpstreamUnavailable or ErrNotFound.
type UpstreamError struct {
	Status int
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("upstream status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
