package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a pipeline failure for retry policy.
type ErrorKind int

const (
	// KindValidation marks malformed input; fatal for the job, never retried.
	KindValidation ErrorKind = iota
	// KindTransient marks network/timeout/rate-limit failures; retried with backoff.
	KindTransient
	// KindPolicy marks an explicit content rejection; terminal but not a failure.
	KindPolicy
	// KindQuota marks a daily-limit hit; the job is deferred, not failed.
	KindQuota
	// KindConfig marks missing credentials or broken workspace config; fatal.
	KindConfig
)

// Error tags a wrapped error with the retry classification the worker
// runtime acts on.
type Error struct {
	Kind    ErrorKind
	Op      string
	Err     error
	RetryAt time.Time // set for KindQuota deferrals
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func kindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsTransient reports whether the error should be retried with backoff.
// Unclassified errors are treated as transient so that a plain wrapped
// network error still gets its bounded retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := kindOf(err)
	return !ok || kind == KindTransient
}

// IsValidation reports a malformed-input failure.
func IsValidation(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindValidation
}

// IsPolicy reports an explicit content rejection.
func IsPolicy(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindPolicy
}

// IsConfig reports a configuration failure.
func IsConfig(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindConfig
}

// QuotaDeferral extracts the reschedule time from a quota error.
func QuotaDeferral(err error) (time.Time, bool) {
	var de *Error
	if errors.As(err, &de) && de.Kind == KindQuota {
		return de.RetryAt, true
	}
	return time.Time{}, false
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrArticleExists is returned when a topic already has an active article.
var ErrArticleExists = errors.New("active article already exists for topic")
