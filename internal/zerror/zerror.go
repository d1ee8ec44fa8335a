// Package zerror classifies errors into the named kinds the core uses
// to decide how a task should react: abort, retry, or skip-and-continue.
package zerror

import (
	"context"
	"errors"
	"fmt"
)

// Kind names one category of failure.
type Kind string

const (
	Configuration Kind = "configuration"
	NotFound      Kind = "not_found"
	Conflict      Kind = "conflict"
	Permission    Kind = "permission"
	IO            Kind = "io"
	Network       Kind = "network"
	Content       Kind = "content"
	Cancel        Kind = "cancel"
	Again         Kind = "again"
)

// Sentinel errors, checked with errors.Is and attached to a Kind via Wrap.
var (
	ErrAgain  = errors.New("zerror: operation would block, retry later")
	ErrCancel = errors.New("zerror: operation canceled")
)

// Error pairs a Kind with the underlying cause for errors.Is/As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches kind to err under op, formatted with %w so errors.Is/As
// still see through to err.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Tier is the three-way propagation decision a classified error maps to:
// Fatal aborts the owning task, Retryable schedules a retry, Skip logs
// and continues with the next item.
type Tier int

const (
	TierSkip Tier = iota
	TierRetryable
	TierFatal
)

// Classify maps err to a propagation Tier. Context cancellation and
// configuration/content corruption are fatal; network and "again"
// sentinels are retryable; everything else defaults to skip so one bad
// item never aborts an otherwise-healthy batch.
func Classify(err error) Tier {
	if err == nil {
		return TierSkip
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCancel) {
		return TierFatal
	}

	var zerr *Error
	if errors.As(err, &zerr) {
		switch zerr.Kind {
		case Configuration, Content:
			return TierFatal
		case Network, Again:
			return TierRetryable
		default:
			return TierSkip
		}
	}

	if errors.Is(err, ErrAgain) {
		return TierRetryable
	}

	return TierSkip
}
