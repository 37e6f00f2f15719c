// Package outcome models the terminal result of an orchestrated operation.
package outcome

import "fmt"

// Kind identifies which variant an Outcome holds.
type Kind int

const (
	KindSuccess Kind = iota + 1
	KindFailure
	KindTimeout
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is a closed tagged union: exactly one of Success, Failure, Timeout
// or Cancelled. The zero value is not a valid outcome.
type Outcome[T any] struct {
	kind   Kind
	value  T
	reason string
}

// Success wraps a result value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{kind: KindSuccess, value: v}
}

// Failure carries a human readable reason.
func Failure[T any](reason string) Outcome[T] {
	return Outcome[T]{kind: KindFailure, reason: reason}
}

// Timeout reports an exhausted attempt budget.
func Timeout[T any]() Outcome[T] {
	return Outcome[T]{kind: KindTimeout}
}

// Cancelled reports that the caller aborted the run.
func Cancelled[T any]() Outcome[T] {
	return Outcome[T]{kind: KindCancelled}
}

func (o Outcome[T]) Kind() Kind { return o.kind }

func (o Outcome[T]) IsSuccess() bool { return o.kind == KindSuccess }

// Value returns the success value and whether the outcome is a success.
func (o Outcome[T]) Value() (T, bool) {
	if o.kind != KindSuccess {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Reason describes a non-success outcome. Success yields an empty string.
func (o Outcome[T]) Reason() string {
	switch o.kind {
	case KindFailure:
		return o.reason
	case KindTimeout:
		return "operation timed out"
	case KindCancelled:
		return "operation cancelled"
	default:
		return ""
	}
}

func (o Outcome[T]) String() string {
	if o.kind == KindSuccess {
		return fmt.Sprintf("success(%v)", o.value)
	}
	if o.kind == KindFailure {
		return fmt.Sprintf("failure(%s)", o.reason)
	}
	return o.kind.String()
}

// Cases holds one handler per variant. Fold panics when a handler is missing
// so that call sites stay exhaustive.
type Cases[T, R any] struct {
	Success   func(T) R
	Failure   func(reason string) R
	Timeout   func() R
	Cancelled func() R
}

// Fold dispatches on the variant held by o.
func Fold[T, R any](o Outcome[T], c Cases[T, R]) R {
	if c.Success == nil || c.Failure == nil || c.Timeout == nil || c.Cancelled == nil {
		panic("outcome: Fold requires a handler for every variant")
	}
	switch o.kind {
	case KindSuccess:
		return c.Success(o.value)
	case KindFailure:
		return c.Failure(o.reason)
	case KindTimeout:
		return c.Timeout()
	case KindCancelled:
		return c.Cancelled()
	default:
		panic(fmt.Sprintf("outcome: invalid kind %d", o.kind))
	}
}

// Map transforms the success value and passes other variants through.
func Map[T, U any](o Outcome[T], fn func(T) U) Outcome[U] {
	switch o.kind {
	case KindSuccess:
		return Success(fn(o.value))
	case KindFailure:
		return Failure[U](o.reason)
	case KindTimeout:
		return Timeout[U]()
	default:
		return Cancelled[U]()
	}
}
