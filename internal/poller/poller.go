package poller

import (
	"context"
	"errors"
	"time"

	"studio/internal/outcome"
)

// State is the coarse status of an external job.
type State int

const (
	Pending State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Status is what a single check reports.
type Status[T any] struct {
	State  State
	Value  T
	Reason string
}

func PendingStatus[T any]() Status[T] { return Status[T]{State: Pending} }

func ReadyStatus[T any](v T) Status[T] { return Status[T]{State: Ready, Value: v} }

func FailedStatus[T any](reason string) Status[T] { return Status[T]{State: Failed, Reason: reason} }

// CheckFunc queries the job once.
type CheckFunc[T any] func(ctx context.Context) (Status[T], error)

// Budget bounds a poll loop. CheckTimeout caps a single check; zero leaves
// checks bounded only by the caller's context.
type Budget struct {
	MaxAttempts  int           `koanf:"max_attempts"`
	Interval     time.Duration `koanf:"interval"`
	CheckTimeout time.Duration `koanf:"check_timeout"`
}

// Waits is the longest the loop can spend sleeping between checks.
func (b Budget) Waits() time.Duration {
	if b.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(b.MaxAttempts-1) * b.Interval
}

// Ceiling is the wall-clock bound of a whole loop: the waits plus every check
// running into its timeout. It is only a bound when CheckTimeout is set.
func (b Budget) Ceiling() time.Duration {
	if b.MaxAttempts <= 0 {
		return 0
	}
	return b.Waits() + time.Duration(b.MaxAttempts)*b.CheckTimeout
}

func (b Budget) check(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.CheckTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.CheckTimeout)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }

func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks a check error as structurally fatal: the loop stops and reports
// a Failure instead of treating the error as a pending iteration.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Attempt describes one completed check, passed to an AttemptHook.
type Attempt struct {
	Number int
	State  State
	Err    error
}

type AttemptHook func(Attempt)

type Option func(*settings)

type settings struct {
	onAttempt AttemptHook
}

// OnAttempt registers a hook called after every check.
func OnAttempt(h AttemptHook) Option {
	return func(s *settings) { s.onAttempt = h }
}

// Poll runs check up to b.MaxAttempts times, waiting b.Interval between
// attempts. It returns on the first terminal status and never waits after
// a terminal status or after the last attempt. A check that runs past
// b.CheckTimeout counts as a pending attempt.
func Poll[T any](ctx context.Context, b Budget, check CheckFunc[T], opts ...Option) outcome.Outcome[T] {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if b.MaxAttempts <= 0 {
		return outcome.Timeout[T]()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return outcome.Cancelled[T]()
		}

		checkCtx, cancel := b.check(ctx)
		st, err := check(checkCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return outcome.Cancelled[T]()
			}
			if IsFatal(err) {
				s.report(Attempt{Number: attempt, State: Failed, Err: err})
				return outcome.Failure[T](err.Error())
			}
			st = PendingStatus[T]()
		}
		s.report(Attempt{Number: attempt, State: st.State, Err: err})

		switch st.State {
		case Ready:
			return outcome.Success(st.Value)
		case Failed:
			return outcome.Failure[T](st.Reason)
		}

		if attempt == b.MaxAttempts {
			break
		}
		if b.Interval <= 0 {
			continue
		}
		if timer == nil {
			timer = time.NewTimer(b.Interval)
		} else {
			timer.Reset(b.Interval)
		}
		select {
		case <-ctx.Done():
			return outcome.Cancelled[T]()
		case <-timer.C:
		}
	}
	return outcome.Timeout[T]()
}

func (s settings) report(a Attempt) {
	if s.onAttempt != nil {
		s.onAttempt(a)
	}
}
