package orchestrator

import (
	"github.com/google/uuid"

	"studio/internal/infra"
	"studio/internal/outcome"
	"studio/internal/transform"
)

// State is a step in a run's lifecycle.
type State int

const (
	Idle State = iota
	Submitting
	Polling
	Succeeded
	Failed
	TimedOut
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal states are absorbing.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == TimedOut || s == Cancelled
}

type run struct {
	id       string
	req      transform.Request
	state    State
	log      infra.Logger
	observer Observer
}

func (o *Orchestrator) newRun(req transform.Request) *run {
	id := uuid.NewString()
	return &run{
		id:    id,
		req:   req,
		state: Idle,
		log: o.logger.With().
			Str("run_id", id).
			Str("operation", string(req.Kind)).
			Str("layer_id", req.Source.ID).
			Logger(),
		observer: o.observer,
	}
}

func (r *run) transition(to State) {
	from := r.state
	if from.Terminal() {
		r.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("orchestrator: ignored transition out of terminal state")
		return
	}
	if from == to {
		return
	}
	r.state = to
	r.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("orchestrator: state transition")
	if r.observer != nil {
		r.observer(r.req.Kind, from, to)
	}
}

func (r *run) finish(res outcome.Outcome[transform.Asset]) {
	to := outcome.Fold(res, outcome.Cases[transform.Asset, State]{
		Success:   func(transform.Asset) State { return Succeeded },
		Failure:   func(string) State { return Failed },
		Timeout:   func() State { return TimedOut },
		Cancelled: func() State { return Cancelled },
	})
	r.transition(to)
	ev := r.log.Info()
	if to != Succeeded {
		ev = r.log.Warn().Str("reason", res.Reason())
	}
	ev.Str("outcome", res.Kind().String()).Msg("orchestrator: run finished")
}
