package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/outcome"
	"studio/internal/poller"
	"studio/internal/telemetry"
	"studio/internal/transform"
)

// ErrComposition reports that a dependent step failed after an earlier step
// of the same run had already succeeded. Earlier side effects remain.
var ErrComposition = errors.New("orchestrator: dependent step failed")

// Budgets maps operation kinds to their poll budgets.
type Budgets map[transform.Kind]poller.Budget

// DefaultBudgets returns the stock budgets for the asynchronous kinds.
func DefaultBudgets() Budgets {
	return Budgets{
		transform.KindSmartCrop:  {MaxAttempts: 20, Interval: time.Second, CheckTimeout: 5 * time.Second},
		transform.KindTranscribe: {MaxAttempts: 20, Interval: 5 * time.Second, CheckTimeout: 5 * time.Second},
	}
}

// Observer receives every state transition of every run.
type Observer func(kind transform.Kind, from, to State)

// Options configures an Orchestrator.
type Options struct {
	Client   transform.Client
	Budgets  Budgets
	Logger   *infra.Logger
	Metrics  *telemetry.Metrics
	Observer Observer
}

// Orchestrator drives one operation from submission to a terminal outcome.
// It does not serialize runs; callers guard against concurrent runs on the
// same layer.
type Orchestrator struct {
	client   transform.Client
	budgets  Budgets
	logger   *infra.Logger
	metrics  *telemetry.Metrics
	observer Observer
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, errors.New("orchestrator: client is required")
	}
	budgets := DefaultBudgets()
	for kind, b := range opts.Budgets {
		budgets[kind] = b
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Orchestrator{
		client:   opts.Client,
		budgets:  budgets,
		logger:   logger,
		metrics:  opts.Metrics,
		observer: opts.Observer,
	}, nil
}

// Budget returns the poll budget used for kind.
func (o *Orchestrator) Budget(kind transform.Kind) poller.Budget {
	if b, ok := o.budgets[kind]; ok {
		return b
	}
	return poller.Budget{MaxAttempts: 10, Interval: time.Second}
}

type stepFunc func(ctx context.Context, r *run, prev transform.Asset) outcome.Outcome[transform.Asset]

type step struct {
	name string
	fn   stepFunc
}

func (o *Orchestrator) plan(kind transform.Kind) []step {
	steps := []step{{name: "submit", fn: o.submitAndPoll}}
	if kind == transform.KindTranscribe {
		steps = append(steps, step{name: "upload_subtitled", fn: o.uploadSubtitled})
	}
	return steps
}

// Run executes req and always returns exactly one outcome. Steps run in
// order; the first non-success outcome aborts the rest and is returned as is.
func (o *Orchestrator) Run(ctx context.Context, req transform.Request) outcome.Outcome[transform.Asset] {
	r := o.newRun(req)
	start := time.Now()
	o.metrics.RunStarted()
	defer o.metrics.RunFinished()

	var (
		res  outcome.Outcome[transform.Asset]
		prev transform.Asset
	)
	steps := o.plan(req.Kind)
	for i, st := range steps {
		res = st.fn(ctx, r, prev)
		if !res.IsSuccess() {
			if i > 0 {
				err := fmt.Errorf("%w: %s after %s: %s", ErrComposition, st.name, steps[i-1].name, res.Reason())
				r.log.Warn().Err(err).Msg("orchestrator: composite run aborted")
			}
			break
		}
		prev, _ = res.Value()
	}

	r.finish(res)
	o.metrics.ObserveRun(string(req.Kind), res.Kind().String(), time.Since(start))
	return res
}

func (o *Orchestrator) submitAndPoll(ctx context.Context, r *run, _ transform.Asset) outcome.Outcome[transform.Asset] {
	r.transition(Submitting)
	sub, err := o.client.Submit(ctx, r.req)
	if err != nil {
		if ctx.Err() != nil {
			return outcome.Cancelled[transform.Asset]()
		}
		r.log.Error().Err(err).Msg("orchestrator: submission failed")
		return outcome.Failure[transform.Asset](err.Error())
	}
	switch {
	case sub.Immediate != nil:
		return outcome.Success(*sub.Immediate)
	case sub.Job != nil:
		return o.poll(ctx, r, *sub.Job)
	default:
		return outcome.Failure[transform.Asset]("processing service returned neither a result nor a job")
	}
}

func (o *Orchestrator) poll(ctx context.Context, r *run, job transform.JobRef) outcome.Outcome[transform.Asset] {
	budget := o.Budget(r.req.Kind)
	r.transition(Polling)
	r.log.Debug().
		Str("job_id", job.ID).
		Str("job_url", job.URL).
		Int("max_attempts", budget.MaxAttempts).
		Dur("interval", budget.Interval).
		Msg("orchestrator: polling job")

	attempts := 0
	check := func(ctx context.Context) (poller.Status[transform.Asset], error) {
		st, err := o.client.CheckStatus(ctx, job)
		if err != nil {
			if errors.Is(err, transform.ErrPermanent) {
				return poller.Status[transform.Asset]{}, poller.Fatal(err)
			}
			return poller.Status[transform.Asset]{}, err
		}
		switch st.State {
		case transform.JobComplete:
			asset := job.Expect
			if st.Result != nil {
				asset = *st.Result
			}
			return poller.ReadyStatus(asset), nil
		case transform.JobFailed:
			reason := st.Reason
			if reason == "" {
				reason = "processing failed"
			}
			return poller.FailedStatus[transform.Asset](reason), nil
		default:
			return poller.PendingStatus[transform.Asset](), nil
		}
	}
	res := poller.Poll(ctx, budget, check, poller.OnAttempt(func(a poller.Attempt) {
		attempts = a.Number
		ev := r.log.Debug().Int("attempt", a.Number).Str("status", a.State.String())
		if a.Err != nil {
			ev = ev.Err(a.Err)
		}
		ev.Msg("orchestrator: status checked")
	}))
	o.metrics.ObservePolls(string(r.req.Kind), attempts)
	return res
}

// uploadSubtitled stores the subtitled rendition produced by transcription as
// a new asset, keeping the transcription URL.
func (o *Orchestrator) uploadSubtitled(ctx context.Context, r *run, prev transform.Asset) outcome.Outcome[transform.Asset] {
	r.transition(Submitting)
	asset, err := o.client.Upload(ctx, transform.UploadRequest{
		File:         prev.URL,
		ResourceType: domain.ResourceVideo,
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcome.Cancelled[transform.Asset]()
		}
		r.log.Error().Err(err).Msg("orchestrator: upload of subtitled rendition failed")
		return outcome.Failure[transform.Asset](err.Error())
	}
	asset.TranscriptionURL = prev.TranscriptionURL
	if asset.TranscriptionURL == "" {
		asset.TranscriptionURL = prev.URL
	}
	if asset.Width == 0 || asset.Height == 0 {
		asset.Width, asset.Height = prev.Width, prev.Height
	}
	return outcome.Success(asset)
}
