// Package studio is the caller-facing surface of the orchestration layer:
// it resolves the session and source layer, runs the operation, folds the
// outcome into the stack and reports a two-variant Result.
package studio

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/layers"
	"studio/internal/locale"
	"studio/internal/notify"
	"studio/internal/outcome"
	"studio/internal/session"
	"studio/internal/telemetry"
	"studio/internal/transform"
)

// Runner executes one operation to a terminal outcome.
type Runner interface {
	Run(ctx context.Context, req transform.Request) outcome.Outcome[transform.Asset]
}

// LayerRecorder persists a record of every layer an operation produced.
type LayerRecorder interface {
	Record(ctx context.Context, rec domain.LayerRecord) error
}

// Options wires a Service.
type Options struct {
	Sessions       *session.Registry
	Runner         Runner
	Mutator        *layers.Mutator
	Recorder       LayerRecorder
	Publisher      notify.Publisher
	Metrics        *telemetry.Metrics
	Logger         *infra.Logger
	PersistTimeout time.Duration
	// SourceHosts restricts upload URLs to these hosts. Empty allows any.
	SourceHosts []string
}

type Service struct {
	sessions       *session.Registry
	runner         Runner
	mutator        *layers.Mutator
	recorder       LayerRecorder
	publisher      notify.Publisher
	metrics        *telemetry.Metrics
	logger         *infra.Logger
	persistTimeout time.Duration
	sourceHosts    map[string]struct{}

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	pending  sync.WaitGroup
}

func New(opts Options) (*Service, error) {
	if opts.Sessions == nil || opts.Runner == nil {
		return nil, errors.New("studio: sessions and runner are required")
	}
	svc := &Service{
		sessions:       opts.Sessions,
		runner:         opts.Runner,
		mutator:        opts.Mutator,
		recorder:       opts.Recorder,
		publisher:      opts.Publisher,
		metrics:        opts.Metrics,
		logger:         infra.Component(opts.Logger, "studio"),
		persistTimeout: opts.PersistTimeout,
		sourceHosts:    make(map[string]struct{}, len(opts.SourceHosts)),
		inflight:       make(map[string]context.CancelFunc),
	}
	if svc.mutator == nil {
		svc.mutator = layers.NewMutator()
	}
	if svc.publisher == nil {
		svc.publisher = notify.NewLogPublisher(svc.logger)
	}
	if svc.persistTimeout <= 0 {
		svc.persistTimeout = 10 * time.Second
	}
	for _, h := range opts.SourceHosts {
		svc.sourceHosts[strings.ToLower(h)] = struct{}{}
	}
	return svc, nil
}

// Invoke runs one operation for a session and never panics. The run is
// detached from ctx so it completes even if the caller goes away; Cancel
// stops it explicitly.
func (s *Service) Invoke(ctx context.Context, sessionID string, req InvokeRequest) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Str("session_id", sessionID).
				Msg("studio: invoke panicked")
			res = errorResult(CodeFailed, "internal error")
		}
	}()

	kind, err := transform.ParseKind(string(req.Kind))
	if err != nil {
		return s.reject(ctx, sessionID, "", req, CodeInvalid, err)
	}
	req.Kind = kind
	if err := req.Params.Validate(kind); err != nil {
		return s.reject(ctx, sessionID, req.LayerID, req, CodeInvalid, err)
	}
	if err := s.checkUploadHost(kind, req.Params); err != nil {
		return s.reject(ctx, sessionID, req.LayerID, req, CodeInvalid, err)
	}

	st, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		code := CodeFailed
		if errors.Is(err, session.ErrInvalidID) {
			code = CodeInvalid
		}
		return s.reject(ctx, sessionID, req.LayerID, req, code, err)
	}
	source, err := resolveSource(st, kind, req.LayerID)
	if err != nil {
		return s.reject(ctx, sessionID, req.LayerID, req, CodeInvalid, err)
	}

	runCtx, release, ok := s.acquire(ctx, sessionID, source.ID)
	if !ok {
		return s.reject(ctx, sessionID, source.ID, req, CodeBusy, domain.ErrLayerBusy)
	}
	defer release()

	log := s.logger.With().Str("session_id", sessionID).Str("layer_id", source.ID).Str("operation", string(kind)).Logger()
	log.Info().Msg("studio: operation started")

	out := s.runner.Run(runCtx, transform.Request{Kind: kind, Source: source, Params: req.Params})
	return outcome.Fold(out, outcome.Cases[transform.Asset, Result]{
		Success: func(a transform.Asset) Result {
			return s.applySuccess(ctx, sessionID, st, source, req, a)
		},
		Failure: func(reason string) Result {
			return s.finishWithout(ctx, sessionID, source.ID, req, CodeFailed, reason)
		},
		Timeout: func() Result {
			return s.finishWithout(ctx, sessionID, source.ID, req, CodeTimeout, out.Reason())
		},
		Cancelled: func() Result {
			return s.finishWithout(ctx, sessionID, source.ID, req, CodeCancelled, out.Reason())
		},
	})
}

// Cancel stops the in-flight run on a layer. It reports whether one existed.
func (s *Service) Cancel(sessionID, layerID string) bool {
	s.mu.Lock()
	cancel, ok := s.inflight[inflightKey(sessionID, layerID)]
	s.mu.Unlock()
	if ok {
		cancel()
		s.logger.Info().Str("session_id", sessionID).Str("layer_id", layerID).Msg("studio: cancellation requested")
	}
	return ok
}

// cancelSession cancels every run in flight in the session and reports how
// many there were.
func (s *Service) cancelSession(sessionID string) int {
	prefix := sessionID + "/"
	s.mu.Lock()
	var cancels []context.CancelFunc
	for key, cancel := range s.inflight {
		if strings.HasPrefix(key, prefix) {
			cancels = append(cancels, cancel)
		}
	}
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}

// sessionBusy reports whether any layer of the session has a run in flight.
func (s *Service) sessionBusy(sessionID string) bool {
	prefix := sessionID + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.inflight {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Busy reports whether a run is in flight on the layer.
func (s *Service) Busy(sessionID, layerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[inflightKey(sessionID, layerID)]
	return ok
}

// Close waits for background persistence started by finished runs.
func (s *Service) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("studio: waiting for persistence: %w", ctx.Err())
	}
}

func inflightKey(sessionID, layerID string) string {
	return sessionID + "/" + layerID
}

func (s *Service) acquire(ctx context.Context, sessionID, layerID string) (context.Context, func(), bool) {
	key := inflightKey(sessionID, layerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return nil, nil, false
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.inflight[key] = cancel
	return runCtx, func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		cancel()
	}, true
}

func resolveSource(st *layers.Stack, kind transform.Kind, layerID string) (domain.Layer, error) {
	source := st.Active()
	if layerID != "" {
		l, ok := st.Get(layerID)
		if !ok {
			return domain.Layer{}, fmt.Errorf("%w: %s", layers.ErrLayerNotFound, layerID)
		}
		source = l
	}
	if kind == transform.KindUpload {
		return source, nil
	}
	if source.IsPlaceholder() {
		return domain.Layer{}, fmt.Errorf("%w: layer %s has no asset yet", ErrInvalidSource, source.ID)
	}
	if want := kind.SourceType(); source.ResourceType != want {
		return domain.Layer{}, fmt.Errorf("%w: %s needs a %s layer, got %q", ErrInvalidSource, kind, want, source.ResourceType)
	}
	return source, nil
}

func (s *Service) checkUploadHost(kind transform.Kind, p transform.Params) error {
	if kind != transform.KindUpload || len(s.sourceHosts) == 0 {
		return nil
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("%w: upload url %q is not absolute", ErrInvalidSource, p.URL)
	}
	if _, ok := s.sourceHosts[strings.ToLower(u.Hostname())]; !ok {
		return fmt.Errorf("%w: host %s is not allowed", ErrInvalidSource, u.Hostname())
	}
	return nil
}

func (s *Service) applySuccess(ctx context.Context, sessionID string, st *layers.Stack, source domain.Layer, req InvokeRequest, a transform.Asset) Result {
	var (
		layer domain.Layer
		err   error
	)
	switch req.Kind {
	case transform.KindUpload:
		name := layers.FileName(req.Params.URL)
		if name == "" {
			name = layers.FileName(a.URL)
		}
		layer, err = s.mutator.ApplyUpload(st, a, source, name)
	default:
		layer, err = s.mutator.ApplySuccess(st, a, source, layers.RuleFor(req.Kind))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("studio: could not apply result")
		return s.finishWithout(ctx, sessionID, source.ID, req, CodeFailed, err.Error())
	}
	if req.Kind == transform.KindTranscribe && layer.TranscriptionURL != "" {
		if err := st.SetTranscription(source.ID, layer.TranscriptionURL); err != nil {
			s.logger.Warn().Err(err).Str("layer_id", source.ID).Msg("studio: source layer gone before transcription patch")
		}
	}

	res := Result{Success: &layer, Version: st.Version()}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()
	switch err := s.sessions.Save(saveCtx, sessionID, st); {
	case errors.Is(err, session.ErrStale):
		s.logger.Warn().Str("session_id", sessionID).Str("layer_id", layer.ID).Msg("studio: session dropped during run, result discarded")
		res.Warning = locale.Printer(locale.Normalize(req.Locale)).Sprintf(locale.MsgNotPersisted)
	case err != nil:
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("studio: snapshot not saved")
		res.Warning = locale.Printer(locale.Normalize(req.Locale)).Sprintf(locale.MsgNotPersisted)
		s.recordAsync(sessionID, req, layer)
	default:
		s.recordAsync(sessionID, req, layer)
	}
	s.publish(ctx, notify.Event{SessionID: sessionID, LayerID: layer.ID, Kind: string(req.Kind), Code: notify.CodeSuccess, Locale: req.Locale}, "")
	return res
}

// recordAsync persists the new layer without blocking the caller. Failures
// are logged, counted and published as a warning; the stack keeps the layer.
func (s *Service) recordAsync(sessionID string, req InvokeRequest, layer domain.Layer) {
	if s.recorder == nil {
		return
	}
	rec := domain.LayerRecord{
		LayerID:   layer.ID,
		SessionID: sessionID,
		Operation: string(req.Kind),
		URL:       layer.URL,
		PublicID:  layer.PublicID,
		Metadata: map[string]any{
			"name":         layer.Name,
			"resourceType": layer.ResourceType,
			"width":        layer.Width,
			"height":       layer.Height,
			"format":       layer.Format,
		},
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		defer cancel()
		err := s.recorder.Record(ctx, rec)
		s.metrics.ObservePersist(err == nil)
		if err == nil {
			return
		}
		s.logger.Error().Err(err).Str("session_id", sessionID).Str("layer_id", layer.ID).Msg("studio: layer not recorded")
		s.publish(ctx, notify.Event{SessionID: sessionID, LayerID: layer.ID, Kind: string(req.Kind), Code: notify.CodeWarning, Locale: req.Locale}, locale.MsgNotRecorded)
	}()
}

func (s *Service) finishWithout(ctx context.Context, sessionID, layerID string, req InvokeRequest, code Code, reason string) Result {
	s.logger.Warn().
		Str("session_id", sessionID).
		Str("layer_id", layerID).
		Str("operation", string(req.Kind)).
		Str("code", string(code)).
		Str("reason", reason).
		Msg("studio: operation did not produce a layer")
	s.publish(ctx, notify.Event{SessionID: sessionID, LayerID: layerID, Kind: string(req.Kind), Code: notify.Code(code), Locale: req.Locale}, reason)
	return errorResult(code, reason)
}

func (s *Service) reject(ctx context.Context, sessionID, layerID string, req InvokeRequest, code Code, err error) Result {
	s.logger.Info().Err(err).Str("session_id", sessionID).Str("code", string(code)).Msg("studio: operation rejected")
	s.publish(ctx, notify.Event{SessionID: sessionID, LayerID: layerID, Kind: string(req.Kind), Code: notify.Code(code), Locale: req.Locale}, err.Error())
	return errorResult(code, err.Error())
}

func (s *Service) publish(ctx context.Context, ev notify.Event, detail string) {
	ev = notify.Localize(ev, detail)
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, ev); err != nil {
		s.logger.Warn().Err(err).Str("session_id", ev.SessionID).Str("code", string(ev.Code)).Msg("studio: notification not published")
	}
}
