package studio

import (
	"context"
	"fmt"

	"studio/internal/domain"
	"studio/internal/layers"
)

// Snapshot returns the session's current state, creating the session on
// first access.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	st, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return layers.Snapshot{}, err
	}
	return st.Snapshot(), nil
}

// mutate applies fn to the session stack and saves the result.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*layers.Stack) error) (layers.Snapshot, error) {
	st, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return layers.Snapshot{}, err
	}
	if err := fn(st); err != nil {
		return layers.Snapshot{}, err
	}
	if err := s.sessions.Save(ctx, sessionID, st); err != nil {
		return layers.Snapshot{}, fmt.Errorf("studio: save session: %w", err)
	}
	return st.Snapshot(), nil
}

// NewLayer appends an empty placeholder awaiting upload.
func (s *Service) NewLayer(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		st.NewPlaceholder()
		return nil
	})
}

// SetLayers replaces the whole stack. Like RemoveAll it is refused while any
// run is in flight in the session.
func (s *Service) SetLayers(ctx context.Context, sessionID string, ls []domain.Layer) (layers.Snapshot, error) {
	if s.sessionBusy(sessionID) {
		return layers.Snapshot{}, domain.ErrLayerBusy
	}
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		return st.SetLayers(ls)
	})
}

// RemoveLayer refuses layers with a run in flight.
func (s *Service) RemoveLayer(ctx context.Context, sessionID, layerID string) (layers.Snapshot, error) {
	if s.Busy(sessionID, layerID) {
		return layers.Snapshot{}, domain.ErrLayerBusy
	}
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		return st.Remove(layerID)
	})
}

func (s *Service) RemoveAll(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	if s.sessionBusy(sessionID) {
		return layers.Snapshot{}, domain.ErrLayerBusy
	}
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		st.RemoveAll()
		return nil
	})
}

func (s *Service) SetActive(ctx context.Context, sessionID, layerID string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		st.SetActive(layerID)
		return nil
	})
}

func (s *Service) SetPoster(ctx context.Context, sessionID, layerID, poster string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		return st.SetPoster(layerID, poster)
	})
}

func (s *Service) Compare(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		_, err := st.Compare()
		return err
	})
}

func (s *Service) ToggleCompared(ctx context.Context, sessionID, layerID string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		_, err := st.ToggleCompared(layerID)
		return err
	})
}

func (s *Service) SetComparedLayers(ctx context.Context, sessionID string, ids []string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		_, err := st.SetComparedLayers(ids)
		return err
	})
}

func (s *Service) StopComparing(ctx context.Context, sessionID string) (layers.Snapshot, error) {
	return s.mutate(ctx, sessionID, func(st *layers.Stack) error {
		st.StopComparing()
		return nil
	})
}

// DropSession cancels the session's runs and forgets it entirely. A run
// that finishes afterwards cannot bring the session back.
func (s *Service) DropSession(ctx context.Context, sessionID string) error {
	if n := s.cancelSession(sessionID); n > 0 {
		s.logger.Info().Str("session_id", sessionID).Int("runs", n).Msg("studio: runs cancelled by session drop")
	}
	return s.sessions.Drop(ctx, sessionID)
}
