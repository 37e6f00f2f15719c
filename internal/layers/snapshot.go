package layers

import (
	"slices"

	"studio/internal/domain"
)

// Snapshot is the persisted form of a stack.
type Snapshot struct {
	Layers              []domain.Layer `json:"layers"`
	ActiveLayerID       string         `json:"activeLayerId"`
	LayerComparisonMode bool           `json:"layerComparisonMode"`
	ComparedLayerIDs    []string       `json:"comparedLayerIds"`
	Version             uint64         `json:"version,omitempty"`
}

// Snapshot captures the current state.
func (s *Stack) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls := slices.Clone(s.layers)
	if ls == nil {
		ls = []domain.Layer{}
	}
	compared := slices.Clone(s.compared)
	if compared == nil {
		compared = []string{}
	}
	return Snapshot{
		Layers:              ls,
		ActiveLayerID:       s.activeLocked().ID,
		LayerComparisonMode: len(compared) > 0,
		ComparedLayerIDs:    compared,
		Version:             s.version,
	}
}

// Restore rebuilds a stack from a snapshot. An active id that is not in the
// layer list falls back to the first layer. Compared ids are filtered to
// known layers and trimmed to the window size; the comparison flag is
// derived from what remains.
func Restore(snap Snapshot) *Stack {
	s := &Stack{version: snap.Version}
	seen := make(map[string]struct{}, len(snap.Layers))
	for _, l := range snap.Layers {
		if l.ID == "" {
			continue
		}
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		s.layers = append(s.layers, l)
	}

	if len(s.layers) > 0 && s.layers[0].IsPlaceholder() {
		s.placeholder = s.layers[0]
	} else {
		s.placeholder = newPlaceholder()
	}

	switch {
	case s.indexOf(snap.ActiveLayerID) >= 0:
		s.activeID = snap.ActiveLayerID
	default:
		s.activeID = s.fallbackActiveLocked()
	}

	var compared []string
	for _, id := range snap.ComparedLayerIDs {
		if _, ok := seen[id]; ok && !slices.Contains(compared, id) {
			compared = append(compared, id)
		}
	}
	s.compared = lastN(compared, MaxCompared)
	return s
}
