// Package layers holds the per-session layer stack: the ordered history of
// layers, the active selection and the two-slot comparison window.
package layers

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"studio/internal/domain"
)

// MaxCompared is the size of the comparison window.
const MaxCompared = 2

var (
	ErrLayerNotFound  = errors.New("layers: layer not found")
	ErrDuplicateID    = errors.New("layers: duplicate layer id")
	ErrNotPlaceholder = errors.New("layers: layer already holds an asset")
	ErrNotComparable  = errors.New("layers: only rendered image layers can be compared")
)

// Stack is safe for concurrent use. All mutations bump Version.
type Stack struct {
	mu          sync.RWMutex
	layers      []domain.Layer
	placeholder domain.Layer
	activeID    string
	compared    []string
	version     uint64
}

// NewStack returns a stack holding one placeholder layer, which is active.
func NewStack() *Stack {
	p := newPlaceholder()
	return &Stack{
		layers:      []domain.Layer{p},
		placeholder: p,
		activeID:    p.ID,
	}
}

func newPlaceholder() domain.Layer {
	return domain.Layer{ID: uuid.NewString()}
}

// Version is a generation counter usable as an optimistic concurrency token.
func (s *Stack) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Layers returns a copy of the layers in history order.
func (s *Stack) Layers() []domain.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.layers)
}

func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Get returns the layer with the given id.
func (s *Stack) Get(id string) (domain.Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.layers[i], true
	}
	return domain.Layer{}, false
}

// Active returns the current editing target.
func (s *Stack) Active() domain.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *Stack) activeLocked() domain.Layer {
	if i := s.indexOf(s.activeID); i >= 0 {
		return s.layers[i]
	}
	return s.placeholder
}

// ComparisonMode is true iff at least one layer is being compared.
func (s *Stack) ComparisonMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.compared) > 0
}

// Compared returns the ids in the comparison window, oldest first.
func (s *Stack) Compared() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.compared)
}

// Add appends a layer without changing the active selection.
func (s *Stack) Add(l domain.Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(l)
}

// Push appends a layer and makes it active in one step.
func (s *Stack) Push(l domain.Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.addLocked(l); err != nil {
		return err
	}
	s.activeID = l.ID
	return nil
}

func (s *Stack) addLocked(l domain.Layer) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if s.indexOf(l.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
	}
	s.layers = append(s.layers, l)
	s.version++
	return nil
}

// NewPlaceholder appends an empty layer awaiting upload and returns it.
func (s *Stack) NewPlaceholder() domain.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := newPlaceholder()
	s.layers = append(s.layers, p)
	s.version++
	return p
}

// SetLayers replaces the whole history. The first new layer becomes active,
// or a fresh placeholder when the list is empty.
func (s *Stack) SetLayers(ls []domain.Layer) error {
	seen := make(map[string]struct{}, len(ls))
	for _, l := range ls {
		if l.ID == "" {
			return fmt.Errorf("layers: layer id is required")
		}
		if _, dup := seen[l.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, l.ID)
		}
		seen[l.ID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = slices.Clone(ls)
	s.compared = nil
	if len(s.layers) > 0 {
		s.activeID = s.layers[0].ID
	} else {
		s.placeholder = newPlaceholder()
		s.activeID = s.placeholder.ID
	}
	s.version++
	return nil
}

// Update fills a placeholder layer with its first asset. Layers that already
// hold an asset are immutable and are rejected.
func (s *Stack) Update(l domain.Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(l)
}

// Fill is Update followed by selecting the filled layer, in one step.
func (s *Stack) Fill(l domain.Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateLocked(l); err != nil {
		return err
	}
	s.activeID = l.ID
	return nil
}

func (s *Stack) updateLocked(l domain.Layer) error {
	i := s.indexOf(l.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, l.ID)
	}
	if !s.layers[i].IsPlaceholder() {
		return fmt.Errorf("%w: %s", ErrNotPlaceholder, l.ID)
	}
	s.layers[i] = l
	s.version++
	return nil
}

// Remove deletes a layer. If it was active, the first remaining layer (or
// the initial placeholder) becomes active.
func (s *Stack) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	s.layers = slices.Delete(s.layers, i, i+1)
	s.compared = slices.DeleteFunc(s.compared, func(c string) bool { return c == id })
	if s.activeID == id {
		s.activeID = s.fallbackActiveLocked()
	}
	s.version++
	return nil
}

// RemoveAll empties the stack and re-selects the initial placeholder.
func (s *Stack) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = nil
	s.compared = nil
	s.activeID = s.placeholder.ID
	s.version++
}

// SetActive selects a layer. Unknown ids fall back to the first layer.
func (s *Stack) SetActive(id string) domain.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) >= 0 {
		s.activeID = id
	} else {
		s.activeID = s.fallbackActiveLocked()
	}
	s.version++
	return s.activeLocked()
}

func (s *Stack) fallbackActiveLocked() string {
	if len(s.layers) > 0 {
		return s.layers[0].ID
	}
	return s.placeholder.ID
}

// SetPoster patches the poster field of a layer.
func (s *Stack) SetPoster(id, poster string) error {
	return s.patch(id, func(l *domain.Layer) { l.Poster = poster })
}

// SetTranscription patches the transcription URL of a layer.
func (s *Stack) SetTranscription(id, url string) error {
	return s.patch(id, func(l *domain.Layer) { l.TranscriptionURL = url })
}

func (s *Stack) patch(id string, fn func(*domain.Layer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	before := s.layers[i]
	fn(&s.layers[i])
	if s.layers[i] != before {
		s.version++
	}
	return nil
}

// Compare enters comparison mode seeded with the active layer.
func (s *Stack) Compare() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.activeLocked()
	if !canCompare(active) {
		return nil, ErrNotComparable
	}
	s.compared = []string{active.ID}
	s.version++
	return slices.Clone(s.compared), nil
}

// ToggleCompared removes id from the window when present, otherwise appends
// it and evicts the oldest entry once the window holds more than MaxCompared.
func (s *Stack) ToggleCompared(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.compared, id) {
		s.compared = slices.DeleteFunc(s.compared, func(c string) bool { return c == id })
		s.version++
		return slices.Clone(s.compared), nil
	}
	i := s.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
	}
	if !canCompare(s.layers[i]) {
		return nil, ErrNotComparable
	}
	s.compared = lastN(append(s.compared, id), MaxCompared)
	s.version++
	return slices.Clone(s.compared), nil
}

// SetComparedLayers replaces the window, keeping the last MaxCompared ids.
func (s *Stack) SetComparedLayers(ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]string, 0, len(ids))
	for _, id := range ids {
		i := s.indexOf(id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, id)
		}
		if !canCompare(s.layers[i]) {
			return nil, ErrNotComparable
		}
		if !slices.Contains(next, id) {
			next = append(next, id)
		}
	}
	s.compared = lastN(next, MaxCompared)
	s.version++
	return slices.Clone(s.compared), nil
}

// StopComparing clears the window, leaving comparison mode.
func (s *Stack) StopComparing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compared = nil
	s.version++
}

func (s *Stack) indexOf(id string) int {
	return slices.IndexFunc(s.layers, func(l domain.Layer) bool { return l.ID == id })
}

func canCompare(l domain.Layer) bool {
	return l.IsImage() && !l.IsPlaceholder()
}

func lastN(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return slices.Clone(ids[len(ids)-n:])
}
