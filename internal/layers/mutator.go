package layers

import (
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/outcome"
	"studio/internal/transform"
)

// NamingRule derives a new layer name from its source layer's name.
type NamingRule func(source string) string

// Prefix returns a rule that prepends p verbatim.
func Prefix(p string) NamingRule {
	return func(source string) string { return p + source }
}

// Rule controls how a result asset becomes a layer.
type Rule struct {
	Name NamingRule
	// Format, when set, overrides both the source and the result format.
	Format string
}

var rules = map[transform.Kind]Rule{
	transform.KindBgRemove:   {Name: Prefix("bgRemoved"), Format: "png"},
	transform.KindBgReplace:  {Name: Prefix("bgReplaced")},
	transform.KindGenFill:    {Name: Prefix("genfill-")},
	transform.KindGenRemove:  {Name: Prefix("genremove-")},
	transform.KindSmartCrop:  {Name: Prefix("cropped-")},
	transform.KindTranscribe: {Name: Prefix("transcribed-")},
}

// RuleFor returns the rule registered for kind. Unknown kinds keep the
// source name.
func RuleFor(kind transform.Kind) Rule {
	if r, ok := rules[kind]; ok {
		return r
	}
	return Rule{Name: func(source string) string { return source }}
}

// Mutator folds successful operation results into a stack.
type Mutator struct {
	newID func() string
}

func NewMutator() *Mutator {
	return &Mutator{newID: uuid.NewString}
}

// Build constructs the layer a result produces without touching any stack.
// Dimensions come from the result when it carries both, otherwise from the
// source. The other descriptive fields follow the same precedence.
func (m *Mutator) Build(a transform.Asset, source domain.Layer, rule Rule) domain.Layer {
	l := domain.Layer{
		ID:               m.newID(),
		URL:              a.URL,
		ResourceType:     firstNonEmpty(a.ResourceType, source.ResourceType),
		Width:            source.Width,
		Height:           source.Height,
		Format:           firstNonEmpty(a.Format, source.Format),
		PublicID:         firstNonEmpty(a.PublicID, source.PublicID),
		Poster:           a.Poster,
		TranscriptionURL: a.TranscriptionURL,
	}
	if a.Width > 0 && a.Height > 0 {
		l.Width, l.Height = a.Width, a.Height
	}
	if rule.Format != "" {
		l.Format = rule.Format
	}
	if rule.Name != nil {
		l.Name = rule.Name(source.Name)
	} else {
		l.Name = source.Name
	}
	if l.IsVideo() && l.Poster == "" {
		l.Poster = domain.PosterURL(l.URL)
	}
	return l
}

// ApplySuccess appends the layer built from a and makes it active.
func (m *Mutator) ApplySuccess(s *Stack, a transform.Asset, source domain.Layer, rule Rule) (domain.Layer, error) {
	l := m.Build(a, source, rule)
	if err := s.Push(l); err != nil {
		return domain.Layer{}, fmt.Errorf("layers: apply result: %w", err)
	}
	return l, nil
}

// Apply mutates the stack only for a Success outcome. It reports whether a
// layer was added.
func (m *Mutator) Apply(s *Stack, o outcome.Outcome[transform.Asset], source domain.Layer, rule Rule) (domain.Layer, bool, error) {
	a, ok := o.Value()
	if !ok {
		return domain.Layer{}, false, nil
	}
	l, err := m.ApplySuccess(s, a, source, rule)
	if err != nil {
		return domain.Layer{}, false, err
	}
	return l, true, nil
}

// ApplyUpload turns an uploaded asset into a layer named fileName. A
// placeholder target still in the stack is filled in place; any other target
// gets a new layer appended. Either way the result becomes active.
func (m *Mutator) ApplyUpload(s *Stack, a transform.Asset, target domain.Layer, fileName string) (domain.Layer, error) {
	l := m.Build(a, domain.Layer{}, Rule{Name: func(string) string { return fileName }})
	if target.IsPlaceholder() {
		filled := l
		filled.ID = target.ID
		err := s.Fill(filled)
		if err == nil {
			return filled, nil
		}
		if !errors.Is(err, ErrLayerNotFound) {
			return domain.Layer{}, fmt.Errorf("layers: fill placeholder: %w", err)
		}
	}
	if err := s.Push(l); err != nil {
		return domain.Layer{}, fmt.Errorf("layers: apply upload: %w", err)
	}
	return l, nil
}

// FileName extracts the last path element of a URL or path, without query
// string or fragment.
func FileName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	name := path.Base(raw)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func firstNonEmpty[T ~string](vals ...T) T {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
