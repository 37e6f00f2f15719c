package layers

import (
	"encoding/json"
	"testing"

	"studio/internal/domain"
	"studio/internal/outcome"
	"studio/internal/transform"
)

func fixedIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestApplySuccessGenFillOverridesDimensions(t *testing.T) {
	source := domain.Layer{ID: "src", URL: "https://cdn.example.com/a.png", ResourceType: domain.ResourceImage, Width: 500, Height: 500, Format: "jpg", Name: "photo"}
	s := stackOf(t, source)
	m := &Mutator{newID: fixedIDs("new")}

	before := s.Len()
	l, err := m.ApplySuccess(s, transform.Asset{URL: "u", Width: 800, Height: 600}, source, RuleFor(transform.KindGenFill))
	if err != nil {
		t.Fatalf("ApplySuccess: %v", err)
	}
	if l.Width != 800 || l.Height != 600 || l.URL != "u" {
		t.Fatalf("layer = %+v, want 800x600 at u", l)
	}
	if l.Name != "genfill-photo" || l.Format != "jpg" {
		t.Fatalf("name/format = %q/%q", l.Name, l.Format)
	}
	if s.Len() != before+1 {
		t.Fatalf("len = %d, want %d", s.Len(), before+1)
	}
	if s.Active().ID != "new" {
		t.Fatalf("active = %s, want new", s.Active().ID)
	}
	layers := s.Layers()
	if layers[len(layers)-1].ID != "new" {
		t.Fatalf("new layer not appended last")
	}
}

func TestBuildNamingAndAttributes(t *testing.T) {
	img := domain.Layer{ID: "src", URL: "https://cdn.example.com/a.jpg", ResourceType: domain.ResourceImage, Width: 640, Height: 480, Format: "jpg", Name: "shoe", PublicID: "shoe-1"}
	vid := domain.Layer{ID: "vid", URL: "https://cdn.example.com/v.mp4", ResourceType: domain.ResourceVideo, Width: 1920, Height: 1080, Format: "mp4", Name: "clip", PublicID: "clip-1"}

	tests := []struct {
		name     string
		kind     transform.Kind
		source   domain.Layer
		asset    transform.Asset
		wantName string
		check    func(t *testing.T, l domain.Layer)
	}{
		{
			name:     "bg remove forces png",
			kind:     transform.KindBgRemove,
			source:   img,
			asset:    transform.Asset{URL: "https://cdn.example.com/out.png"},
			wantName: "bgRemovedshoe",
			check: func(t *testing.T, l domain.Layer) {
				if l.Format != "png" || l.Width != 640 || l.PublicID != "shoe-1" {
					t.Fatalf("unexpected attributes: %+v", l)
				}
			},
		},
		{
			name:     "bg replace keeps source metadata",
			kind:     transform.KindBgReplace,
			source:   img,
			asset:    transform.Asset{URL: "https://cdn.example.com/out.jpg"},
			wantName: "bgReplacedshoe",
			check: func(t *testing.T, l domain.Layer) {
				if l.Format != "jpg" || l.Height != 480 {
					t.Fatalf("unexpected attributes: %+v", l)
				}
			},
		},
		{
			name:     "gen remove takes result public id",
			kind:     transform.KindGenRemove,
			source:   img,
			asset:    transform.Asset{URL: "https://cdn.example.com/out.jpg", PublicID: "out-9"},
			wantName: "genremove-shoe",
			check: func(t *testing.T, l domain.Layer) {
				if l.PublicID != "out-9" {
					t.Fatalf("public id = %q", l.PublicID)
				}
			},
		},
		{
			name:     "transcription derives poster",
			kind:     transform.KindTranscribe,
			source:   vid,
			asset:    transform.Asset{URL: "https://cdn.example.com/sub.mp4", TranscriptionURL: "https://cdn.example.com/sub.mp4"},
			wantName: "transcribed-clip",
			check: func(t *testing.T, l domain.Layer) {
				if l.Poster != "https://cdn.example.com/sub.jpg" || l.TranscriptionURL == "" || !l.IsVideo() {
					t.Fatalf("unexpected attributes: %+v", l)
				}
			},
		},
		{
			name:     "partial dimensions do not override",
			kind:     transform.KindSmartCrop,
			source:   vid,
			asset:    transform.Asset{URL: "https://cdn.example.com/crop.mp4", Height: 720},
			wantName: "cropped-clip",
			check: func(t *testing.T, l domain.Layer) {
				if l.Width != 1920 || l.Height != 1080 {
					t.Fatalf("dims = %dx%d, want source dims", l.Width, l.Height)
				}
			},
		},
	}

	m := NewMutator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := m.Build(tc.asset, tc.source, RuleFor(tc.kind))
			if l.ID == "" || l.ID == tc.source.ID {
				t.Fatalf("expected fresh id, got %q", l.ID)
			}
			if l.Name != tc.wantName {
				t.Fatalf("name = %q, want %q", l.Name, tc.wantName)
			}
			tc.check(t, l)
		})
	}
}

func TestApplyLeavesStackUnchangedOnNonSuccess(t *testing.T) {
	source := image("A")
	s := stackOf(t, source, image("B"))
	s.SetComparedLayers([]string{"A", "B"})
	before, _ := json.Marshal(s.Snapshot())

	m := NewMutator()
	for _, o := range []outcome.Outcome[transform.Asset]{
		outcome.Failure[transform.Asset]("bad input"),
		outcome.Timeout[transform.Asset](),
		outcome.Cancelled[transform.Asset](),
	} {
		if _, applied, err := m.Apply(s, o, source, RuleFor(transform.KindBgRemove)); applied || err != nil {
			t.Fatalf("%v: applied=%v err=%v", o, applied, err)
		}
		after, _ := json.Marshal(s.Snapshot())
		if string(before) != string(after) {
			t.Fatalf("%v changed the stack:\n%s\n%s", o, before, after)
		}
	}

	l, applied, err := m.Apply(s, outcome.Success(transform.Asset{URL: "https://cdn.example.com/x.png"}), source, RuleFor(transform.KindBgRemove))
	if err != nil || !applied {
		t.Fatalf("success not applied: %v", err)
	}
	if s.Active().ID != l.ID || s.Len() != 3 {
		t.Fatalf("success must append and activate")
	}
}

func TestApplyUploadFillsActivePlaceholder(t *testing.T) {
	s := NewStack()
	placeholder := s.Active()
	m := &Mutator{newID: fixedIDs("fresh")}

	l, err := m.ApplyUpload(s, transform.Asset{
		URL:          "https://cdn/v/clip.mp4",
		ResourceType: domain.ResourceVideo,
		Width:        1920,
		Height:       1080,
		PublicID:     "v/clip",
	}, placeholder, "clip.mp4")
	if err != nil {
		t.Fatalf("ApplyUpload: %v", err)
	}
	if l.ID != placeholder.ID || s.Len() != 1 {
		t.Fatalf("expected placeholder %s filled in place, got id=%s len=%d", placeholder.ID, l.ID, s.Len())
	}
	if l.Name != "clip.mp4" || l.Poster != "https://cdn/v/clip.jpg" {
		t.Fatalf("unexpected layer: %#v", l)
	}
	if s.Active().ID != placeholder.ID {
		t.Fatalf("filled layer should be active")
	}
}

func TestApplyUploadAppendsForRenderedTarget(t *testing.T) {
	s := NewStack()
	src := domain.Layer{ID: "img", URL: "https://cdn/a.png", ResourceType: domain.ResourceImage}
	if err := s.Push(src); err != nil {
		t.Fatalf("Push: %v", err)
	}
	m := &Mutator{newID: fixedIDs("up-1")}

	l, err := m.ApplyUpload(s, transform.Asset{URL: "https://cdn/b.png", ResourceType: domain.ResourceImage}, src, "b.png")
	if err != nil {
		t.Fatalf("ApplyUpload: %v", err)
	}
	if l.ID != "up-1" || s.Len() != 3 || s.Active().ID != "up-1" {
		t.Fatalf("expected appended active layer, got id=%s len=%d active=%s", l.ID, s.Len(), s.Active().ID)
	}
}

func TestApplyUploadAfterRemoveAllAppends(t *testing.T) {
	s := NewStack()
	s.RemoveAll()
	m := &Mutator{newID: fixedIDs("up-1")}

	l, err := m.ApplyUpload(s, transform.Asset{URL: "https://cdn/b.png", ResourceType: domain.ResourceImage}, s.Active(), "b.png")
	if err != nil {
		t.Fatalf("ApplyUpload: %v", err)
	}
	if s.Len() != 1 || s.Active().ID != l.ID {
		t.Fatalf("expected the upload to become the only layer")
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a/b/photo.png?x=1": "photo.png",
		"/tmp/clip.mp4":  "clip.mp4",
		"plain.jpg":      "plain.jpg",
		"https://host/":  "",
		"":               "",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
