package transform

import (
	"errors"
	"testing"

	"studio/internal/domain"
)

func TestSmartCropURL(t *testing.T) {
	got, err := SmartCropURL("https://res.example.com/demo/video/upload/v17/clip.mp4", "9:16", 1920)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://res.example.com/demo/video/upload/ar_9:16,c_fill,g_auto,h_1920/v17/clip.mp4"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}

	if _, err := SmartCropURL("https://cdn.example.com/clip.mp4", "1:1", 100); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for url without upload segment, got %v", err)
	}
	if _, err := SmartCropURL("https://res.example.com/video/upload/clip.mp4", "", 100); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing aspect, got %v", err)
	}
}

func TestCropWidth(t *testing.T) {
	tests := []struct {
		aspect string
		height int
		want   int
	}{
		{"9:16", 1920, 1080},
		{"16:9", 1080, 1920},
		{"1:1", 500, 500},
		{"4:5", 1350, 1080},
		{"bad", 100, 0},
		{"0:1", 100, 0},
	}
	for _, tc := range tests {
		if got := CropWidth(tc.aspect, tc.height); got != tc.want {
			t.Fatalf("CropWidth(%q, %d) = %d, want %d", tc.aspect, tc.height, got, tc.want)
		}
	}
}

func TestSubtitledURL(t *testing.T) {
	got := SubtitledURL("https://res.example.com/demo/", "folder/clip")
	want := "https://res.example.com/demo/video/upload/l_subtitles:folder:clip.srt/fl_layer_apply/folder/clip"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Gen_Fill ")
	if err != nil || k != KindGenFill {
		t.Fatalf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("sharpen"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if KindSmartCrop.SourceType() != domain.ResourceVideo || KindBgRemove.SourceType() != domain.ResourceImage {
		t.Fatalf("unexpected source types")
	}
	if !KindTranscribe.Async() || KindGenFill.Async() {
		t.Fatalf("unexpected async flags")
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		params  Params
		wantErr bool
	}{
		{name: "bg remove needs nothing", kind: KindBgRemove},
		{name: "bg replace without prompt", kind: KindBgReplace, wantErr: true},
		{name: "bg replace", kind: KindBgReplace, params: Params{Prompt: "beach"}},
		{name: "gen remove blank prompt", kind: KindGenRemove, params: Params{Prompt: "  "}, wantErr: true},
		{name: "gen fill", kind: KindGenFill, params: Params{Width: 800, Height: 600, Aspect: "4:3"}},
		{name: "gen fill missing height", kind: KindGenFill, params: Params{Width: 800}, wantErr: true},
		{name: "smart crop", kind: KindSmartCrop, params: Params{Aspect: "9:16", Height: 1280}},
		{name: "smart crop bad aspect", kind: KindSmartCrop, params: Params{Aspect: "tall", Height: 1280}, wantErr: true},
		{name: "transcribe", kind: KindTranscribe},
		{name: "upload", kind: KindUpload, params: Params{URL: "https://cdn/a.png", ResourceType: domain.ResourceImage}},
		{name: "upload without type", kind: KindUpload, params: Params{URL: "https://cdn/a.png"}, wantErr: true},
		{name: "upload without url", kind: KindUpload, params: Params{ResourceType: domain.ResourceVideo}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.params.Validate(tc.kind)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
