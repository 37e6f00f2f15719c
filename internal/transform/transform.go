// Package transform defines the contract between the orchestration layer and
// the external media processing service.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"studio/internal/domain"
)

// Kind names an operation the processing service can perform.
type Kind string

const (
	KindBgRemove   Kind = "bg_remove"
	KindBgReplace  Kind = "bg_replace"
	KindGenFill    Kind = "gen_fill"
	KindGenRemove  Kind = "gen_remove"
	KindSmartCrop  Kind = "smart_crop"
	KindTranscribe Kind = "transcribe"
	KindUpload     Kind = "upload"
)

// Kinds lists every supported operation.
var Kinds = []Kind{KindBgRemove, KindBgReplace, KindGenFill, KindGenRemove, KindSmartCrop, KindTranscribe, KindUpload}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidInput, s)
}

// SourceType is the resource type the kind operates on. Upload accepts any.
func (k Kind) SourceType() domain.ResourceType {
	switch k {
	case KindSmartCrop, KindTranscribe:
		return domain.ResourceVideo
	case KindUpload:
		return ""
	default:
		return domain.ResourceImage
	}
}

// Async reports whether the kind needs polling before a result exists.
func (k Kind) Async() bool {
	return k == KindSmartCrop || k == KindTranscribe
}

var (
	// ErrSubmission marks failures to reach or be accepted by the service.
	ErrSubmission = errors.New("transform: submission failed")
	// ErrUnsupported is returned for kinds a client cannot handle.
	ErrUnsupported = errors.New("transform: unsupported operation")
	// ErrPermanent marks status-check errors that retrying cannot fix.
	ErrPermanent = errors.New("transform: permanent error")
)

// Params holds kind-specific operation parameters.
type Params struct {
	Prompt       string              `json:"prompt,omitempty"`
	Width        int                 `json:"width,omitempty"`
	Height       int                 `json:"height,omitempty"`
	Aspect       string              `json:"aspect,omitempty"`
	Format       string              `json:"format,omitempty"`
	URL          string              `json:"url,omitempty"`
	ResourceType domain.ResourceType `json:"resource_type,omitempty"`
}

// Validate checks that p carries what kind k needs.
func (p Params) Validate(k Kind) error {
	switch k {
	case KindBgReplace, KindGenRemove:
		if strings.TrimSpace(p.Prompt) == "" {
			return fmt.Errorf("%w: %s needs a prompt", domain.ErrInvalidInput, k)
		}
	case KindGenFill:
		if p.Width <= 0 || p.Height <= 0 {
			return fmt.Errorf("%w: %s needs a positive width and height", domain.ErrInvalidInput, k)
		}
	case KindSmartCrop:
		if p.Height <= 0 || CropWidth(p.Aspect, p.Height) == 0 {
			return fmt.Errorf("%w: %s needs an aspect like 9:16 and a positive height", domain.ErrInvalidInput, k)
		}
	case KindUpload:
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("%w: %s needs a url", domain.ErrInvalidInput, k)
		}
		if p.ResourceType != domain.ResourceImage && p.ResourceType != domain.ResourceVideo {
			return fmt.Errorf("%w: %s needs resource_type image or video", domain.ErrInvalidInput, k)
		}
	}
	return nil
}

// Request is one operation against a source asset.
type Request struct {
	Kind   Kind
	Source domain.Layer
	Params Params
}

// Asset is a rendered result returned by the service.
type Asset struct {
	URL              string              `json:"url"`
	PublicID         string              `json:"public_id,omitempty"`
	ResourceType     domain.ResourceType `json:"resource_type,omitempty"`
	Width            int                 `json:"width,omitempty"`
	Height           int                 `json:"height,omitempty"`
	Format           string              `json:"format,omitempty"`
	Poster           string              `json:"poster,omitempty"`
	TranscriptionURL string              `json:"transcription_url,omitempty"`
}

// JobRef identifies an in-progress job: an identifier or a canonical URL.
// Expect describes the asset the job resolves into when the status query
// itself carries no asset metadata.
type JobRef struct {
	Kind   Kind
	ID     string
	URL    string
	Expect Asset
}

// Submission is either an immediately usable asset or a job to poll.
type Submission struct {
	Immediate *Asset
	Job       *JobRef
}

func Immediate(a Asset) Submission { return Submission{Immediate: &a} }

func Pending(ref JobRef) Submission { return Submission{Job: &ref} }

// JobState mirrors the service's job states.
type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// JobStatus is the answer to a status query.
type JobStatus struct {
	State  JobState
	Result *Asset
	Reason string
}

// UploadRequest pushes an existing asset into the service's storage.
type UploadRequest struct {
	File         string
	ResourceType domain.ResourceType
	PublicID     string
}

// Client talks to the processing service.
type Client interface {
	Submit(ctx context.Context, req Request) (Submission, error)
	CheckStatus(ctx context.Context, ref JobRef) (JobStatus, error)
	Upload(ctx context.Context, req UploadRequest) (Asset, error)
}

// SmartCropURL inserts fill and gravity directives after the /upload/
// segment of a delivery URL.
func SmartCropURL(sourceURL, aspect string, height int) (string, error) {
	head, tail, ok := strings.Cut(sourceURL, "/upload/")
	if !ok {
		return "", fmt.Errorf("%w: url has no /upload/ segment", domain.ErrInvalidInput)
	}
	if aspect == "" || height <= 0 {
		return "", fmt.Errorf("%w: aspect and height are required", domain.ErrInvalidInput)
	}
	return fmt.Sprintf("%s/upload/ar_%s,c_fill,g_auto,h_%d/%s", head, aspect, height, tail), nil
}

// CropWidth derives the width of a smart-cropped rendition from its aspect
// ratio ("9:16") and height. Malformed ratios yield 0.
func CropWidth(aspect string, height int) int {
	w, h, ok := strings.Cut(aspect, ":")
	if !ok {
		return 0
	}
	aw, err1 := strconv.ParseFloat(w, 64)
	ah, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || aw <= 0 || ah <= 0 {
		return 0
	}
	return int(float64(height)*aw/ah + 0.5)
}

// SubtitledURL builds the delivery URL of a video with its generated .srt
// track burned in as an overlay.
func SubtitledURL(deliveryBase, publicID string) string {
	overlay := strings.ReplaceAll(publicID, "/", ":")
	return fmt.Sprintf("%s/video/upload/l_subtitles:%s.srt/fl_layer_apply/%s",
		strings.TrimRight(deliveryBase, "/"), overlay, publicID)
}
