package domain

import (
	"path"
	"strings"
	"time"
)

// ResourceType enumerates the media a layer can hold.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// Layer is one versioned asset in a session's layer stack. A layer with an
// empty URL is a placeholder awaiting upload.
type Layer struct {
	ID               string       `json:"id"`
	URL              string       `json:"url"`
	ResourceType     ResourceType `json:"resourceType,omitempty"`
	Width            int          `json:"width"`
	Height           int          `json:"height"`
	Format           string       `json:"format,omitempty"`
	Name             string       `json:"name,omitempty"`
	PublicID         string       `json:"publicId,omitempty"`
	Poster           string       `json:"poster,omitempty"`
	TranscriptionURL string       `json:"transcriptionURL,omitempty"`
}

// IsPlaceholder reports whether the layer has no rendered asset yet.
func (l Layer) IsPlaceholder() bool {
	return strings.TrimSpace(l.URL) == ""
}

func (l Layer) IsVideo() bool { return l.ResourceType == ResourceVideo }

func (l Layer) IsImage() bool { return l.ResourceType == ResourceImage }

// PosterURL derives a thumbnail URL for a video by swapping the file
// extension for .jpg. Non-video URLs are returned unchanged.
func PosterURL(videoURL string) string {
	if videoURL == "" {
		return ""
	}
	ext := path.Ext(videoURL)
	if ext == "" {
		return videoURL + ".jpg"
	}
	return strings.TrimSuffix(videoURL, ext) + ".jpg"
}

// LayerRecord is the persisted trace of a layer produced by an operation.
type LayerRecord struct {
	LayerID   string
	SessionID string
	Operation string
	URL       string
	PublicID  string
	Metadata  map[string]any
	CreatedAt time.Time
}
