package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/transform"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("media: api key is required")

// Options configures the processing service client.
type Options struct {
	APIKey          string
	BaseURL         string
	DeliveryURL     string
	HTTPClient      *http.Client
	Logger          *infra.Logger
	RequestTimeout  time.Duration
	RatePerSecond   float64
	Burst           int
	AvailabilityTTL time.Duration
}

// Client performs HTTP calls to the media processing API.
type Client struct {
	apiKey      string
	baseURL     string
	deliveryURL string
	httpClient  *http.Client
	limiter     *rate.Limiter
	available   *cache.Cache
	logger      *infra.Logger
}

type transformRequest struct {
	Operation string          `json:"operation"`
	SourceURL string          `json:"source_url"`
	PublicID  string          `json:"public_id,omitempty"`
	Params    transformParams `json:"params"`
}

type transformParams struct {
	Prompt string `json:"prompt,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Aspect string `json:"aspect,omitempty"`
	Format string `json:"format,omitempty"`
}

type uploadRequest struct {
	File         string `json:"file"`
	ResourceType string `json:"resource_type,omitempty"`
	PublicID     string `json:"public_id,omitempty"`
}

type updateRequest struct {
	RawConvert string `json:"raw_convert"`
}

type assetResponse struct {
	SecureURL    string `json:"secure_url"`
	URL          string `json:"url"`
	PublicID     string `json:"public_id"`
	ResourceType string `json:"resource_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
}

type resourceResponse struct {
	assetResponse
	Info struct {
		RawConvert struct {
			GoogleSpeech *struct {
				Status string `json:"status"`
			} `json:"google_speech"`
		} `json:"raw_convert"`
	} `json:"info"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.media.example.com"
	}
	deliveryURL := strings.TrimRight(opts.DeliveryURL, "/")
	if deliveryURL == "" {
		deliveryURL = baseURL
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 5
	}
	ttl := opts.AvailabilityTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		deliveryURL: deliveryURL,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		available:   cache.New(ttl, 2*ttl),
		logger:      logger,
	}, nil
}

// Submit issues an operation. Synchronous kinds return the rendered asset;
// smart crop and transcription return a job reference to poll.
func (c *Client) Submit(ctx context.Context, req transform.Request) (transform.Submission, error) {
	switch req.Kind {
	case transform.KindBgRemove, transform.KindBgReplace, transform.KindGenFill, transform.KindGenRemove:
		asset, err := c.runTransform(ctx, req)
		if err != nil {
			return transform.Submission{}, err
		}
		return transform.Immediate(asset), nil
	case transform.KindSmartCrop:
		ref, err := c.smartCropJob(req)
		if err != nil {
			return transform.Submission{}, err
		}
		return transform.Pending(ref), nil
	case transform.KindTranscribe:
		publicID := strings.TrimSpace(req.Source.PublicID)
		if publicID == "" {
			return transform.Submission{}, fmt.Errorf("%w: source has no public id", domain.ErrInvalidInput)
		}
		if err := c.StartTranscription(ctx, publicID); err != nil {
			return transform.Submission{}, err
		}
		return transform.Pending(transform.JobRef{Kind: req.Kind, ID: publicID}), nil
	case transform.KindUpload:
		asset, err := c.Upload(ctx, transform.UploadRequest{
			File:         req.Params.URL,
			ResourceType: req.Params.ResourceType,
		})
		if err != nil {
			return transform.Submission{}, err
		}
		return transform.Immediate(asset), nil
	default:
		return transform.Submission{}, fmt.Errorf("%w: %s", transform.ErrUnsupported, req.Kind)
	}
}

func (c *Client) runTransform(ctx context.Context, req transform.Request) (transform.Asset, error) {
	if req.Source.URL == "" {
		return transform.Asset{}, fmt.Errorf("%w: source url is required", domain.ErrInvalidInput)
	}
	payload := transformRequest{
		Operation: string(req.Kind),
		SourceURL: req.Source.URL,
		PublicID:  req.Source.PublicID,
		Params: transformParams{
			Prompt: strings.TrimSpace(req.Params.Prompt),
			Width:  req.Params.Width,
			Height: req.Params.Height,
			Aspect: req.Params.Aspect,
			Format: firstNonEmpty(req.Params.Format, req.Source.Format),
		},
	}
	var decoded assetResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/transform", payload, &decoded); err != nil {
		return transform.Asset{}, fmt.Errorf("%w: %s: %v", transform.ErrSubmission, req.Kind, err)
	}
	asset := decoded.toAsset()
	if asset.URL == "" {
		return transform.Asset{}, fmt.Errorf("%w: %s: empty asset url", transform.ErrSubmission, req.Kind)
	}
	if asset.ResourceType == "" {
		asset.ResourceType = domain.ResourceImage
	}
	c.logger.Debug().
		Str("operation", string(req.Kind)).
		Str("public_id", asset.PublicID).
		Str("url", asset.URL).
		Msg("media: transformed asset")
	return asset, nil
}

func (c *Client) smartCropJob(req transform.Request) (transform.JobRef, error) {
	derived, err := transform.SmartCropURL(req.Source.URL, req.Params.Aspect, req.Params.Height)
	if err != nil {
		return transform.JobRef{}, err
	}
	return transform.JobRef{
		Kind: req.Kind,
		ID:   req.Source.PublicID,
		URL:  derived,
		Expect: transform.Asset{
			URL:          derived,
			PublicID:     req.Source.PublicID,
			ResourceType: domain.ResourceVideo,
			Width:        transform.CropWidth(req.Params.Aspect, req.Params.Height),
			Height:       req.Params.Height,
			Format:       req.Source.Format,
			Poster:       domain.PosterURL(derived),
		},
	}, nil
}

// StartTranscription asks the service to generate an .srt track for a video.
func (c *Client) StartTranscription(ctx context.Context, publicID string) error {
	endpoint := c.baseURL + "/v1/resources/video/" + url.PathEscape(publicID)
	if err := c.do(ctx, http.MethodPost, endpoint, updateRequest{RawConvert: "google_speech:srt"}, nil); err != nil {
		return fmt.Errorf("%w: start transcription: %v", transform.ErrSubmission, err)
	}
	c.logger.Info().Str("public_id", publicID).Msg("media: transcription started")
	return nil
}

// CheckStatus performs a single status query for a job.
func (c *Client) CheckStatus(ctx context.Context, ref transform.JobRef) (transform.JobStatus, error) {
	switch ref.Kind {
	case transform.KindSmartCrop:
		return c.checkAvailability(ctx, ref)
	case transform.KindTranscribe:
		return c.checkTranscription(ctx, ref)
	default:
		return transform.JobStatus{}, fmt.Errorf("%w: status for %s", transform.ErrUnsupported, ref.Kind)
	}
}

func (c *Client) checkAvailability(ctx context.Context, ref transform.JobRef) (transform.JobStatus, error) {
	ready := transform.JobStatus{State: transform.JobComplete, Result: &ref.Expect}
	if _, ok := c.available.Get(ref.URL); ok {
		return ready, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return transform.JobStatus{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref.URL, nil)
	if err != nil {
		return transform.JobStatus{}, fmt.Errorf("%w: media: build availability request: %v", transform.ErrPermanent, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transform.JobStatus{}, fmt.Errorf("media: check rendition: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.available.Set(ref.URL, struct{}{}, cache.DefaultExpiration)
		return ready, nil
	}
	c.logger.Debug().Str("url", ref.URL).Int("status", resp.StatusCode).Msg("media: rendition not ready")
	return transform.JobStatus{State: transform.JobPending}, nil
}

func (c *Client) checkTranscription(ctx context.Context, ref transform.JobRef) (transform.JobStatus, error) {
	var decoded resourceResponse
	endpoint := c.baseURL + "/v1/resources/video/" + url.PathEscape(ref.ID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &decoded); err != nil {
		return transform.JobStatus{}, err
	}
	status := "pending"
	if gs := decoded.Info.RawConvert.GoogleSpeech; gs != nil && gs.Status != "" {
		status = gs.Status
	}
	switch transform.JobState(status) {
	case transform.JobComplete:
		subtitled := transform.SubtitledURL(c.deliveryURL, ref.ID)
		asset := decoded.toAsset()
		asset.URL = subtitled
		asset.PublicID = ref.ID
		asset.ResourceType = domain.ResourceVideo
		asset.TranscriptionURL = subtitled
		return transform.JobStatus{State: transform.JobComplete, Result: &asset}, nil
	case transform.JobFailed:
		return transform.JobStatus{State: transform.JobFailed, Reason: "Transcription failed"}, nil
	default:
		return transform.JobStatus{State: transform.JobPending}, nil
	}
}

// Upload stores a remote file with the service and returns the new asset.
func (c *Client) Upload(ctx context.Context, req transform.UploadRequest) (transform.Asset, error) {
	file := strings.TrimSpace(req.File)
	if file == "" {
		return transform.Asset{}, fmt.Errorf("%w: upload file is required", domain.ErrInvalidInput)
	}
	payload := uploadRequest{File: file, ResourceType: string(req.ResourceType), PublicID: req.PublicID}
	var decoded assetResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/upload", payload, &decoded); err != nil {
		return transform.Asset{}, fmt.Errorf("%w: upload: %v", transform.ErrSubmission, err)
	}
	asset := decoded.toAsset()
	if asset.URL == "" {
		return transform.Asset{}, fmt.Errorf("%w: upload: empty asset url", transform.ErrSubmission)
	}
	if asset.ResourceType == "" {
		asset.ResourceType = req.ResourceType
	}
	if asset.ResourceType == domain.ResourceVideo {
		asset.Poster = domain.PosterURL(asset.URL)
	}
	return asset, nil
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
// Client errors (4xx) are wrapped with transform.ErrPermanent.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("media: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("media: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("media: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("media: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			msg = detail.Error.Message
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: media: status %d: %s", transform.ErrPermanent, resp.StatusCode, msg)
		}
		return fmt.Errorf("media: status %d: %s", resp.StatusCode, msg)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("media: decode response: %w", err)
	}
	return nil
}

func (a assetResponse) toAsset() transform.Asset {
	u := firstNonEmpty(a.SecureURL, a.URL)
	format := a.Format
	if format == "" && u != "" {
		format = strings.TrimPrefix(path.Ext(u), ".")
	}
	return transform.Asset{
		URL:          u,
		PublicID:     a.PublicID,
		ResourceType: domain.ResourceType(a.ResourceType),
		Width:        a.Width,
		Height:       a.Height,
		Format:       format,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ transform.Client = (*Client)(nil)
