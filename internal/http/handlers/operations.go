package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/middleware"
	"studio/internal/studio"
	"studio/internal/transform"
)

type invokeRequest struct {
	LayerID      string `json:"layer_id" validate:"omitempty,max=64"`
	Prompt       string `json:"prompt" validate:"max=1000"`
	Width        int    `json:"width" validate:"gte=0,lte=8192"`
	Height       int    `json:"height" validate:"gte=0,lte=8192"`
	Aspect       string `json:"aspect" validate:"max=16"`
	Format       string `json:"format" validate:"omitempty,oneof=png jpg jpeg webp gif mp4 webm mov"`
	URL          string `json:"url" validate:"omitempty,url"`
	ResourceType string `json:"resource_type" validate:"omitempty,oneof=image video"`
}

func (p invokeRequest) params() transform.Params {
	return transform.Params{
		Prompt:       p.Prompt,
		Width:        p.Width,
		Height:       p.Height,
		Aspect:       p.Aspect,
		Format:       p.Format,
		URL:          p.URL,
		ResourceType: domain.ResourceType(p.ResourceType),
	}
}

// resultStatus maps an invoke result onto an HTTP status. The body always
// carries the full result.
func resultStatus(res studio.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Code {
	case studio.CodeInvalid:
		return http.StatusUnprocessableEntity
	case studio.CodeBusy, studio.CodeCancelled:
		return http.StatusConflict
	case studio.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Invoke runs one operation and answers once it reaches a terminal outcome.
func (a *App) Invoke(w http.ResponseWriter, r *http.Request) {
	var req invokeRequest
	if r.ContentLength != 0 {
		if !a.decode(w, r, &req) {
			return
		}
	}
	res := a.Studio.Invoke(r.Context(), sessionID(r), studio.InvokeRequest{
		Kind:    transform.Kind(chi.URLParam(r, "kind")),
		LayerID: req.LayerID,
		Params:  req.params(),
		Locale:  middleware.LocaleFromContext(r.Context()),
	})
	a.json(w, resultStatus(res), res)
}

// CancelOperation stops the run in flight on a layer.
func (a *App) CancelOperation(w http.ResponseWriter, r *http.Request) {
	if !a.Studio.Cancel(sessionID(r), chi.URLParam(r, "layer_id")) {
		a.error(w, http.StatusNotFound, "not_found", "no operation is running on this layer")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
