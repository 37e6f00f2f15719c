package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
	"studio/internal/layers"
)

type setLayersRequest struct {
	Layers []layerPayload `json:"layers" validate:"max=200,dive"`
}

type layerPayload struct {
	ID               string              `json:"id" validate:"required,max=64"`
	URL              string              `json:"url" validate:"omitempty,url"`
	ResourceType     domain.ResourceType `json:"resourceType" validate:"omitempty,oneof=image video"`
	Width            int                 `json:"width" validate:"gte=0"`
	Height           int                 `json:"height" validate:"gte=0"`
	Format           string              `json:"format" validate:"max=16"`
	Name             string              `json:"name" validate:"max=255"`
	PublicID         string              `json:"publicId" validate:"max=255"`
	Poster           string              `json:"poster" validate:"omitempty,url"`
	TranscriptionURL string              `json:"transcriptionURL" validate:"omitempty,url"`
}

func (p layerPayload) layer() domain.Layer {
	return domain.Layer{
		ID:               p.ID,
		URL:              p.URL,
		ResourceType:     p.ResourceType,
		Width:            p.Width,
		Height:           p.Height,
		Format:           p.Format,
		Name:             p.Name,
		PublicID:         p.PublicID,
		Poster:           p.Poster,
		TranscriptionURL: p.TranscriptionURL,
	}
}

type posterRequest struct {
	Poster string `json:"poster" validate:"required,url"`
}

func (a *App) snapshot(w http.ResponseWriter, r *http.Request, snap layers.Snapshot, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func (a *App) GetLayers(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.Snapshot(r.Context(), sessionID(r))
	a.snapshot(w, r, snap, err)
}

func (a *App) NewLayer(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.NewLayer(r.Context(), sessionID(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, snap)
}

func (a *App) SetLayers(w http.ResponseWriter, r *http.Request) {
	var req setLayersRequest
	if !a.decode(w, r, &req) {
		return
	}
	ls := make([]domain.Layer, 0, len(req.Layers))
	for _, p := range req.Layers {
		ls = append(ls, p.layer())
	}
	snap, err := a.Studio.SetLayers(r.Context(), sessionID(r), ls)
	a.snapshot(w, r, snap, err)
}

func (a *App) RemoveAllLayers(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.RemoveAll(r.Context(), sessionID(r))
	a.snapshot(w, r, snap, err)
}

func (a *App) RemoveLayer(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.RemoveLayer(r.Context(), sessionID(r), chi.URLParam(r, "layer_id"))
	a.snapshot(w, r, snap, err)
}

func (a *App) SetActiveLayer(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.SetActive(r.Context(), sessionID(r), chi.URLParam(r, "layer_id"))
	a.snapshot(w, r, snap, err)
}

func (a *App) SetPoster(w http.ResponseWriter, r *http.Request) {
	var req posterRequest
	if !a.decode(w, r, &req) {
		return
	}
	snap, err := a.Studio.SetPoster(r.Context(), sessionID(r), chi.URLParam(r, "layer_id"), req.Poster)
	a.snapshot(w, r, snap, err)
}

func (a *App) DropSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.DropSession(r.Context(), sessionID(r)); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
