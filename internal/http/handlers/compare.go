package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type comparedRequest struct {
	LayerIDs []string `json:"layer_ids" validate:"max=64,dive,required,max=64"`
}

// Compare enters comparison mode seeded with the active layer.
func (a *App) Compare(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.Compare(r.Context(), sessionID(r))
	a.snapshot(w, r, snap, err)
}

func (a *App) SetComparedLayers(w http.ResponseWriter, r *http.Request) {
	var req comparedRequest
	if !a.decode(w, r, &req) {
		return
	}
	snap, err := a.Studio.SetComparedLayers(r.Context(), sessionID(r), req.LayerIDs)
	a.snapshot(w, r, snap, err)
}

func (a *App) ToggleCompared(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.ToggleCompared(r.Context(), sessionID(r), chi.URLParam(r, "layer_id"))
	a.snapshot(w, r, snap, err)
}

func (a *App) StopComparing(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Studio.StopComparing(r.Context(), sessionID(r))
	a.snapshot(w, r, snap, err)
}
