package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/layers"
	"studio/internal/session"
	"studio/internal/studio"
)

const maxBodyBytes = 1 << 20

// App holds the dependencies shared by every handler.
type App struct {
	Studio   *studio.Service
	Logger   *infra.Logger
	validate *validator.Validate
}

func NewApp(svc *studio.Service, logger *infra.Logger) *App {
	return &App{
		Studio:   svc,
		Logger:   infra.Component(logger, "http"),
		validate: validator.New(),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, map[string]string{"error": errCode, "message": msg})
}

// decode reads a JSON body into dst and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			a.error(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return false
	}
	return true
}

// fail maps service errors onto the JSON error envelope.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidID):
		a.error(w, http.StatusBadRequest, "invalid_session", "session id must be 1-64 letters, digits, '-' or '_'")
	case errors.Is(err, session.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, session.ErrStale):
		a.error(w, http.StatusConflict, "session_dropped", "session was dropped while the request ran")
	case errors.Is(err, layers.ErrLayerNotFound):
		a.error(w, http.StatusNotFound, "not_found", "layer not found")
	case errors.Is(err, layers.ErrDuplicateID):
		a.error(w, http.StatusBadRequest, "bad_request", "layer ids must be unique")
	case errors.Is(err, layers.ErrNotComparable):
		a.error(w, http.StatusUnprocessableEntity, "not_comparable", "only rendered image layers can be compared")
	case errors.Is(err, layers.ErrNotPlaceholder):
		a.error(w, http.StatusConflict, "not_placeholder", "layer already holds an asset")
	case errors.Is(err, domain.ErrLayerBusy):
		a.error(w, http.StatusConflict, "busy", "an operation is running in this session")
	case errors.Is(err, domain.ErrInvalidInput):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "session_id")
}
