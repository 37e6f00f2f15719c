package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger          *infra.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/sessions/{session_id}", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Delete("/", app.DropSession)

		r.Route("/layers", func(r chi.Router) {
			r.Get("/", app.GetLayers)
			r.Post("/", app.NewLayer)
			r.Put("/", app.SetLayers)
			r.Delete("/", app.RemoveAllLayers)
			r.Delete("/{layer_id}", app.RemoveLayer)
			r.Put("/{layer_id}/active", app.SetActiveLayer)
			r.Put("/{layer_id}/poster", app.SetPoster)
		})

		r.Route("/compare", func(r chi.Router) {
			r.Post("/", app.Compare)
			r.Put("/", app.SetComparedLayers)
			r.Delete("/", app.StopComparing)
			r.Post("/{layer_id}", app.ToggleCompared)
		})

		r.Post("/operations/{kind}", app.Invoke)
		r.Delete("/operations/{layer_id}", app.CancelOperation)

		r.Get("/export", app.Export)
	})

	return r
}
