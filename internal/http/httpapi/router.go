package httpapi

import (
	stdhttp "net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/HMiranda00/kine-ai-anim-helper/internal/http/handlers"
	"github.com/HMiranda00/kine-ai-anim-helper/internal/infra"
	mw "github.com/HMiranda00/kine-ai-anim-helper/internal/middleware"
)

// Options configures the relay router.
type Options struct {
	Config        infra.Config
	Logger        infra.Logger
	CountryLookup mw.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	cfg := opts.Config
	r := chi.NewRouter()
	r.Use(
		mw.RequestID(opts.Logger),
		middleware.RealIP,
		middleware.Recoverer,
		mw.Logger(opts.Logger),
		mw.CORS(cfg.CORSAllowedOrigins),
		mw.I18N(cfg.DefaultLocale, opts.CountryLookup),
		mw.Credential(cfg.ReplicateToken),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", app.Health)
		r.Get("/check-token", app.CheckToken)
		r.Get("/predictions/{id}", app.Prediction)

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(cfg.RateLimitPerMin, time.Minute))
			r.Post("/files", app.UploadFile)
			r.Post("/run", app.Run)
		})
	})

	if dir := strings.TrimSpace(cfg.StaticDir); dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", stdhttp.FileServer(stdhttp.Dir(dir)))
		} else {
			opts.Logger.Warn().Str("dir", dir).Msg("static dir not found, ui disabled")
		}
	}

	return r
}
