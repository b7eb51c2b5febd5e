package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	adminhttp "github.com/lexpilot/lexpilot/internal/admin/http"
	audithttp "github.com/lexpilot/lexpilot/internal/audit/http"
	"github.com/lexpilot/lexpilot/internal/auth"
	"github.com/lexpilot/lexpilot/internal/observability"
	"github.com/lexpilot/lexpilot/internal/platform/httpx"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	TokenParser  auth.TokenParser
	AuthHandler  *auth.Handler
	AdminHandler *adminhttp.Handler
	AuditHandler *audithttp.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults. Everything under
// /admin requires an administrator token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		TokenParser: params.TokenParser,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		if params.AdminHandler != nil {
			params.AdminHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
