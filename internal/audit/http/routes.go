package audithttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers audit search and CSV export. The router is expected
// to sit behind the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.With(h.recorder.Middleware(audit.RecordOptions{Action: audit.ActionRead, ResourceType: "audit_log"})).
		Get("/audit-logs", h.handleSearch)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Use(h.recorder.Middleware(audit.RecordOptions{Action: audit.ActionDownload, ResourceType: "audit_log", Sensitive: true}))
		gr.Get("/audit-logs/export", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if p := shared.PrincipalFromContext(r.Context()); p != nil && p.UserID != 0 {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
