// Package adminhttp serves the admin dashboard API.
package adminhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/platform/httpx"
)

// Service is the dashboard contract consumed by the handlers.
type Service interface {
	Snapshot(ctx context.Context) (admin.Snapshot, error)
	Stats(ctx context.Context) (admin.SystemStats, error)
	Health(ctx context.Context) admin.SystemHealth
	ListUsers(ctx context.Context, limit, offset int) ([]admin.User, error)
	UserStats(ctx context.Context) (admin.UserStats, error)
}

// Handler serves dashboard, health and user endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	recorder *audit.Recorder
}

// NewHandler creates the handler. recorder may be nil.
func NewHandler(logger *slog.Logger, service Service, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, recorder: recorder}
}

// MountRoutes registers the admin routes. The router is expected to sit
// behind the admin gate.
func (h *Handler) MountRoutes(r chi.Router) {
	read := func(resource string) func(http.Handler) http.Handler {
		return h.recorder.Middleware(audit.RecordOptions{Action: audit.ActionRead, ResourceType: resource})
	}
	manage := h.recorder.Middleware(audit.RecordOptions{Action: audit.ActionAdmin, ResourceType: "user", Sensitive: true})

	r.With(read("dashboard")).Get("/dashboard", h.handleDashboard)
	r.With(read("system")).Get("/stats", h.handleStats)
	r.With(read("system")).Get("/health", h.handleHealth)
	r.With(manage).Get("/users", h.handleUsers)
	r.With(manage).Get("/users/stats", h.handleUserStats)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.fail(w, "dashboard snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "system stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Health(r.Context()))
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, err := intParam(values.Get("limit"), admin.DefaultUserLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	offset, err := intParam(values.Get("offset"), 0)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.Entry) {
		e.Description = "listed " + strconv.Itoa(len(users)) + " users"
	})
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UserStats(r.Context())
	if err != nil {
		h.fail(w, "user stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, admin.ErrInvalidParams) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	h.logger.Error(message, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Join(httpx.ErrValidation, err)
	}
	return n, nil
}
