package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/platform/httpx"
	"github.com/lexpilot/lexpilot/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. recorder may be nil.
func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.recorder.Middleware(audit.RecordOptions{Action: audit.ActionLogin, ResourceType: "session"})).
		Post("/login", h.handleLogin)
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        string `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	audit.Annotate(r.Context(), func(e *audit.Entry) {
		e.Actor = &audit.Actor{Email: form.Email}
	})

	if err := h.validator.Struct(form); err != nil {
		var fields []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fields = append(fields, strings.ToLower(fieldErr.Field()))
			}
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+strings.Join(fields, ", "))
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		audit.Annotate(r.Context(), func(e *audit.Entry) {
			e.Description = "failed login attempt"
		})
		httpx.RespondError(w, errors.Join(httpx.ErrUnauthorized, shared.ErrInvalidCredentials))
		return
	}
	token, err := h.service.IssueToken(user)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	audit.Annotate(r.Context(), func(e *audit.Entry) {
		e.Actor = &audit.Actor{UserID: user.ID, Email: user.Email, Role: user.Role}
		e.Description = "user logged in"
	})
	httpx.JSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.service.TTL().Seconds()),
		Role:        user.Role,
	})
}
