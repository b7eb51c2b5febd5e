package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/admin"
	adminhttp "github.com/lexpilot/lexpilot/internal/admin/http"
	"github.com/lexpilot/lexpilot/internal/auth"
	"github.com/lexpilot/lexpilot/internal/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type healthOnly struct{ adminhttp.Service }

func (healthOnly) Health(ctx context.Context) admin.SystemHealth {
	return admin.SystemHealth{Status: admin.StatusHealthy}
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	tokens := auth.NewService(nil, testSecret, time.Hour, nil)
	router := NewRouter(RouterParams{
		Config:       &Config{AppEnv: "test", AppRequestTimeout: time.Second, RateLimitPerMin: 1000},
		TokenParser:  tokens,
		AdminHandler: adminhttp.NewHandler(nil, healthOnly{}, nil),
		Metrics:      observability.NewMetrics(),
	})
	return router, tokens
}

func bearer(t *testing.T, tokens *auth.Service, role string) string {
	t.Helper()
	tok, err := tokens.IssueToken(&auth.User{ID: 7, Email: "someone@firm.test", Role: role})
	require.NoError(t, err)
	return "Bearer " + tok.AccessToken
}

func TestRouterAdminGate(t *testing.T) {
	router, tokens := newTestRouter(t)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"standard user", bearer(t, tokens, "standard"), http.StatusForbidden},
		{"admin", bearer(t, tokens, "admin"), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			require.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestRouterPublicEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "lexpilot_http_requests_total")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("SNAPSHOT_TTL", "2m")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.SnapshotTTL)
	require.Equal(t, 30*time.Minute, cfg.JWTTTL)
	require.False(t, cfg.IsProduction())
}
