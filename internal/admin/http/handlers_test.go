package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
)

type stubService struct {
	snapshot admin.Snapshot
	err      error
	limit    int
	offset   int
}

func (s *stubService) Snapshot(ctx context.Context) (admin.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubService) Stats(ctx context.Context) (admin.SystemStats, error) {
	return s.snapshot.SystemStats, s.err
}

func (s *stubService) Health(ctx context.Context) admin.SystemHealth {
	return s.snapshot.SystemHealth
}

func (s *stubService) ListUsers(ctx context.Context, limit, offset int) ([]admin.User, error) {
	s.limit, s.offset = limit, offset
	if limit > admin.MaxUserLimit {
		return nil, fmt.Errorf("%w: limit", admin.ErrInvalidParams)
	}
	return []admin.User{{ID: 1, Email: "a@firm.test", Role: "admin", IsActive: true}}, s.err
}

func (s *stubService) UserStats(ctx context.Context) (admin.UserStats, error) {
	return admin.UserStats{TotalUsers: 3}, s.err
}

type captureWriter struct {
	entries []audit.Entry
}

func (c *captureWriter) Record(ctx context.Context, e audit.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func newRouter(svc Service, writer audit.Writer) http.Handler {
	r := chi.NewRouter()
	r.Route("/admin", NewHandler(nil, svc, audit.NewRecorder(writer, nil)).MountRoutes)
	return r
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestDashboard(t *testing.T) {
	svc := &stubService{snapshot: admin.Snapshot{
		SystemStats:  admin.SystemStats{TotalUsers: 12},
		SystemHealth: admin.SystemHealth{Status: admin.StatusDegraded},
	}}
	writer := &captureWriter{}
	rr := get(newRouter(svc, writer), "/admin/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	for _, section := range []string{"system_stats", "system_health", "security_summary", "performance_metrics", "recent_activities"} {
		require.Contains(t, body, section)
	}
	var health admin.SystemHealth
	require.NoError(t, json.Unmarshal(body["system_health"], &health))
	require.Equal(t, admin.StatusDegraded, health.Status)

	require.Len(t, writer.entries, 1)
	require.Equal(t, audit.ActionRead, writer.entries[0].Action)
	require.Equal(t, "dashboard", writer.entries[0].ResourceType)
}

func TestDashboardFailure(t *testing.T) {
	writer := &captureWriter{}
	rr := get(newRouter(&stubService{err: errors.New("boom")}, writer), "/admin/dashboard")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, audit.RiskHigh, writer.entries[0].RiskLevel)
}

func TestUsersParsesPaging(t *testing.T) {
	svc := &stubService{}
	writer := &captureWriter{}
	rr := get(newRouter(svc, writer), "/admin/users?limit=20&offset=40")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 20, svc.limit)
	require.Equal(t, 40, svc.offset)
	require.Equal(t, audit.ActionAdmin, writer.entries[0].Action)
	require.Equal(t, "listed 1 users", writer.entries[0].Description)

	require.Equal(t, http.StatusBadRequest, get(newRouter(svc, writer), "/admin/users?limit=abc").Code)
	require.Equal(t, http.StatusBadRequest, get(newRouter(svc, writer), "/admin/users?limit=5000").Code)
}

func TestUserStats(t *testing.T) {
	rr := get(newRouter(&stubService{}, &captureWriter{}), "/admin/users/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"total_users":3,"active_users":0,"admin_users":0,"standard_users":0,"new_users_today":0,"new_users_this_week":0,"new_users_this_month":0}`, rr.Body.String())
}
