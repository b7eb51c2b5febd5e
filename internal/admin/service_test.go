package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/observability"
)

type fakeRepo struct {
	statsCalls atomic.Int32
	gate       chan struct{}
	statsErr   error
}

func (f *fakeRepo) SystemStats(ctx context.Context, now time.Time) (SystemStats, error) {
	f.statsCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return SystemStats{TotalUsers: 12, ActiveUsers: 10, FailedLoginsToday: 2}, f.statsErr
}

func (f *fakeRepo) SecuritySummary(ctx context.Context, now time.Time) (SecuritySummary, error) {
	return SecuritySummary{TotalAuditLogs: 300, HighRiskEvents: 4, ActiveSessions: 3, SuspiciousIPs: []string{"203.0.113.7"}}, nil
}

func (f *fakeRepo) RecentActivities(ctx context.Context, now time.Time, limit int) ([]UserActivity, error) {
	return []UserActivity{{UserID: 1, UserEmail: "a@firm.test"}}, nil
}

func (f *fakeRepo) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	return nil, nil
}

func (f *fakeRepo) UserStats(ctx context.Context, now time.Time) (UserStats, error) {
	return UserStats{TotalUsers: 12}, nil
}

type fakeAudits struct {
	last audit.Query
}

func (f *fakeAudits) Search(ctx context.Context, q audit.Query) (audit.Page, error) {
	f.last = q
	return audit.Page{Entries: []audit.Entry{{ID: 5, Action: audit.ActionAdmin}}, Total: 1, Page: 1, PerPage: q.PerPage}, nil
}

func newTestCache(t *testing.T, observer CacheObserver) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, observer), mr
}

func TestBuildSnapshotAssemblesSections(t *testing.T) {
	audits := &fakeAudits{}
	svc := NewService(ServiceDeps{
		Repo:   &fakeRepo{},
		Audits: audits,
		Health: NewHealthChecker("test", fixedProbe{"database", true, StatusHealthy}),
		Perf:   observability.NewMetrics(),
	})

	snap, err := svc.BuildSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, snap.SystemStats.TotalUsers)
	require.Equal(t, 3, snap.SystemStats.ActiveSessions)
	require.Equal(t, 1, snap.SystemStats.SuspiciousActivities)
	require.Equal(t, StatusHealthy, snap.SystemHealth.Status)
	require.Equal(t, 300, snap.SecuritySummary.TotalAuditLogs)
	require.Len(t, snap.SecuritySummary.RecentAdminActions, 1)
	require.Equal(t, audit.ActionAdmin, audits.last.Action)
	require.Equal(t, 5, audits.last.PerPage)
	require.Equal(t, PerformanceGood, snap.PerformanceMetrics.Status)
	require.Len(t, snap.RecentActivities, 1)
}

func TestBuildSnapshotFailsWhenSectionFails(t *testing.T) {
	svc := NewService(ServiceDeps{Repo: &fakeRepo{statsErr: errors.New("db down")}})
	_, err := svc.BuildSnapshot(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestSnapshotIsCached(t *testing.T) {
	metrics := observability.NewMetrics()
	cache, _ := newTestCache(t, metrics)
	repo := &fakeRepo{}
	svc := NewService(ServiceDeps{Repo: repo, Cache: cache, Perf: metrics})

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.statsCalls.Load())
	require.Equal(t, first.SystemStats.TotalUsers, second.SystemStats.TotalUsers)

	summary, err := metrics.Summary()
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.CacheHits)
	require.EqualValues(t, 1, summary.CacheMisses)

	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.statsCalls.Load())
}

func TestCachedSnapshotCarriesLivePerformance(t *testing.T) {
	metrics := observability.NewMetrics()
	cache, _ := newTestCache(t, metrics)
	repo := &fakeRepo{}
	svc := NewService(ServiceDeps{Repo: repo, Cache: cache, Perf: metrics})

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Zero(t, first.PerformanceMetrics.TotalRequests)

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))

	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.statsCalls.Load())
	require.EqualValues(t, 1, second.PerformanceMetrics.TotalRequests)
	require.Positive(t, second.SystemStats.Goroutines)
}

func TestSnapshotFallsBackWhenCacheDown(t *testing.T) {
	cache, mr := newTestCache(t, nil)
	mr.Close()
	repo := &fakeRepo{}
	svc := NewService(ServiceDeps{Repo: repo, Cache: cache})

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, snap.SystemStats.TotalUsers)
}

func TestSnapshotCollapsesConcurrentBuilds(t *testing.T) {
	repo := &fakeRepo{gate: make(chan struct{})}
	svc := NewService(ServiceDeps{Repo: repo})

	const callers = 5
	var ready, done sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		ready.Add(1)
		done.Add(1)
		go func() {
			defer done.Done()
			ready.Done()
			_, err := svc.Snapshot(context.Background())
			errs <- err
		}()
	}
	ready.Wait()
	require.Eventually(t, func() bool { return repo.statsCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	done.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, repo.statsCalls.Load())
}

func TestRefreshOverwritesCache(t *testing.T) {
	cache, _ := newTestCache(t, nil)
	repo := &fakeRepo{}
	svc := NewService(ServiceDeps{Repo: repo, Cache: cache})

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.statsCalls.Load())
}

func TestListUsersValidatesLimits(t *testing.T) {
	svc := NewService(ServiceDeps{Repo: &fakeRepo{}})
	users, err := svc.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	require.NotNil(t, users)

	_, err = svc.ListUsers(context.Background(), 5000, 0)
	require.ErrorIs(t, err, ErrInvalidParams)
	_, err = svc.ListUsers(context.Background(), 10, -1)
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestGradePerformance(t *testing.T) {
	require.Equal(t, PerformanceGood, gradePerformance(120, 0.2))
	require.Equal(t, PerformanceFair, gradePerformance(800, 0.2))
	require.Equal(t, PerformanceFair, gradePerformance(120, 3))
	require.Equal(t, PerformancePoor, gradePerformance(2000, 0))
	require.Equal(t, PerformancePoor, gradePerformance(100, 10))
}
