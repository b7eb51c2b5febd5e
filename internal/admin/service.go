package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lexpilot/lexpilot/internal/audit"
	"github.com/lexpilot/lexpilot/internal/observability"
)

const (
	recentActivityLimit = 10
	recentAdminLimit    = 5
	// DefaultUserLimit is the page size of the user listing.
	DefaultUserLimit = 50
	// MaxUserLimit caps the page size of the user listing.
	MaxUserLimit = 1000
)

// ErrInvalidParams is returned for out-of-range listing parameters.
var ErrInvalidParams = errors.New("admin: invalid parameters")

// Repository reads the aggregates behind the dashboard.
type Repository interface {
	SystemStats(ctx context.Context, now time.Time) (SystemStats, error)
	SecuritySummary(ctx context.Context, now time.Time) (SecuritySummary, error)
	RecentActivities(ctx context.Context, now time.Time, limit int) ([]UserActivity, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	UserStats(ctx context.Context, now time.Time) (UserStats, error)
}

// AuditSearcher pages through audit entries.
type AuditSearcher interface {
	Search(ctx context.Context, q audit.Query) (audit.Page, error)
}

// PerformanceSource reports request counters since start-up.
type PerformanceSource interface {
	Summary() (observability.RequestSummary, error)
}

// Service builds, caches and serves the dashboard snapshot.
type Service struct {
	repo   Repository
	audits AuditSearcher
	health *HealthChecker
	perf   PerformanceSource
	cache  *Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// ServiceDeps gathers the collaborators of Service. Cache and Perf are optional.
type ServiceDeps struct {
	Repo   Repository
	Audits AuditSearcher
	Health *HealthChecker
	Perf   PerformanceSource
	Cache  *Cache
	Logger *slog.Logger
}

// NewService constructs the dashboard service.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	health := deps.Health
	if health == nil {
		health = NewHealthChecker("dev")
	}
	return &Service{
		repo:   deps.Repo,
		audits: deps.Audits,
		health: health,
		perf:   deps.Perf,
		cache:  deps.Cache,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the cached dashboard snapshot, building it on a miss.
// Concurrent misses share one build.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	ch := s.group.DoChan("snapshot", func() (interface{}, error) {
		return s.cachedSnapshot(ctx)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return s.withLocalMetrics(res.Val.(Snapshot)), nil
	}
}

// withLocalMetrics replaces the sections measured inside this process, since a
// cached snapshot may have been built by another one.
func (s *Service) withLocalMetrics(snap Snapshot) Snapshot {
	if perf, err := s.Performance(); err == nil {
		snap.PerformanceMetrics = perf
	} else {
		s.logger.Warn("performance metrics", slog.Any("error", err))
	}
	res := ReadResources()
	snap.SystemStats.UptimeHours = s.health.Uptime().Hours()
	snap.SystemStats.MemoryPercent = res.MemoryPercent
	snap.SystemStats.Goroutines = res.Goroutines
	return snap
}

func (s *Service) cachedSnapshot(ctx context.Context) (Snapshot, error) {
	key, err := s.cache.BuildKey(ctx, "admin", "snapshot")
	if err == nil {
		var snap Snapshot
		err = s.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (interface{}, error) {
			return s.BuildSnapshot(ctx)
		})
		if err == nil {
			return snap, nil
		}
	}
	if !errors.Is(err, ErrCacheUnavailable) {
		return Snapshot{}, err
	}
	s.logger.Warn("snapshot cache unavailable", slog.Any("error", err))
	return s.BuildSnapshot(ctx)
}

// Refresh rebuilds the snapshot and overwrites the cached copy.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	snap, err := s.BuildSnapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	key, err := s.cache.BuildKey(ctx, "admin", "snapshot")
	if err == nil {
		err = s.cache.StoreJSON(ctx, key, snap)
	}
	if err != nil {
		s.logger.Warn("store snapshot", slog.Any("error", err))
	}
	return snap, nil
}

// Invalidate drops every cached snapshot.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// BuildSnapshot assembles every section concurrently, bypassing the cache.
func (s *Service) BuildSnapshot(ctx context.Context) (Snapshot, error) {
	if s.repo == nil {
		return Snapshot{}, errors.New("admin: repository not configured")
	}
	now := s.now().UTC()
	snap := Snapshot{GeneratedAt: now}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		snap.SystemStats = stats
		return nil
	})
	g.Go(func() error {
		snap.SystemHealth = s.health.Check(ctx)
		return nil
	})
	g.Go(func() error {
		summary, err := s.securitySummary(ctx, now)
		if err != nil {
			return err
		}
		snap.SecuritySummary = summary
		return nil
	})
	g.Go(func() error {
		perf, err := s.Performance()
		if err != nil {
			return err
		}
		snap.PerformanceMetrics = perf
		return nil
	})
	g.Go(func() error {
		activities, err := s.repo.RecentActivities(ctx, now, recentActivityLimit)
		if err != nil {
			return fmt.Errorf("admin: recent activities: %w", err)
		}
		snap.RecentActivities = activities
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap.SystemStats.ActiveSessions = snap.SecuritySummary.ActiveSessions
	snap.SystemStats.SuspiciousActivities = len(snap.SecuritySummary.SuspiciousIPs)
	if snap.RecentActivities == nil {
		snap.RecentActivities = []UserActivity{}
	}
	return snap, nil
}

// Stats returns the system counters with process uptime and resource usage.
func (s *Service) Stats(ctx context.Context) (SystemStats, error) {
	if s.repo == nil {
		return SystemStats{}, errors.New("admin: repository not configured")
	}
	stats, err := s.repo.SystemStats(ctx, s.now().UTC())
	if err != nil {
		return SystemStats{}, fmt.Errorf("admin: system stats: %w", err)
	}
	res := ReadResources()
	stats.UptimeHours = s.health.Uptime().Hours()
	stats.MemoryPercent = res.MemoryPercent
	stats.Goroutines = res.Goroutines
	return stats, nil
}

// Health runs the health probes.
func (s *Service) Health(ctx context.Context) SystemHealth {
	return s.health.Check(ctx)
}

// Performance grades the request metrics collected since start-up.
func (s *Service) Performance() (PerformanceMetrics, error) {
	if s.perf == nil {
		return PerformanceMetrics{Status: PerformanceGood}, nil
	}
	summary, err := s.perf.Summary()
	if err != nil {
		return PerformanceMetrics{}, fmt.Errorf("admin: performance: %w", err)
	}
	avg := float64(summary.AvgResponseTime()) / float64(time.Millisecond)
	errRate := summary.ErrorRatePercent()
	return PerformanceMetrics{
		AvgResponseTimeMS:   avg,
		TotalRequests:       summary.TotalRequests,
		ErrorRatePercent:    errRate,
		CacheHitRatePercent: summary.CacheHitRatePercent(),
		Status:              gradePerformance(avg, errRate),
	}, nil
}

func gradePerformance(avgMS, errRate float64) PerformanceStatus {
	switch {
	case avgMS < 500 && errRate < 1:
		return PerformanceGood
	case avgMS < 1500 && errRate < 5:
		return PerformanceFair
	default:
		return PerformancePoor
	}
}

func (s *Service) securitySummary(ctx context.Context, now time.Time) (SecuritySummary, error) {
	summary, err := s.repo.SecuritySummary(ctx, now)
	if err != nil {
		return SecuritySummary{}, fmt.Errorf("admin: security summary: %w", err)
	}
	if summary.SuspiciousIPs == nil {
		summary.SuspiciousIPs = []string{}
	}
	summary.RecentAdminActions = []audit.EntryJSON{}
	if s.audits == nil {
		return summary, nil
	}
	page, err := s.audits.Search(ctx, audit.Query{Page: 1, PerPage: recentAdminLimit, Action: audit.ActionAdmin})
	if err != nil {
		return SecuritySummary{}, fmt.Errorf("admin: recent admin actions: %w", err)
	}
	for _, e := range page.Entries {
		summary.RecentAdminActions = append(summary.RecentAdminActions, e.ToJSON())
	}
	return summary, nil
}

// ListUsers pages through accounts, newest first.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = DefaultUserLimit
	}
	if limit > MaxUserLimit || offset < 0 {
		return nil, fmt.Errorf("%w: limit/offset", ErrInvalidParams)
	}
	users, err := s.repo.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// UserStats counts accounts.
func (s *Service) UserStats(ctx context.Context) (UserStats, error) {
	stats, err := s.repo.UserStats(ctx, s.now().UTC())
	if err != nil {
		return UserStats{}, fmt.Errorf("admin: user stats: %w", err)
	}
	return stats, nil
}
