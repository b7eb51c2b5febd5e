package console

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
)

type stubSource struct {
	mu        sync.Mutex
	queries   []audit.Query
	page      audit.Page
	searchErr error
	export    []byte
	exportErr error
	snap      admin.Snapshot
	snapErr   error
}

func (s *stubSource) SearchAuditLogs(ctx context.Context, q audit.Query) (audit.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	return s.page, s.searchErr
}

func (s *stubSource) ExportAuditLogs(ctx context.Context, req ExportRequest) ([]byte, error) {
	return s.export, s.exportErr
}

func (s *stubSource) Dashboard(ctx context.Context) (admin.Snapshot, error) {
	return s.snap, s.snapErr
}

func (s *stubSource) seen() []audit.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Query(nil), s.queries...)
}

func newTestAuditView(src *stubSource, clock *clockwork.FakeClock) (*AuditView, *Poller[audit.Page]) {
	poller := NewPoller[audit.Page](PollerOptions{Clock: clock, Interval: time.Hour, RetryDelay: time.Second})
	return NewAuditView(src, poller, clock), poller
}

func TestAuditViewDerivesModel(t *testing.T) {
	clock := clockwork.NewFakeClockAt(pipelineNow)
	src := &stubSource{page: samplePage()}
	view, poller := newTestAuditView(src, clock)
	defer poller.Close()

	require.True(t, view.SetQuery(audit.Query{}))
	require.True(t, view.SetFilter(Filter{Search: "192.168"}))

	require.Eventually(t, func() bool { return view.Model().HasData }, waitFor, tick)
	vm := view.Model()
	require.Equal(t, StatusSuccess, vm.Status)
	require.Equal(t, DecisionAllow, vm.Decision)
	require.Equal(t, 1, vm.Query.Page)
	require.Equal(t, audit.DefaultPerPage, vm.Query.PerPage)
	require.Len(t, vm.Derived.Entries, 2)
	require.Equal(t, 5, vm.Derived.Metrics.TotalLogs)
}

func TestAuditViewIgnoresInvalidInput(t *testing.T) {
	src := &stubSource{page: samplePage()}
	view, poller := newTestAuditView(src, clockwork.NewFakeClock())
	defer poller.Close()

	require.True(t, view.SetQuery(audit.Query{Page: 1, PerPage: 10}))
	require.False(t, view.SetQuery(audit.Query{Page: 1, PerPage: 5000}))
	require.False(t, view.SetQuery(audit.Query{Action: "teleport"}))
	require.False(t, view.SetFilter(Filter{Risk: "severe"}))

	vm := view.Model()
	require.Equal(t, 10, vm.Query.PerPage)
	require.Equal(t, RiskAll, vm.Filter.Risk)
}

func TestAuditViewQueryChangeSwitchesKey(t *testing.T) {
	src := &stubSource{page: samplePage()}
	view, poller := newTestAuditView(src, clockwork.NewFakeClock())
	defer poller.Close()

	first := audit.Query{Page: 1, PerPage: 10}
	second := audit.Query{Page: 2, PerPage: 10}
	require.True(t, view.SetQuery(first))
	require.Eventually(t, func() bool { return len(src.seen()) == 1 }, waitFor, tick)
	require.True(t, view.SetQuery(second))
	require.Eventually(t, func() bool { return len(src.seen()) == 2 }, waitFor, tick)

	require.Equal(t, 2, src.seen()[1].Page)
	require.False(t, poller.Refetch(first.Key()))
	require.True(t, poller.Refetch(second.Key()))
	require.Equal(t, 2, view.Model().Query.Page)

	view.Unmount()
	require.False(t, view.Refetch())
}

func TestAuditViewAuthErrorRedirects(t *testing.T) {
	src := &stubSource{searchErr: &StatusError{Status: 403, class: ErrUnauthorized}}
	clock := clockwork.NewFakeClock()
	view, poller := newTestAuditView(src, clock)
	defer poller.Close()

	require.True(t, view.SetQuery(audit.Query{}))
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return view.Model().Status == StatusFailed
	}, waitFor, tick)
	vm := view.Model()
	require.Equal(t, DecisionRedirectHome, vm.Decision)
	require.NoError(t, vm.Err)
}

func TestAuditViewExportNotices(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC))
	src := &stubSource{export: []byte("ID\n1\n")}
	view, poller := newTestAuditView(src, clock)
	defer poller.Close()

	artifact, ok := view.Export(context.Background(), ExportRequest{Format: "csv"})
	require.True(t, ok)
	require.Equal(t, "audit_logs_2024-03-15.csv", artifact.Name)
	require.Equal(t, "ID\n1\n", string(artifact.Data))
	n := <-view.Notices()
	require.Equal(t, NoticeInfo, n.Kind)
	require.Contains(t, n.Message, artifact.Name)

	src.exportErr = errors.Join(ErrExport, ErrTransport)
	_, ok = view.Export(context.Background(), ExportRequest{Format: "csv"})
	require.False(t, ok)
	n = <-view.Notices()
	require.Equal(t, NoticeError, n.Kind)
	require.Contains(t, n.Message, "export failed")

	vm := view.Model()
	require.Equal(t, StatusIdle, vm.Status)
	require.NoError(t, vm.Err)
}

func TestDashboardViewNormalisesHealth(t *testing.T) {
	src := &stubSource{snap: admin.Snapshot{SystemHealth: admin.SystemHealth{
		Status: "Healthy",
		Components: map[string]admin.ComponentStatus{
			"database": {Status: "healthy"},
			"gpu":      {Status: "on fire"},
		},
	}}}
	poller := NewPoller[admin.Snapshot](PollerOptions{Clock: clockwork.NewFakeClock(), Interval: time.Hour})
	defer poller.Close()
	view := NewDashboardView(src, poller)

	view.Mount()
	require.Eventually(t, func() bool { return view.Model().HasData }, waitFor, tick)
	vm := view.Model()
	require.Equal(t, admin.StatusHealthy, vm.Snapshot.SystemHealth.Status)
	require.Equal(t, admin.StatusUnknown, vm.Snapshot.SystemHealth.Components["gpu"].Status)
	require.True(t, view.Refetch())

	view.Unmount()
	require.False(t, view.Refetch())
}
