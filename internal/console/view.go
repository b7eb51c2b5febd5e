package console

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lexpilot/lexpilot/internal/admin"
	"github.com/lexpilot/lexpilot/internal/audit"
)

const dashboardKey = "dashboard"

// AuditSource is the part of Client used by AuditView.
type AuditSource interface {
	SearchAuditLogs(ctx context.Context, q audit.Query) (audit.Page, error)
	ExportAuditLogs(ctx context.Context, req ExportRequest) ([]byte, error)
}

// DashboardSource is the part of Client used by DashboardView.
type DashboardSource interface {
	Dashboard(ctx context.Context) (admin.Snapshot, error)
}

// NoticeKind classifies a transient notification.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeError
)

// Notice is a transient message that does not touch view state.
type Notice struct {
	Kind    NoticeKind
	Message string
	At      time.Time
}

// Artifact is a downloaded export.
type Artifact struct {
	Name string
	Data []byte
}

// AuditViewModel is everything the audit screen renders.
type AuditViewModel struct {
	Status    Status
	Query     audit.Query
	Filter    Filter
	Page      audit.Page
	HasData   bool
	Derived   Derived
	Err       error
	Decision  Decision
	UpdatedAt time.Time
}

// AuditView is the polled audit log screen: one poller key per query.
type AuditView struct {
	poller  *Poller[audit.Page]
	source  AuditSource
	clock   clockwork.Clock
	notices chan Notice

	mu     sync.Mutex
	key    string
	query  audit.Query
	filter Filter
}

// NewAuditView wires a view over source. clock may be nil.
func NewAuditView(source AuditSource, poller *Poller[audit.Page], clock clockwork.Clock) *AuditView {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuditView{
		poller:  poller,
		source:  source,
		clock:   clock,
		notices: make(chan Notice, 8),
		filter:  Filter{Risk: RiskAll},
	}
}

// SetQuery mounts the view on q. An invalid query is ignored and reported
// as false. A changed query stops the old key and starts the new one.
func (v *AuditView) SetQuery(q audit.Query) bool {
	q = q.WithDefaults()
	if err := q.Validate(); err != nil {
		return false
	}
	key := q.Key()

	v.mu.Lock()
	defer v.mu.Unlock()
	if key == v.key {
		return true
	}
	if v.key != "" {
		v.poller.Stop(v.key)
	}
	v.key = key
	v.query = q
	source := v.source
	v.poller.Start(key, func(ctx context.Context) (audit.Page, error) {
		return source.SearchAuditLogs(ctx, q)
	})
	return true
}

// SetFilter replaces the client-side filter. An unknown risk filter is
// ignored and reported as false.
func (v *AuditView) SetFilter(f Filter) bool {
	if f.Risk == "" {
		f.Risk = RiskAll
	}
	if _, err := ParseRiskFilter(string(f.Risk)); err != nil {
		return false
	}
	v.mu.Lock()
	v.filter = f
	v.mu.Unlock()
	return true
}

// Refetch triggers a user-driven refetch of the current query.
func (v *AuditView) Refetch() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key == "" {
		return false
	}
	return v.poller.Refetch(v.key)
}

// Unmount stops polling. Responses still in flight are discarded.
func (v *AuditView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key != "" {
		v.poller.Stop(v.key)
		v.key = ""
	}
}

// Model derives the current view-model.
func (v *AuditView) Model() AuditViewModel {
	v.mu.Lock()
	key, query, filter := v.key, v.query, v.filter
	v.mu.Unlock()

	vm := AuditViewModel{Query: query, Filter: filter, Decision: DecisionAllow}
	if key == "" {
		return vm
	}
	state, _ := v.poller.State(key)
	vm.Status = state.Status
	vm.UpdatedAt = state.UpdatedAt
	vm.Err, vm.Decision = splitAuthError(state.Err)
	if state.HasData {
		vm.HasData = true
		vm.Page = state.Data
		vm.Derived = Derive(state.Data, filter, v.clock.Now())
	}
	return vm
}

// Export downloads the audit export. Success and failure are reported on
// Notices; view state is never touched.
func (v *AuditView) Export(ctx context.Context, req ExportRequest) (Artifact, bool) {
	data, err := v.source.ExportAuditLogs(ctx, req)
	if err != nil {
		v.notify(NoticeError, fmt.Sprintf("export failed: %v", err))
		return Artifact{}, false
	}
	artifact := Artifact{Name: audit.ExportFileName(v.clock.Now()), Data: data}
	v.notify(NoticeInfo, fmt.Sprintf("exported %s (%d bytes)", artifact.Name, len(data)))
	return artifact, true
}

// Notices delivers transient notifications. Unread notices are dropped when
// the buffer is full.
func (v *AuditView) Notices() <-chan Notice {
	return v.notices
}

func (v *AuditView) notify(kind NoticeKind, msg string) {
	select {
	case v.notices <- Notice{Kind: kind, Message: msg, At: v.clock.Now()}:
	default:
	}
}

// DashboardViewModel is everything the dashboard screen renders.
type DashboardViewModel struct {
	Status    Status
	Snapshot  admin.Snapshot
	HasData   bool
	Err       error
	Decision  Decision
	UpdatedAt time.Time
}

// DashboardView polls the dashboard snapshot.
type DashboardView struct {
	poller *Poller[admin.Snapshot]
	source DashboardSource

	mu      sync.Mutex
	mounted bool
}

// NewDashboardView wires a view over source.
func NewDashboardView(source DashboardSource, poller *Poller[admin.Snapshot]) *DashboardView {
	return &DashboardView{poller: poller, source: source}
}

// Mount starts polling the snapshot.
func (v *DashboardView) Mount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mounted {
		return
	}
	v.mounted = true
	v.poller.Start(dashboardKey, v.source.Dashboard)
}

// Refetch triggers a user-driven refresh.
func (v *DashboardView) Refetch() bool {
	return v.poller.Refetch(dashboardKey)
}

// Unmount stops polling.
func (v *DashboardView) Unmount() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mounted = false
	v.poller.Stop(dashboardKey)
}

// Model returns the current view-model with health statuses normalised.
func (v *DashboardView) Model() DashboardViewModel {
	vm := DashboardViewModel{Decision: DecisionAllow}
	state, ok := v.poller.State(dashboardKey)
	if !ok {
		return vm
	}
	vm.Status = state.Status
	vm.UpdatedAt = state.UpdatedAt
	vm.Err, vm.Decision = splitAuthError(state.Err)
	if state.HasData {
		vm.HasData = true
		vm.Snapshot = normaliseHealth(state.Data)
	}
	return vm
}

func normaliseHealth(snap admin.Snapshot) admin.Snapshot {
	health := snap.SystemHealth
	health.Status = admin.ParseHealthStatus(string(health.Status))
	components := make(map[string]admin.ComponentStatus, len(health.Components))
	for name, c := range health.Components {
		c.Status = admin.ParseHealthStatus(string(c.Status))
		components[name] = c
	}
	health.Components = components
	snap.SystemHealth = health
	return snap
}

// splitAuthError turns authorization failures into a redirect decision.
func splitAuthError(err error) (error, Decision) {
	if err == nil {
		return nil, DecisionAllow
	}
	if d := DecisionForError(err); d != DecisionAllow {
		return nil, d
	}
	return err, DecisionAllow
}
