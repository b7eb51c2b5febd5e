package admin

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

const defaultProbeTimeout = 3 * time.Second

// Probe checks one dependency. Required probes drive the overall status to
// unhealthy when they fail; optional ones only degrade it.
type Probe interface {
	Name() string
	Required() bool
	Check(ctx context.Context) ComponentStatus
}

// PingProbe reports healthy when ping succeeds.
type PingProbe struct {
	name     string
	required bool
	ping     func(context.Context) error
}

// NewPingProbe wraps a ping function such as pgxpool.Pool.Ping.
func NewPingProbe(name string, required bool, ping func(context.Context) error) *PingProbe {
	return &PingProbe{name: name, required: required, ping: ping}
}

func (p *PingProbe) Name() string   { return p.name }
func (p *PingProbe) Required() bool { return p.required }

// Check pings the dependency.
func (p *PingProbe) Check(ctx context.Context) ComponentStatus {
	if p.ping == nil {
		return ComponentStatus{Status: StatusUnknown, Details: "not configured"}
	}
	if err := p.ping(ctx); err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Error: err.Error()}
	}
	return ComponentStatus{Status: StatusHealthy, Details: p.name + " connection OK"}
}

// QueueInspector is the subset of asynq.Inspector used by QueueProbe.
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// QueueProbe reports the state of the background job queues.
type QueueProbe struct {
	inspector QueueInspector
}

// NewQueueProbe builds a probe over an asynq inspector.
func NewQueueProbe(inspector QueueInspector) *QueueProbe {
	return &QueueProbe{inspector: inspector}
}

func (p *QueueProbe) Name() string   { return "job_queue" }
func (p *QueueProbe) Required() bool { return false }

// Check degrades when a queue is paused or holds archived (dead) tasks.
func (p *QueueProbe) Check(ctx context.Context) ComponentStatus {
	if p.inspector == nil {
		return ComponentStatus{Status: StatusUnknown, Details: "inspector not configured"}
	}
	queues, err := p.inspector.Queues()
	if err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Error: err.Error()}
	}
	var pending, archived int
	var paused []string
	for _, name := range queues {
		info, err := p.inspector.GetQueueInfo(name)
		if err != nil {
			return ComponentStatus{Status: StatusUnhealthy, Error: err.Error()}
		}
		pending += info.Pending
		archived += info.Archived
		if info.Paused {
			paused = append(paused, name)
		}
	}
	status := StatusHealthy
	if len(paused) > 0 || archived > 0 {
		status = StatusDegraded
	}
	details := fmt.Sprintf("%d queues, %d pending, %d archived", len(queues), pending, archived)
	if len(paused) > 0 {
		details += fmt.Sprintf(", paused: %v", paused)
	}
	return ComponentStatus{Status: status, Details: details}
}

// Resources is a reading of the process resource usage.
type Resources struct {
	MemoryPercent float64
	Goroutines    int
}

// ReadResources samples the Go runtime. Memory is heap in use relative to
// memory obtained from the OS.
func ReadResources() Resources {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	var pct float64
	if ms.Sys > 0 {
		pct = float64(ms.HeapInuse) / float64(ms.Sys) * 100
	}
	return Resources{MemoryPercent: pct, Goroutines: runtime.NumGoroutine()}
}

// RuntimeProbe reports process resource pressure.
type RuntimeProbe struct {
	read func() Resources
}

// NewRuntimeProbe builds a probe over the Go runtime statistics.
func NewRuntimeProbe() *RuntimeProbe {
	return &RuntimeProbe{read: ReadResources}
}

func (p *RuntimeProbe) Name() string   { return "system_resources" }
func (p *RuntimeProbe) Required() bool { return false }

// Check grades memory pressure: above 85% degraded, above 95% unhealthy.
func (p *RuntimeProbe) Check(ctx context.Context) ComponentStatus {
	res := p.read()
	status := StatusHealthy
	switch {
	case res.MemoryPercent > 95:
		status = StatusUnhealthy
	case res.MemoryPercent > 85:
		status = StatusDegraded
	}
	return ComponentStatus{
		Status:  status,
		Details: fmt.Sprintf("Memory: %.1f%%, Goroutines: %d", res.MemoryPercent, res.Goroutines),
	}
}

// HealthChecker runs every probe and folds the results into SystemHealth.
type HealthChecker struct {
	probes  []Probe
	version string
	timeout time.Duration
	started time.Time
	now     func() time.Time
}

// NewHealthChecker builds a checker; the uptime clock starts now.
func NewHealthChecker(version string, probes ...Probe) *HealthChecker {
	return &HealthChecker{
		probes:  probes,
		version: version,
		timeout: defaultProbeTimeout,
		started: time.Now(),
		now:     time.Now,
	}
}

// Uptime returns the time since the checker was built.
func (c *HealthChecker) Uptime() time.Duration {
	return c.now().Sub(c.started)
}

// Check runs the probes concurrently, each under its own timeout.
func (c *HealthChecker) Check(ctx context.Context) SystemHealth {
	results := make([]ComponentStatus, len(c.probes))
	var g errgroup.Group
	for i, probe := range c.probes {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			start := c.now()
			status := probe.Check(probeCtx)
			status.Status = ParseHealthStatus(string(status.Status))
			elapsed := c.now().Sub(start).Milliseconds()
			status.ResponseTimeMS = &elapsed
			results[i] = status
			return nil
		})
	}
	_ = g.Wait()

	health := SystemHealth{
		Status:        StatusHealthy,
		Components:    make(map[string]ComponentStatus, len(c.probes)),
		Timestamp:     c.now().UTC(),
		UptimeSeconds: c.Uptime().Seconds(),
		Version:       c.version,
	}
	for i, probe := range c.probes {
		health.Components[probe.Name()] = results[i]
		health.Status = foldStatus(health.Status, probe.Required(), results[i].Status)
	}
	return health
}

func foldStatus(overall HealthStatus, required bool, component HealthStatus) HealthStatus {
	if overall == StatusUnhealthy {
		return overall
	}
	switch component {
	case StatusUnhealthy:
		if required {
			return StatusUnhealthy
		}
		return StatusDegraded
	case StatusDegraded:
		return StatusDegraded
	}
	return overall
}
