package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultPollInterval is the refetch cadence of a mounted key.
	DefaultPollInterval = 30 * time.Second
	// DefaultRetryDelay is the pause before the single retry of a failed fetch.
	DefaultRetryDelay = time.Second
)

// Status is the lifecycle stage of a polled key.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "error"
	default:
		return "idle"
	}
}

// State is the latest fetch outcome of a key. Data survives refetches and
// failures once HasData is set.
type State[T any] struct {
	Status    Status
	Data      T
	HasData   bool
	Err       error
	UpdatedAt time.Time
}

// Revalidating reports a refetch in flight over previously loaded data.
func (s State[T]) Revalidating() bool {
	return s.Status == StatusLoading && s.HasData
}

// FetchFunc loads the value of one key.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// PollerOptions configures a Poller. Zero fields take the defaults.
type PollerOptions struct {
	Clock      clockwork.Clock
	Interval   time.Duration
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Poller is a keyed registry of polled fetches. Each mounted key refetches on
// a fixed interval; a response is applied only if it answers the latest
// request issued for its key and the key is still mounted.
type Poller[T any] struct {
	clock      clockwork.Clock
	interval   time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
	changes chan struct{}
}

type entry[T any] struct {
	state State[T]
	seq   uint64
	run   *run
	fetch FetchFunc[T]
}

type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	refetch chan struct{}
}

// NewPoller builds an empty registry.
func NewPoller[T any](opts PollerOptions) *Poller[T] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller[T]{
		clock:      opts.Clock,
		interval:   opts.Interval,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		entries:    make(map[string]*entry[T]),
		changes:    make(chan struct{}, 1),
	}
}

// Changes signals that some key's state changed. Signals coalesce; read State
// for the current value.
func (p *Poller[T]) Changes() <-chan struct{} {
	return p.changes
}

// Start mounts key: it fetches immediately, then every interval until Stop.
// Starting a mounted key only replaces its fetch function.
func (p *Poller[T]) Start(key string, fetch FetchFunc[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		e = &entry[T]{}
		p.entries[key] = e
	}
	e.fetch = fetch
	if e.run != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{ctx: ctx, cancel: cancel, refetch: make(chan struct{}, 1)}
	e.run = r
	go p.loop(key, r)
}

// Refetch asks a mounted key to fetch now. It reports whether key is mounted.
func (p *Poller[T]) Refetch(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok || e.run == nil {
		return false
	}
	select {
	case e.run.refetch <- struct{}{}:
	default:
	}
	return true
}

// Stop unmounts key. Its timer is cancelled and responses still in flight
// are discarded; the last state is kept for a later Start.
func (p *Poller[T]) Stop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[key]; ok && e.run != nil {
		e.run.cancel()
		e.run = nil
	}
}

// Forget stops key and drops its cached state.
func (p *Poller[T]) Forget(key string) {
	p.Stop(key)
	p.mu.Lock()
	delete(p.entries, key)
	p.mu.Unlock()
}

// Close stops every key.
func (p *Poller[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.run != nil {
			e.run.cancel()
			e.run = nil
		}
	}
}

// State returns the current state of key.
func (p *Poller[T]) State(key string) (State[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return State[T]{}, false
	}
	return e.state, true
}

func (p *Poller[T]) loop(key string, r *run) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.issue(key, r)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.Chan():
			p.issue(key, r)
		case <-r.refetch:
			p.issue(key, r)
		}
	}
}

// issue records a new request for key and runs it in the background.
func (p *Poller[T]) issue(key string, r *run) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok || e.run != r {
		p.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	fetch := e.fetch
	e.state.Status = StatusLoading
	p.mu.Unlock()
	p.notify()

	go p.execute(key, r, seq, fetch)
}

func (p *Poller[T]) execute(key string, r *run, seq uint64, fetch FetchFunc[T]) {
	data, err := fetch(r.ctx)
	if err != nil && p.current(key, r, seq) {
		p.logger.Debug("fetch failed, retrying once", slog.String("key", key), slog.Any("error", err))
		select {
		case <-r.ctx.Done():
			return
		case <-p.clock.After(p.retryDelay):
		}
		if !p.current(key, r, seq) {
			return
		}
		data, err = fetch(r.ctx)
	}
	p.apply(key, r, seq, data, err)
}

// current reports whether seq is still the latest request of a mounted run.
func (p *Poller[T]) current(key string, r *run, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked(key, r, seq)
}

func (p *Poller[T]) currentLocked(key string, r *run, seq uint64) bool {
	e, ok := p.entries[key]
	return ok && e.run == r && r.ctx.Err() == nil && e.seq == seq
}

func (p *Poller[T]) apply(key string, r *run, seq uint64, data T, err error) {
	p.mu.Lock()
	if !p.currentLocked(key, r, seq) {
		p.mu.Unlock()
		p.logger.Debug("discarding stale response", slog.String("key", key), slog.Uint64("seq", seq))
		return
	}
	e := p.entries[key]
	e.state.UpdatedAt = p.clock.Now()
	if err != nil {
		e.state.Status = StatusFailed
		e.state.Err = err
	} else {
		e.state.Status = StatusSuccess
		e.state.Data = data
		e.state.HasData = true
		e.state.Err = nil
	}
	p.mu.Unlock()
	p.notify()
}

func (p *Poller[T]) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}
