package console

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func newTestPoller(clock clockwork.Clock) *Poller[string] {
	return NewPoller[string](PollerOptions{Clock: clock, Interval: time.Hour, RetryDelay: time.Second})
}

func stateOf(p *Poller[string], key string) State[string] {
	s, _ := p.State(key)
	return s
}

func TestPollerLoadsImmediately(t *testing.T) {
	p := newTestPoller(clockwork.NewFakeClock())
	defer p.Close()

	p.Start("k", func(ctx context.Context) (string, error) { return "page-1", nil })

	require.Eventually(t, func() bool {
		s := stateOf(p, "k")
		return s.Status == StatusSuccess && s.Data == "page-1"
	}, waitFor, tick)
	select {
	case <-p.Changes():
	default:
		t.Fatal("expected a change signal")
	}
}

func TestPollerDiscardsStaleResponse(t *testing.T) {
	p := newTestPoller(clockwork.NewFakeClock())
	defer p.Close()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	p.Start("k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "old", nil
		}
		return "new", nil
	})
	<-started
	require.True(t, p.Refetch("k"))
	require.Eventually(t, func() bool { return stateOf(p, "k").Data == "new" }, waitFor, tick)

	close(release)
	require.Never(t, func() bool { return stateOf(p, "k").Data == "old" }, 100*time.Millisecond, tick)
}

func TestPollerStopDiscardsInFlight(t *testing.T) {
	p := newTestPoller(clockwork.NewFakeClock())
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	p.Start("k", func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "late", nil
	})
	<-started
	p.Stop("k")
	close(release)

	require.Never(t, func() bool { return stateOf(p, "k").HasData }, 100*time.Millisecond, tick)
	require.False(t, p.Refetch("k"))
}

func TestPollerRetriesOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := newTestPoller(clock)
	defer p.Close()

	var calls atomic.Int32
	p.Start("k", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("boom")
	})

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return stateOf(p, "k").Status == StatusFailed
	}, waitFor, tick)
	require.EqualValues(t, 2, calls.Load())
	require.Never(t, func() bool {
		clock.Advance(time.Second)
		return calls.Load() > 2
	}, 100*time.Millisecond, tick)
}

func TestPollerRetrySucceeds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := newTestPoller(clock)
	defer p.Close()

	var calls atomic.Int32
	p.Start("k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})

	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return stateOf(p, "k").Status == StatusSuccess
	}, waitFor, tick)
	s := stateOf(p, "k")
	require.Equal(t, "ok", s.Data)
	require.NoError(t, s.Err)
}

func TestPollerRevalidatingKeepsData(t *testing.T) {
	p := newTestPoller(clockwork.NewFakeClock())
	defer p.Close()

	var calls atomic.Int32
	second := make(chan struct{})
	release := make(chan struct{})
	p.Start("k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "a", nil
		}
		close(second)
		<-release
		return "b", nil
	})
	require.Eventually(t, func() bool { return stateOf(p, "k").Status == StatusSuccess }, waitFor, tick)

	require.True(t, p.Refetch("k"))
	<-second
	s := stateOf(p, "k")
	require.True(t, s.Revalidating())
	require.Equal(t, "a", s.Data)

	close(release)
	require.Eventually(t, func() bool { return stateOf(p, "k").Data == "b" }, waitFor, tick)
}

func TestPollerErrorOverlaysLastData(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := newTestPoller(clock)
	defer p.Close()

	var calls atomic.Int32
	p.Start("k", func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "a", nil
		}
		return "", errors.New("down")
	})
	require.Eventually(t, func() bool { return stateOf(p, "k").Status == StatusSuccess }, waitFor, tick)

	require.True(t, p.Refetch("k"))
	require.Eventually(t, func() bool {
		clock.Advance(time.Second)
		return stateOf(p, "k").Status == StatusFailed
	}, waitFor, tick)
	s := stateOf(p, "k")
	require.True(t, s.HasData)
	require.Equal(t, "a", s.Data)
	require.EqualError(t, s.Err, "down")
}

func TestPollerTicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPoller[string](PollerOptions{Clock: clock, Interval: 30 * time.Second})
	defer p.Close()

	var calls atomic.Int32
	p.Start("k", func(ctx context.Context) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)

	require.Eventually(t, func() bool {
		clock.Advance(30 * time.Second)
		return calls.Load() >= 2
	}, waitFor, tick)
}

func TestPollerForgetDropsState(t *testing.T) {
	p := newTestPoller(clockwork.NewFakeClock())
	defer p.Close()

	p.Start("k", func(ctx context.Context) (string, error) { return "x", nil })
	require.Eventually(t, func() bool { return stateOf(p, "k").HasData }, waitFor, tick)

	p.Stop("k")
	_, ok := p.State("k")
	require.True(t, ok)

	p.Forget("k")
	_, ok = p.State("k")
	require.False(t, ok)
}
