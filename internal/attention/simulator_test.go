package attention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sweeney/attention-sensor/internal/capture"
)

// manualTicker is fed by the test instead of the wall clock.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

// tickers records every ticker the simulator creates.
type tickers struct {
	mu  sync.Mutex
	all []*manualTicker
}

func (tk *tickers) factory(time.Duration) Ticker {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	m := &manualTicker{ch: make(chan time.Time)}
	tk.all = append(tk.all, m)
	return m
}

func (tk *tickers) count() int {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return len(tk.all)
}

func (tk *tickers) last() *manualTicker {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.all[len(tk.all)-1]
}

// scriptedRand cycles through fixed values.
type scriptedRand struct {
	vals []float64
	i    int
}

func (r *scriptedRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// fakeClock returns start, start+step, start+2*step, ...
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)-1) * step)
	}
}

var (
	testStart  = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	testTarget = &Rect{X: 0, Y: 0, Width: 100, Height: 100}
)

func newTestSimulator(t *testing.T, opts ...Option) (*Simulator, *tickers) {
	t.Helper()
	tk := &tickers{}
	base := []Option{
		WithTicker(tk.factory),
		WithClock(fakeClock(testStart, 100*time.Millisecond)),
		WithSeed(42),
	}
	s := New(capture.NewFakeSource(), append(base, opts...)...)
	t.Cleanup(s.Stop)
	return s, tk
}

// stepN runs n ticks on the calling goroutine.
func stepN(t *testing.T, s *Simulator, n int) []Sample {
	t.Helper()
	out := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		sample, ok := s.tick(context.Background())
		require.True(t, ok, "tick %d: simulator not tracking", i)
		out = append(out, sample)
	}
	return out
}

func TestNewSimulatorIsInactive(t *testing.T) {
	s, _ := newTestSimulator(t)

	assert.Equal(t, StatusInactive, s.Status())
	sample := s.CurrentSample()
	assert.Equal(t, StatusInactive, sample.Status)
	assert.Equal(t, 0.5, sample.Score)
	assert.Equal(t, 1.0, sample.FocusStability)
	assert.Equal(t, Point{X: 960, Y: 540}, sample.Gaze)
}

func TestStartStopStatus(t *testing.T) {
	s, _ := newTestSimulator(t)

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	assert.Equal(t, StatusTracking, s.Status())
	assert.Equal(t, StatusTracking, s.CurrentSample().Status)

	s.Stop()
	assert.Equal(t, StatusInactive, s.Status())
	assert.Equal(t, StatusInactive, s.CurrentSample().Status)
}

func TestStopTwice(t *testing.T) {
	s, _ := newTestSimulator(t)
	require.NoError(t, s.Start(context.Background(), testTarget, nil))

	s.Stop()
	assert.Equal(t, StatusInactive, s.Status())
	s.Stop()
	assert.Equal(t, StatusInactive, s.Status())
}

func TestStopBeforeStart(t *testing.T) {
	s, _ := newTestSimulator(t)
	s.Stop()
	assert.Equal(t, StatusInactive, s.Status())
}

func TestStartTwiceKeepsHistoryAndTicker(t *testing.T) {
	s, tk := newTestSimulator(t)
	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	stepN(t, s, 3)

	require.NoError(t, s.Start(context.Background(), nil, nil))
	assert.Equal(t, 3, s.HistoryLen(), "second Start must not reset history")
	assert.Equal(t, 1, tk.count(), "second Start must not schedule another ticker")
	assert.Equal(t, 3, int(s.Ticks()))
}

func TestRestartUsesFreshHistory(t *testing.T) {
	s, tk := newTestSimulator(t)
	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	stepN(t, s, 4)
	s.Stop()

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	assert.Equal(t, 0, s.HistoryLen())
	assert.Equal(t, 2, tk.count())
	assert.Equal(t, 0.5, s.CurrentSample().Score, "restart seeds InitialScore")
}

func TestRestartCarryScore(t *testing.T) {
	s, _ := newTestSimulator(t)
	cfg := DefaultConfig()
	cfg.CarryScore = true

	require.NoError(t, s.Start(context.Background(), nil, &cfg))
	samples := stepN(t, s, 3)
	s.Stop()

	require.NoError(t, s.Start(context.Background(), nil, &cfg))
	assert.Equal(t, samples[2].Score, s.CurrentSample().Score)
	assert.Equal(t, 0, s.HistoryLen())
}

func TestSampleFieldsBounded(t *testing.T) {
	s, _ := newTestSimulator(t, WithSeed(7))
	require.NoError(t, s.Start(context.Background(), &Rect{X: 800, Y: 400, Width: 300, Height: 200}, nil))

	for i, sample := range stepN(t, s, 500) {
		assert.GreaterOrEqual(t, sample.Score, 0.0, "tick %d score", i)
		assert.LessOrEqual(t, sample.Score, 1.0, "tick %d score", i)
		assert.GreaterOrEqual(t, sample.FocusStability, 0.0, "tick %d stability", i)
		assert.LessOrEqual(t, sample.FocusStability, 1.0, "tick %d stability", i)
		assert.GreaterOrEqual(t, sample.CognitiveLoad, 0.0, "tick %d load", i)
		assert.LessOrEqual(t, sample.CognitiveLoad, 1.0, "tick %d load", i)
		assert.Equal(t, StatusTracking, sample.Status)
	}
}

func TestHistoryCapacityFIFO(t *testing.T) {
	s, _ := newTestSimulator(t)
	cfg := DefaultConfig()
	cfg.HistorySize = 3

	require.NoError(t, s.Start(context.Background(), testTarget, &cfg))
	samples := stepN(t, s, 7)

	assert.Equal(t, 3, s.HistoryLen())
	s.mu.Lock()
	got := s.history.Values()
	s.mu.Unlock()
	assert.Equal(t, []float64{samples[4].Score, samples[5].Score, samples[6].Score}, got)
}

func TestUnboundTargetDrivesScoreToZero(t *testing.T) {
	s, _ := newTestSimulator(t)
	require.NoError(t, s.Start(context.Background(), nil, nil))

	prev := s.CurrentSample().Score
	samples := stepN(t, s, 20)
	for i, sample := range samples {
		assert.LessOrEqual(t, sample.Score, prev, "tick %d: score increased without a target", i)
		prev = sample.Score
	}
	assert.Equal(t, 0.0, samples[len(samples)-1].Score)
}

func TestUnboundTargetGazeNearViewportCenter(t *testing.T) {
	s, _ := newTestSimulator(t)
	require.NoError(t, s.Start(context.Background(), nil, nil))

	for _, sample := range stepN(t, s, 50) {
		assert.InDelta(t, 960, sample.Gaze.X, 50)
		assert.InDelta(t, 540, sample.Gaze.Y, 50)
	}
}

func TestTickExactSequence(t *testing.T) {
	// Draw order per tick: hit roll, jitter X, jitter Y, score jitter, load jitter.
	rng := &scriptedRand{vals: []float64{0.1, 0.5, 0.5, 0.5, 0.5}}
	s, _ := newTestSimulator(t, WithRand(rng))
	require.NoError(t, s.Start(context.Background(), testTarget, nil))

	samples := stepN(t, s, 2)

	assert.Equal(t, Point{X: 50, Y: 50}, samples[0].Gaze)
	assert.InDelta(t, 0.56, samples[0].Score, 1e-9)
	assert.InDelta(t, 0.5, samples[0].CognitiveLoad, 1e-9)
	assert.Equal(t, 1.0, samples[0].FocusStability)

	assert.InDelta(t, 0.62, samples[1].Score, 1e-9)
	// Two scores 0.06 apart: variance 0.0009, stability 1 - 5*0.0009.
	assert.InDelta(t, 0.9955, samples[1].FocusStability, 1e-9)
}

func TestTickMissedTargetDecays(t *testing.T) {
	// Hit roll 0.9 >= 0.7 falls back to a uniform gaze; 0.9 of the viewport
	// lands far outside the 100x100 target.
	rng := &scriptedRand{vals: []float64{0.9, 0.9, 0.9, 0.5, 0.5}}
	s, _ := newTestSimulator(t, WithRand(rng))
	require.NoError(t, s.Start(context.Background(), testTarget, nil))

	sample := stepN(t, s, 1)[0]
	assert.InDelta(t, 1728, sample.Gaze.X, 1e-9)
	assert.InDelta(t, 972, sample.Gaze.Y, 1e-9)
	assert.InDelta(t, 0.5-0.08-0.015, sample.Score, 1e-9)
}

func TestTimestampsStrictlyIncrease(t *testing.T) {
	frozen := func() time.Time { return testStart }
	s, _ := newTestSimulator(t, WithClock(frozen))
	require.NoError(t, s.Start(context.Background(), testTarget, nil))

	prev := s.CurrentSample().Timestamp
	for i, sample := range stepN(t, s, 10) {
		assert.True(t, sample.Timestamp.After(prev), "tick %d: timestamp did not advance", i)
		prev = sample.Timestamp
	}
}

func TestConfigurableConstants(t *testing.T) {
	rng := &scriptedRand{vals: []float64{0.1, 0.5, 0.5, 0, 0}}
	s, _ := newTestSimulator(t, WithRand(rng))
	cfg := DefaultConfig()
	cfg.AttentiveGain = 0.2
	cfg.LoadBase = 0.9
	cfg.LoadJitter = 0

	require.NoError(t, s.Start(context.Background(), testTarget, &cfg))
	sample := stepN(t, s, 1)[0]
	assert.InDelta(t, 0.7, sample.Score, 1e-9)
	assert.InDelta(t, 0.9, sample.CognitiveLoad, 1e-9)
}

func TestStartInvalidConfig(t *testing.T) {
	s, tk := newTestSimulator(t)
	cfg := DefaultConfig()
	cfg.HistorySize = 0

	err := s.Start(context.Background(), testTarget, &cfg)
	require.Error(t, err)
	assert.Equal(t, StatusInactive, s.Status())
	assert.Equal(t, 0, tk.count())
}

func TestStartCaptureFailure(t *testing.T) {
	src := capture.NewFakeSource()
	src.AcquireError = capture.ErrPermissionDenied
	tk := &tickers{}
	s := New(src, WithTicker(tk.factory))
	t.Cleanup(s.Stop)

	cfg := DefaultConfig()
	cfg.Capture = true
	err := s.Start(context.Background(), testTarget, &cfg)

	var cerr *capture.Error
	require.True(t, errors.As(err, &cerr), "expected *capture.Error, got %v", err)
	assert.ErrorIs(t, err, capture.ErrPermissionDenied)
	assert.Equal(t, StatusInactive, s.Status())
	assert.Equal(t, 0, tk.count(), "no loop may be scheduled after a capture failure")
}

func TestStartCaptureWithoutSource(t *testing.T) {
	s := New(nil, WithTicker((&tickers{}).factory))
	t.Cleanup(s.Stop)

	cfg := DefaultConfig()
	cfg.Capture = true
	err := s.Start(context.Background(), nil, &cfg)
	assert.ErrorIs(t, err, capture.ErrNoSource)
	assert.Equal(t, StatusInactive, s.Status())
}

func TestCaptureHeldUntilStop(t *testing.T) {
	src := capture.NewFakeSource()
	s := New(src, WithTicker((&tickers{}).factory))
	t.Cleanup(s.Stop)

	cfg := DefaultConfig()
	cfg.Capture = true
	cfg.CaptureOptions = capture.Options{Device: 3}
	require.NoError(t, s.Start(context.Background(), testTarget, &cfg))
	assert.True(t, src.Held())
	assert.Equal(t, 3, src.LastOptions.Device)

	s.Stop()
	assert.False(t, src.Held())
	assert.Equal(t, 1, src.Released)

	// Restart reacquires.
	require.NoError(t, s.Start(context.Background(), testTarget, &cfg))
	assert.True(t, src.Held())
	s.Stop()
	assert.Equal(t, 2, src.Released)
}

func TestLoopDeliversToObserversInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, tk := newTestSimulator(t)
	var order []int
	got := make(chan Sample, 4)
	s.Subscribe(func(Sample) error { order = append(order, 1); return nil })
	s.Subscribe(func(sample Sample) error { order = append(order, 2); got <- sample; return nil })

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	tk.last().ch <- time.Now()
	first := <-got
	tk.last().ch <- time.Now()
	second := <-got

	assert.Equal(t, []int{1, 2, 1, 2}, order)
	assert.True(t, second.Timestamp.After(first.Timestamp))
	assert.Equal(t, second, s.CurrentSample())

	s.Stop()
	assert.Eventually(t, tk.last().stopped.Load, time.Second, time.Millisecond, "ticker must be stopped with the loop")
}

func TestFailingObserverDoesNotBlockOthers(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, tk := newTestSimulator(t, WithLogger(zap.New(core)))

	s.Subscribe(func(Sample) error { return errors.New("boom") })
	s.Subscribe(func(Sample) error { panic("observer exploded") })
	got := make(chan Sample, 10)
	s.Subscribe(func(sample Sample) error { got <- sample; return nil })

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	for i := 0; i < 5; i++ {
		tk.last().ch <- time.Now()
		<-got
	}
	s.Stop()

	assert.Equal(t, int64(10), s.ObserverErrors())
	assert.Equal(t, 10, logs.FilterMessage("observer failed").Len())
	assert.Equal(t, StatusInactive, s.Status())
}

func TestUnsubscribe(t *testing.T) {
	s, tk := newTestSimulator(t)

	var calls atomic.Int32
	sub := s.Subscribe(func(Sample) error { calls.Add(1); return nil })
	got := make(chan Sample, 10)
	s.Subscribe(func(sample Sample) error { got <- sample; return nil })

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	tk.last().ch <- time.Now()
	<-got

	sub.Unsubscribe()
	sub.Unsubscribe()
	tk.last().ch <- time.Now()
	<-got

	assert.Equal(t, int32(1), calls.Load())
}

func TestSubscriptionIDs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s, tk := newTestSimulator(t, WithLogger(zap.New(core)))

	first := s.Subscribe(func(Sample) error { return nil })
	second := s.Subscribe(func(Sample) error { return errors.New("boom") })
	got := make(chan Sample, 1)
	s.Subscribe(func(sample Sample) error { got <- sample; return nil })
	assert.Less(t, first.ID(), second.ID())

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	tk.last().ch <- time.Now()
	<-got

	entries := logs.FilterMessage("observer failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(second.ID()), entries[0].ContextMap()["observer"])
}

func TestStopFromObserver(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, tk := newTestSimulator(t)
	stopped := make(chan struct{})
	s.Subscribe(func(Sample) error {
		s.Stop()
		close(stopped)
		return nil
	})

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	tk.last().ch <- time.Now()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from inside an observer deadlocked")
	}
	assert.Equal(t, StatusInactive, s.Status())
	assert.Equal(t, int64(1), s.Ticks())
}

func TestStopFromAnotherGoroutineWhileDispatching(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, tk := newTestSimulator(t)

	var running, maxRunning, calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	s.Subscribe(func(Sample) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})
	later := make(chan Sample, 4)
	s.Subscribe(func(sample Sample) error { later <- sample; return nil })

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	tk.last().ch <- time.Now()
	<-entered

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on a running observer")
	}
	assert.Equal(t, StatusInactive, s.Status())

	require.NoError(t, s.Start(context.Background(), testTarget, nil))
	require.Equal(t, 2, tk.count())
	fed := make(chan struct{})
	go func() {
		tk.last().ch <- time.Now()
		close(fed)
	}()

	select {
	case sample := <-later:
		t.Fatalf("observer handed %+v before the stopped tick finished", sample)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), calls.Load(), "next tick ran while the previous observer was still running")

	close(release)
	select {
	case sample := <-later:
		assert.Equal(t, StatusTracking, sample.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("tick of the restarted run was never dispatched")
	}
	<-fed

	s.Stop()
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxRunning.Load(), "observers ran concurrently")
	assert.Empty(t, later, "no sample may be dispatched after Stop returns")
}

func TestRealTickerLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(nil, WithSeed(1))
	cfg := DefaultConfig()
	cfg.Interval = 5 * time.Millisecond

	got := make(chan Sample, 100)
	s.Subscribe(func(sample Sample) error {
		select {
		case got <- sample:
		default:
		}
		return nil
	})

	require.NoError(t, s.Start(context.Background(), testTarget, &cfg))
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatal("no sample from the real ticker")
		}
	}
	s.Stop()

	after := s.Ticks()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, s.Ticks(), "no tick may run after Stop returns")
}
