package attention

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/attention-sensor/internal/capture"
)

// Rand is the random source used for gaze, score and load jitter.
// *rand.Rand from math/rand and math/rand/v2 both satisfy it.
type Rand interface {
	Float64() float64
}

// Ticker drives the update loop. It matches the shape of *time.Ticker so
// tests can substitute a hand-fed channel.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures a Simulator at construction.
type Option func(*Simulator)

// WithConfig replaces the defaults used when Start is called with a nil config.
func WithConfig(cfg Config) Option {
	return func(s *Simulator) { s.defaults = cfg }
}

// WithRand injects the random source.
func WithRand(r Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

// WithSeed uses a deterministic PCG source seeded with seed.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) { s.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithClock injects the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithTicker injects the ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(s *Simulator) { s.newTicker = newTicker }
}

// WithLogger sets the logger used for observer and release failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// run is the state of one Start..Stop cycle of the loop goroutine.
type run struct {
	cancel      context.CancelFunc
	done        chan struct{}
	dispatching atomic.Bool
}

// Simulator produces a stream of attention samples on a fixed interval.
//
// Observers are called synchronously on the loop goroutine, in registration
// order. A slow observer delays the next tick, so observers must not block;
// hand work off to another goroutine instead.
type Simulator struct {
	source    capture.Source
	logger    *zap.Logger
	now       func() time.Time
	newTicker func(time.Duration) Ticker
	defaults  Config

	// mu serializes Start, Stop and the tick body.
	mu            sync.Mutex
	rng           Rand
	status        Status
	cfg           Config
	target        *Rect
	history       *Window
	prevScore     float64
	prevAttentive bool
	lastStamp     time.Time
	handle        capture.Handle
	run           *run

	current atomic.Pointer[Sample]

	obsMu     sync.RWMutex
	observers []*Subscription
	nextID    int

	// turn is held by a loop for one tick and its dispatch, so ticks of
	// consecutive runs never overlap.
	turn chan struct{}

	ticks          atomic.Int64
	observerErrors atomic.Int64
}

// New creates an inactive simulator. source may be nil when no
// configuration requests a capture resource.
func New(source capture.Source, opts ...Option) *Simulator {
	s := &Simulator{
		source:    source,
		logger:    zap.NewNop(),
		now:       time.Now,
		newTicker: newTimeTicker,
		defaults:  DefaultConfig(),
		status:    StatusInactive,
		turn:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.cfg = s.defaults
	s.prevScore = s.defaults.InitialScore
	initial := s.defaults.InactiveSample()
	s.current.Store(&initial)
	return s
}

// Start binds target (nil for none) and begins ticking. A nil cfg uses the
// simulator defaults. Capture failures are returned as *capture.Error and
// leave the simulator inactive. Start is a no-op while already tracking.
func (s *Simulator) Start(ctx context.Context, target *Rect, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusTracking {
		return nil
	}

	c := s.defaults
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid simulator config: %w", err)
	}

	if c.Capture {
		h, err := s.acquire(ctx, c.CaptureOptions)
		if err != nil {
			s.logger.Warn("capture acquire failed", zap.Error(err))
			return err
		}
		s.handle = h
	}

	seed := c.InitialScore
	if c.CarryScore && s.ticks.Load() > 0 {
		seed = s.current.Load().Score
	}

	s.cfg = c
	s.target = nil
	if target != nil {
		t := *target
		s.target = &t
	}
	s.history = NewWindow(c.HistorySize)
	s.prevScore = seed
	s.prevAttentive = true
	s.status = StatusTracking

	now := s.stamp(s.now())
	base := c.Viewport.Center()
	if s.target != nil {
		base = s.target.Center()
	}
	s.current.Store(&Sample{
		Score:          seed,
		FocusStability: 1,
		Gaze:           base,
		Timestamp:      now,
		Status:         StatusTracking,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{})}
	s.run = r
	go s.loop(runCtx, r, s.newTicker(c.Interval))

	s.logger.Info("tracking started",
		zap.Duration("interval", c.Interval),
		zap.Int("history_size", c.HistorySize),
		zap.Bool("target_bound", s.target != nil),
		zap.Bool("capture", s.handle != nil))
	return nil
}

func (s *Simulator) acquire(ctx context.Context, opts capture.Options) (capture.Handle, error) {
	if s.source == nil {
		return nil, &capture.Error{Source: "none", Op: "acquire", Err: capture.ErrNoSource}
	}
	h, err := s.source.Acquire(ctx, opts)
	if err != nil {
		var cerr *capture.Error
		if !errors.As(err, &cerr) {
			err = &capture.Error{Source: s.source.Name(), Op: "acquire", Err: err}
		}
		return nil, err
	}
	return h, nil
}

// Stop cancels the loop, releases the capture handle and clears the target.
// No tick mutates state after Stop returns and no observer is handed a
// sample after it. Stop waits for the loop goroutine to exit unless
// observers are being dispatched, so it is safe to call from inside an
// observer; an observer call already in progress runs to completion, and
// the next run does not tick until it has. Stop is a no-op when not
// tracking.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.status != StatusTracking {
		s.mu.Unlock()
		return
	}

	r := s.run
	s.run = nil
	r.cancel()

	if s.handle != nil {
		if err := s.source.Release(s.handle); err != nil {
			s.logger.Warn("capture release failed", zap.Error(err))
		}
		s.handle = nil
	}
	s.target = nil
	s.status = StatusInactive

	last := *s.current.Load()
	last.Status = StatusInactive
	s.current.Store(&last)
	s.mu.Unlock()

	s.logger.Info("tracking stopped", zap.Int64("ticks", s.ticks.Load()))

	if !r.dispatching.Load() {
		<-r.done
	}
}

// Close stops the simulator. It satisfies io.Closer for deferred teardown.
func (s *Simulator) Close() error {
	s.Stop()
	return nil
}

// CurrentSample returns the latest sample without blocking.
func (s *Simulator) CurrentSample() Sample {
	return *s.current.Load()
}

// Status returns the tracking state.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// HistoryLen returns the number of scores in the stability window.
func (s *Simulator) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return 0
	}
	return s.history.Len()
}

// Config returns the configuration of the current (or last) tracking session.
func (s *Simulator) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Ticks returns the number of ticks executed since construction.
func (s *Simulator) Ticks() int64 {
	return s.ticks.Load()
}

// ObserverErrors returns the number of observer failures caught so far.
func (s *Simulator) ObserverErrors() int64 {
	return s.observerErrors.Load()
}

func (s *Simulator) loop(ctx context.Context, r *run, t Ticker) {
	defer close(r.done)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if !s.advance(ctx, r) {
				return
			}
		}
	}
}

// advance runs one tick and its dispatch while holding the turn.
func (s *Simulator) advance(ctx context.Context, r *run) bool {
	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	defer func() { <-s.turn }()

	sample, ok := s.tick(ctx)
	if !ok {
		return false
	}
	s.dispatch(ctx, r, sample)
	return true
}

// tick runs one update under the lifecycle lock. It reports false when the
// run was cancelled while waiting for the lock.
func (s *Simulator) tick(ctx context.Context) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || s.status != StatusTracking {
		return Sample{}, false
	}
	sample := s.step(s.now())
	s.current.Store(&sample)
	s.ticks.Add(1)
	return sample, true
}

// step is the update algorithm. Caller holds mu.
func (s *Simulator) step(now time.Time) Sample {
	c := s.cfg

	gaze := s.gaze()
	attentive := s.target != nil && s.target.Contains(gaze)

	var score float64
	if attentive {
		score = clamp01(s.prevScore + c.AttentiveGain + s.rng.Float64()*c.AttentiveJitter)
	} else {
		score = clamp01(s.prevScore - c.DistractedLoss - s.rng.Float64()*c.DistractedJitter)
	}
	s.prevScore = score
	s.prevAttentive = attentive

	s.history.Push(score)
	stability := s.history.Stability(c.StabilityGain)
	load := clamp01(c.LoadBase + s.rng.Float64()*c.LoadJitter)

	return Sample{
		Score:          score,
		FocusStability: stability,
		CognitiveLoad:  load,
		Gaze:           gaze,
		Timestamp:      s.stamp(now),
		Status:         StatusTracking,
	}
}

// gaze synthesizes the next gaze point. Caller holds mu.
func (s *Simulator) gaze() Point {
	c := s.cfg
	if s.target == nil {
		return s.jitter(c.Viewport.Center())
	}
	if s.prevAttentive && s.rng.Float64() < c.TargetHitProbability {
		return s.jitter(s.target.Center())
	}
	return Point{
		X: c.Viewport.X + s.rng.Float64()*c.Viewport.Width,
		Y: c.Viewport.Y + s.rng.Float64()*c.Viewport.Height,
	}
}

func (s *Simulator) jitter(p Point) Point {
	j := s.cfg.GazeJitter
	return Point{
		X: p.X + (s.rng.Float64()*2-1)*j,
		Y: p.Y + (s.rng.Float64()*2-1)*j,
	}
}

// stamp returns now, bumped past the previous timestamp if the clock did
// not advance. Caller holds mu.
func (s *Simulator) stamp(now time.Time) time.Time {
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Nanosecond)
	}
	s.lastStamp = now
	return now
}

func (s *Simulator) dispatch(ctx context.Context, r *run, sample Sample) {
	s.obsMu.RLock()
	subs := slices.Clone(s.observers)
	s.obsMu.RUnlock()

	r.dispatching.Store(true)
	defer r.dispatching.Store(false)

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		if sub.cancelled.Load() {
			continue
		}
		if err := sub.notify(sample); err != nil {
			s.observerErrors.Add(1)
			s.logger.Warn("observer failed", zap.Int("observer", sub.id), zap.Error(err))
		}
	}
}
