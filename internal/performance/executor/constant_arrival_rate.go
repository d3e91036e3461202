// Package executor drives iterations at a constant arrival rate.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/steadyrate/internal/config"
	"github.com/wesleyorama2/steadyrate/internal/performance/rate"
)

// Config contains the arrival-rate parameters.
type Config struct {
	// Rate is the number of iterations started per second
	Rate float64 `json:"rate"`

	// Duration is the scheduling window
	Duration time.Duration `json:"duration"`

	// PreAllocatedVUs are created before the first tick
	PreAllocatedVUs int `json:"preAllocatedVUs"`

	// MaxVUs bounds pool growth
	MaxVUs int `json:"maxVUs"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return errors.New("rate must be positive")
	}
	if c.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	if c.PreAllocatedVUs <= 0 {
		return errors.New("preAllocatedVUs must be positive")
	}
	if c.MaxVUs < c.PreAllocatedVUs {
		return fmt.Errorf("maxVUs (%d) must be >= preAllocatedVUs (%d)", c.MaxVUs, c.PreAllocatedVUs)
	}
	return nil
}

// IterationFunc runs one iteration on vu.
type IterationFunc func(ctx context.Context, vu *VirtualUser)

// Stats summarizes a finished run.
type Stats struct {
	StartTime time.Time     `json:"startTime"`
	Elapsed   time.Duration `json:"elapsed"`

	// Planned is ceil(rate * duration)
	Planned int64 `json:"planned"`
	// Issued ticks each started one iteration
	Issued int64 `json:"issued"`
	// Missed ticks were planned but not issued because the run was cancelled
	Missed int64 `json:"missed"`
	// Late ticks were issued behind their due time
	Late int64 `json:"late"`
	// Completed iterations returned before Run did
	Completed int64 `json:"completed"`

	PeakVUs      int           `json:"peakVUs"`
	MaxVUs       int           `json:"maxVUs"`
	TargetRate   float64       `json:"targetRate"`
	RealizedRate float64       `json:"realizedRate"`
	MaxLag       time.Duration `json:"maxLag"`
}

// ConstantArrivalRate maintains a fixed iteration rate (open model).
//
// Iterations are started at a constant rate regardless of how long each
// one takes. A pacer schedules the ticks and a pool of VUs executes them.
// When every VU is busy the pool grows up to MaxVUs; beyond that a tick
// waits for a VU to free up, however long that takes. Every slot due before
// the deadline is eventually issued; ticks are missed only when the parent
// context is cancelled.
//
// The run deadline only bounds which slots are scheduled. In-flight
// iterations run to completion and Run waits for them; only cancellation
// of the parent context interrupts them.
type ConstantArrivalRate struct {
	config Config
	logger zerolog.Logger
	onVUs  func(active, max int)

	pacer *rate.Pacer

	// VU pool management
	vuPool     chan *VirtualUser // Idle VUs ready to execute
	allVUs     []*VirtualUser
	currentVUs atomic.Int32
	vuPoolMu   sync.Mutex

	// State
	startTime time.Time
	issued    atomic.Int64
	completed atomic.Int64
	inFlight  atomic.Int32
	running   atomic.Bool
	startMu   sync.RWMutex

	wg sync.WaitGroup
}

// Option configures a ConstantArrivalRate.
type Option func(*ConstantArrivalRate)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *ConstantArrivalRate) {
		e.logger = logger
	}
}

// WithVUsCallback registers fn to be called whenever the pool grows.
func WithVUsCallback(fn func(active, max int)) Option {
	return func(e *ConstantArrivalRate) {
		e.onVUs = fn
	}
}

// NewConstantArrivalRate creates an executor for config.
func NewConstantArrivalRate(cfg Config, options ...Option) (*ConstantArrivalRate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}

	e := &ConstantArrivalRate{
		config: cfg,
		logger: zerolog.Nop(),
		pacer:  rate.NewPacer(cfg.Rate),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Run schedules iterations until every planned tick is issued or the
// duration elapses, then waits for in-flight iterations.
//
// The returned error is non-nil only when ctx was cancelled; Stats are
// valid in both cases.
func (e *ConstantArrivalRate) Run(ctx context.Context, fn IterationFunc) (Stats, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Stats{}, errors.New("executor is already running")
	}
	defer e.running.Store(false)

	planned := config.PlannedTicks(e.config.Rate, e.config.Duration)

	e.issued.Store(0)
	e.completed.Store(0)
	e.currentVUs.Store(0)
	e.vuPool = make(chan *VirtualUser, e.config.MaxVUs)
	e.allVUs = make([]*VirtualUser, 0, e.config.MaxVUs)

	// Pre-allocate VUs
	for i := 0; i < e.config.PreAllocatedVUs; i++ {
		e.vuPool <- e.spawnVU()
	}

	start := time.Now()
	e.startMu.Lock()
	e.startTime = start
	e.startMu.Unlock()
	e.pacer.Start(start)

	e.logger.Info().
		Str("component", "executor").
		Float64("rate", e.config.Rate).
		Dur("duration", e.config.Duration).
		Int64("planned", planned).
		Int("preAllocatedVUs", e.config.PreAllocatedVUs).
		Int("maxVUs", e.config.MaxVUs).
		Msg("starting constant arrival rate")

	e.schedule(ctx, start.Add(e.config.Duration), planned, fn)
	scheduled := time.Since(start)

	e.wg.Wait()

	stats := e.stats(planned, scheduled)
	if stats.Missed > 0 {
		e.logger.Warn().
			Str("component", "executor").
			Int64("missed", stats.Missed).
			Int("maxVUs", e.config.MaxVUs).
			Msg("run cancelled before all ticks were issued")
	}
	e.logger.Info().
		Str("component", "executor").
		Int64("issued", stats.Issued).
		Int64("completed", stats.Completed).
		Int("peakVUs", stats.PeakVUs).
		Float64("realizedRate", stats.RealizedRate).
		Msg("constant arrival rate finished")

	return stats, ctx.Err()
}

// schedule issues up to planned ticks, one iteration per tick. A slot due
// before deadline waits for its VU as long as ctx allows.
func (e *ConstantArrivalRate) schedule(ctx context.Context, deadline time.Time, planned int64, fn IterationFunc) {
	for slot := e.issued.Load(); slot < planned; slot = e.issued.Load() {
		if !e.pacer.DueTime(slot).Before(deadline) {
			return
		}
		if _, err := e.pacer.Wait(ctx); err != nil {
			return
		}

		vu := e.getVU(ctx)
		if vu == nil {
			return
		}

		e.issued.Add(1)
		e.inFlight.Add(1)
		e.wg.Add(1)
		go e.runIteration(ctx, vu, fn)
	}
}

// getVU takes an idle VU from the pool, spawning a new one if the pool is
// below MaxVUs. At MaxVUs it blocks until a VU is returned or ctx ends.
func (e *ConstantArrivalRate) getVU(ctx context.Context) *VirtualUser {
	select {
	case vu := <-e.vuPool:
		return vu
	default:
	}

	e.vuPoolMu.Lock()
	if int(e.currentVUs.Load()) < e.config.MaxVUs {
		vu := e.spawnVULocked()
		e.vuPoolMu.Unlock()
		return vu
	}
	e.vuPoolMu.Unlock()

	e.logger.Debug().
		Str("component", "executor").
		Int("maxVUs", e.config.MaxVUs).
		Msg("all VUs busy, waiting")

	select {
	case <-ctx.Done():
		return nil
	case vu := <-e.vuPool:
		return vu
	}
}

func (e *ConstantArrivalRate) spawnVU() *VirtualUser {
	e.vuPoolMu.Lock()
	defer e.vuPoolMu.Unlock()
	return e.spawnVULocked()
}

func (e *ConstantArrivalRate) spawnVULocked() *VirtualUser {
	vu := newVirtualUser(len(e.allVUs) + 1)
	e.allVUs = append(e.allVUs, vu)
	active := int(e.currentVUs.Add(1))

	e.logger.Debug().
		Str("component", "executor").
		Int("id", vu.ID).
		Int("vus", active).
		Msg("spawned VU")

	if e.onVUs != nil {
		e.onVUs(active, e.config.MaxVUs)
	}
	return vu
}

// runIteration runs a single iteration on a VU and returns it to the pool.
func (e *ConstantArrivalRate) runIteration(ctx context.Context, vu *VirtualUser, fn IterationFunc) {
	defer e.wg.Done()
	defer func() {
		e.inFlight.Add(-1)
		// the pool has room for every VU ever spawned
		e.vuPool <- vu
	}()

	vu.begin()
	fn(ctx, vu)
	vu.end()

	e.completed.Add(1)
}

func (e *ConstantArrivalRate) stats(planned int64, scheduled time.Duration) Stats {
	pacer := e.pacer.Stats()
	issued := e.issued.Load()

	window := e.config.Duration
	if scheduled > window {
		window = scheduled
	}

	e.startMu.RLock()
	start := e.startTime
	e.startMu.RUnlock()

	return Stats{
		StartTime:    start,
		Elapsed:      time.Since(start),
		Planned:      planned,
		Issued:       issued,
		Missed:       planned - issued,
		Late:         pacer.Late,
		Completed:    e.completed.Load(),
		PeakVUs:      int(e.currentVUs.Load()),
		MaxVUs:       e.config.MaxVUs,
		TargetRate:   e.config.Rate,
		RealizedRate: float64(issued) / window.Seconds(),
		MaxLag:       pacer.MaxLag,
	}
}

// Progress returns the elapsed share of the scheduling window (0.0 to 1.0).
func (e *ConstantArrivalRate) Progress() float64 {
	e.startMu.RLock()
	start := e.startTime
	e.startMu.RUnlock()

	if start.IsZero() {
		return 0
	}
	if !e.running.Load() {
		return 1.0
	}

	progress := float64(time.Since(start)) / float64(e.config.Duration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// Issued returns the number of ticks issued so far.
func (e *ConstantArrivalRate) Issued() int64 {
	return e.issued.Load()
}

// ActiveVUs returns the current pool size.
func (e *ConstantArrivalRate) ActiveVUs() int {
	return int(e.currentVUs.Load())
}

// InFlight returns the number of iterations currently running.
func (e *ConstantArrivalRate) InFlight() int {
	return int(e.inFlight.Load())
}
