// Package rate schedules iteration arrivals at a fixed rate.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Pacer hands out arrival slots at a constant rate.
//
// Slot i is due at start + i/rate. Due times are absolute, so a consumer
// that falls behind does not shift the rest of the schedule: overdue slots
// are released immediately, one per call, until the pacer has caught up.
// Over a window of length D a pacer therefore releases ceil(rate*D) slots.
//
// # Thread Safety
//
// Pacer is safe for concurrent use from multiple goroutines.
//
// # Example
//
//	p := NewPacer(10.0) // 10 arrivals per second
//	p.Start(time.Now())
//
//	for {
//	    if _, err := p.Wait(ctx); err != nil {
//	        break
//	    }
//	    // start an iteration
//	}
type Pacer struct {
	rate     float64
	interval time.Duration
	start    time.Time
	next     int64
	mu       sync.Mutex

	// Metrics
	released  atomic.Int64 // slots handed out
	late      atomic.Int64 // slots released after their due time
	totalWait atomic.Int64 // nanoseconds spent waiting
	maxLag    atomic.Int64 // worst release delay in nanoseconds
}

// lateTolerance is how far past its due time a slot may be released
// before it counts as late.
const lateTolerance = time.Millisecond

// NewPacer creates a pacer for rate arrivals per second. A non-positive
// rate defaults to 1.
func NewPacer(rate float64) *Pacer {
	if rate <= 0 {
		rate = 1.0
	}
	return &Pacer{
		rate:     rate,
		interval: time.Duration(float64(time.Second) / rate),
	}
}

// Start anchors slot 0 at t and resets all counters.
func (p *Pacer) Start(t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.start = t
	p.next = 0
	p.released.Store(0)
	p.late.Store(0)
	p.totalWait.Store(0)
	p.maxLag.Store(0)
}

// Rate returns the target arrival rate.
func (p *Pacer) Rate() float64 {
	return p.rate
}

// Interval returns the spacing between two slots.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Next reserves the next slot and returns its index and due time. The
// due time may be in the past when the caller is behind schedule.
//
// A pacer that was never started is anchored at the first call.
func (p *Pacer) Next() (int64, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.start.IsZero() {
		p.start = time.Now()
	}

	slot := p.next
	p.next++
	return slot, p.dueLocked(slot)
}

// DueTime returns when slot is due.
func (p *Pacer) DueTime(slot int64) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dueLocked(slot)
}

func (p *Pacer) dueLocked(slot int64) time.Time {
	// computed from the slot index to keep rounding error from accumulating
	offset := time.Duration(float64(slot) * float64(time.Second) / p.rate)
	return p.start.Add(offset)
}

// Wait blocks until the next slot is due and returns its index.
//
// Returns:
//   - the slot index and nil when the slot is due
//   - ctx.Err() if the context ends first; the reserved slot is not counted
//     as released
func (p *Pacer) Wait(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	slot, due := p.Next()

	wait := time.Until(due)
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return slot, ctx.Err()
		case <-timer.C:
		}
		p.totalWait.Add(int64(wait))
	} else if lag := -wait; lag > lateTolerance {
		p.late.Add(1)
		p.recordLag(lag)
	}

	p.released.Add(1)
	return slot, nil
}

func (p *Pacer) recordLag(lag time.Duration) {
	for {
		current := p.maxLag.Load()
		if int64(lag) <= current || p.maxLag.CompareAndSwap(current, int64(lag)) {
			return
		}
	}
}

// Stats returns statistics about the pacer's operation.
func (p *Pacer) Stats() PacerStats {
	return PacerStats{
		Rate:      p.rate,
		Released:  p.released.Load(),
		Late:      p.late.Load(),
		TotalWait: time.Duration(p.totalWait.Load()),
		MaxLag:    time.Duration(p.maxLag.Load()),
	}
}

// PacerStats contains statistics about the pacer.
type PacerStats struct {
	Rate      float64       `json:"rate"`      // Target arrivals per second
	Released  int64         `json:"released"`  // Slots handed out
	Late      int64         `json:"late"`      // Slots released behind schedule
	TotalWait time.Duration `json:"totalWait"` // Total time spent waiting
	MaxLag    time.Duration `json:"maxLag"`    // Worst delay behind schedule
}
