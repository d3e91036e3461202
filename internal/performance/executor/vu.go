package executor

import (
	"sync/atomic"
	"time"
)

// VirtualUser is one logical worker in the pool. A VU runs at most one
// iteration at a time; the pool hands it to exactly one tick.
type VirtualUser struct {
	// ID is unique within a run, starting at 1
	ID int

	iteration     atomic.Int64
	lastIterStart atomic.Int64 // unix nanos
	lastIterEnd   atomic.Int64 // unix nanos
}

func newVirtualUser(id int) *VirtualUser {
	return &VirtualUser{ID: id}
}

// Iterations returns how many iterations this VU has started.
func (vu *VirtualUser) Iterations() int64 {
	return vu.iteration.Load()
}

// LastIterationDuration returns the duration of the most recently
// finished iteration, or 0 if none finished yet.
func (vu *VirtualUser) LastIterationDuration() time.Duration {
	start, end := vu.lastIterStart.Load(), vu.lastIterEnd.Load()
	if start == 0 || end < start {
		return 0
	}
	return time.Duration(end - start)
}

func (vu *VirtualUser) begin() {
	vu.iteration.Add(1)
	vu.lastIterStart.Store(time.Now().UnixNano())
}

func (vu *VirtualUser) end() {
	vu.lastIterEnd.Store(time.Now().UnixNano())
}
