// Package timeseries tracks finished-game throughput over rolling windows.
//
// Add() is lock-free; RecordSample() is called from a periodic ticker and
// GetStats() from the TUI or metrics updater.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (5 minutes at 1 sample/sec)
	ringBufferSize = 300

	window1m = 1 * time.Minute
	window5m = 5 * time.Minute
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample is a point-in-time copy of the cumulative game count.
type sample struct {
	timestamp time.Time
	games     int64
}

// RateTracker counts finished games and reports games per minute.
//
//	tracker := NewRateTracker()
//	tracker.Add(1)           // per finished game
//	tracker.RecordSample()   // every second
//	rates := tracker.GetStats()
type RateTracker struct {
	total atomic.Int64

	samples  []sample
	writeIdx int
	mu       sync.RWMutex

	startTime time.Time
	clock     Clock
}

// RateStats are games-per-minute figures at a point in time.
type RateStats struct {
	Total int64

	PerMinute1m float64
	PerMinute5m float64
	Overall     float64
}

// NewRateTracker creates a tracker on the wall clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with a custom clock for testing.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	t := &RateTracker{
		samples:   make([]sample, 0, ringBufferSize),
		startTime: now,
		clock:     clock,
	}
	t.samples = append(t.samples, sample{timestamp: now})
	return t
}

// Add counts n finished games. Non-positive n is ignored.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// RecordSample stores the current total in the ring buffer.
func (t *RateTracker) RecordSample() {
	s := sample{timestamp: t.clock.Now(), games: t.total.Load()}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
		return
	}
	t.samples[t.writeIdx] = s
	t.writeIdx = (t.writeIdx + 1) % ringBufferSize
}

// GetStats computes the current rates. Windows longer than the recorded
// history fall back to the oldest sample, so rates appear immediately.
func (t *RateTracker) GetStats() RateStats {
	now := t.clock.Now()
	total := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := RateStats{Total: total}
	if elapsed := now.Sub(t.startTime); elapsed > 0 {
		stats.Overall = float64(total) / elapsed.Minutes()
	}
	stats.PerMinute1m = t.rateOverWindow(now, total, window1m)
	stats.PerMinute5m = t.rateOverWindow(now, total, window5m)
	return stats
}

// rateOverWindow must be called with mu held.
func (t *RateTracker) rateOverWindow(now time.Time, total int64, window time.Duration) float64 {
	target := now.Add(-window)

	// Closest sample at or before target.
	var best *sample
	var bestDiff time.Duration = -1
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(target) {
			continue
		}
		diff := target.Sub(s.timestamp)
		if bestDiff < 0 || diff < bestDiff {
			best = s
			bestDiff = diff
		}
	}
	if best == nil {
		best = t.oldestSample()
	}
	if best == nil {
		return 0
	}

	elapsed := now.Sub(best.timestamp)
	if elapsed <= 0 {
		return 0
	}
	return float64(total-best.games) / elapsed.Minutes()
}

// oldestSample must be called with mu held.
func (t *RateTracker) oldestSample() *sample {
	if len(t.samples) == 0 {
		return nil
	}
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// SampleCount returns the number of samples in the ring buffer.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
