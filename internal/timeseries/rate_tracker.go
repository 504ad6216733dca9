// Package timeseries provides time-windowed event rate tracking.
//
// A RateTracker follows a cumulative event count (server counter lines)
// and computes rolling averages over 1s, 10s and 60s windows.
//
// Thread-safe: Add() and Set() are atomic, Stats() acquires a read lock.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringBufferSize is the number of samples to retain (2 minutes at 1 sample/sec)
	ringBufferSize = 120

	// Window durations for rolling averages
	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock interface for testing with deterministic time.
type Clock interface {
	Now() time.Time
}

// realClock uses time.Now() for production.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// sample is a point-in-time snapshot of the cumulative count.
type sample struct {
	timestamp time.Time
	count     int64
}

// RateTracker tracks a cumulative event count and computes rolling rates.
//
// Usage:
//
//	tracker := NewRateTracker()
//	tracker.Set(progress.WellFormed())  // or Add(n) per event
//	tracker.RecordSample()              // once per second
//	st := tracker.Stats()
type RateTracker struct {
	total atomic.Int64

	samples  []sample
	writeIdx int
	peak1s   float64
	mu       sync.RWMutex

	startTime time.Time
	clock     Clock
}

// RateStats contains computed rates (events per second) at a point in time.
type RateStats struct {
	Total int64

	Avg1s  float64
	Avg10s float64
	Avg60s float64

	// AvgOverall is total / time since start.
	AvgOverall float64

	// Peak1s is the highest 1s rate seen at any RecordSample.
	Peak1s float64
}

// NewRateTracker creates a new tracker with real clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with custom clock for testing.
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

// Add adds n events to the cumulative total. Non-positive n is ignored.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// Set replaces the cumulative total with an externally counted value.
// The total never moves backwards.
func (t *RateTracker) Set(total int64) {
	for {
		cur := t.total.Load()
		if total <= cur || t.total.CompareAndSwap(cur, total) {
			return
		}
	}
}

// RecordSample records the current total with a timestamp and updates
// the 1s peak.
func (t *RateTracker) RecordSample() {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	s := sample{timestamp: now, count: current}
	if len(t.samples) < ringBufferSize {
		t.samples = append(t.samples, s)
	} else {
		t.samples[t.writeIdx] = s
		t.writeIdx = (t.writeIdx + 1) % ringBufferSize
	}

	if r := t.avgOverWindow(now, current, window1s); r > t.peak1s {
		t.peak1s = r
	}
}

// Stats computes and returns current rate statistics.
func (t *RateTracker) Stats() RateStats {
	now := t.clock.Now()
	current := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	st := RateStats{
		Total:  current,
		Peak1s: t.peak1s,
	}
	if elapsed := now.Sub(t.startTime).Seconds(); elapsed > 0 {
		st.AvgOverall = float64(current) / elapsed
	}
	st.Avg1s = t.avgOverWindow(now, current, window1s)
	st.Avg10s = t.avgOverWindow(now, current, window10s)
	st.Avg60s = t.avgOverWindow(now, current, window60s)
	return st
}

// avgOverWindow returns events/sec between the newest sample at or before
// now-window (or the oldest sample) and now.
// Must be called with mu held.
func (t *RateTracker) avgOverWindow(now time.Time, current int64, window time.Duration) float64 {
	if len(t.samples) == 0 {
		return 0
	}
	target := now.Add(-window)

	var best *sample
	for i := range t.samples {
		s := &t.samples[i]
		if s.timestamp.After(target) {
			continue
		}
		if best == nil || s.timestamp.After(best.timestamp) {
			best = s
		}
	}
	if best == nil {
		best = t.oldestSample()
	}

	elapsed := now.Sub(best.timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(current-best.count) / elapsed
}

// oldestSample returns the oldest sample in the ring buffer.
// Must be called with mu held.
func (t *RateTracker) oldestSample() *sample {
	if len(t.samples) < ringBufferSize {
		return &t.samples[0]
	}
	return &t.samples[t.writeIdx]
}

// Reset clears all data and restarts tracking.
func (t *RateTracker) Reset() {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total.Store(0)
	t.samples = append(t.samples[:0], sample{timestamp: now})
	t.writeIdx = 0
	t.peak1s = 0
	t.startTime = now
}

// SampleCount returns the number of samples in the ring buffer.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
