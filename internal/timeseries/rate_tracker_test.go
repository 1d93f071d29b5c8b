package timeseries

import (
	"math"
	"sync"
	"testing"
	"time"
)

// mockClock provides deterministic time for testing.
type mockClock struct {
	mu   sync.Mutex
	time time.Time
}

func newMockClock(t time.Time) *mockClock {
	return &mockClock{time: t}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = c.time.Add(d)
}

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRateTracker_Add(t *testing.T) {
	tests := []struct {
		name string
		adds []int64
		want int64
	}{
		{"single", []int64{1}, 1},
		{"several", []int64{1, 1, 1}, 3},
		{"zero ignored", []int64{1, 0, 2}, 3},
		{"negative ignored", []int64{2, -1}, 2},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewRateTrackerWithClock(newMockClock(baseTime))
			for _, n := range tt.adds {
				tracker.Add(n)
			}
			if got := tracker.GetStats().Total; got != tt.want {
				t.Errorf("Total = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateTracker_ConstantRate(t *testing.T) {
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	// One game every two seconds for ten minutes: 30 games/minute.
	for i := 0; i < 600; i++ {
		clock.Advance(time.Second)
		if i%2 == 1 {
			tracker.Add(1)
		}
		tracker.RecordSample()
	}

	stats := tracker.GetStats()
	if stats.Total != 300 {
		t.Fatalf("Total = %d, want 300", stats.Total)
	}
	for name, got := range map[string]float64{
		"PerMinute1m": stats.PerMinute1m,
		"PerMinute5m": stats.PerMinute5m,
		"Overall":     stats.Overall,
	} {
		if math.Abs(got-30) > 0.5 {
			t.Errorf("%s = %.2f, want ~30", name, got)
		}
	}
}

func TestRateTracker_ShortHistoryUsesOldestSample(t *testing.T) {
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	tracker.Add(5)
	clock.Advance(30 * time.Second)
	tracker.RecordSample()

	stats := tracker.GetStats()
	// 5 games over half a minute, regardless of window length.
	if !approx(stats.PerMinute1m, 10) || !approx(stats.PerMinute5m, 10) {
		t.Errorf("rates = %v/%v, want 10/10", stats.PerMinute1m, stats.PerMinute5m)
	}
}

func TestRateTracker_SlowdownShowsInShortWindow(t *testing.T) {
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	// Four minutes at 60/min, then one idle minute.
	for i := 0; i < 240; i++ {
		clock.Advance(time.Second)
		tracker.Add(1)
		tracker.RecordSample()
	}
	for i := 0; i < 60; i++ {
		clock.Advance(time.Second)
		tracker.RecordSample()
	}

	stats := tracker.GetStats()
	if stats.PerMinute1m != 0 {
		t.Errorf("PerMinute1m = %v, want 0 after an idle minute", stats.PerMinute1m)
	}
	if stats.PerMinute5m < 40 {
		t.Errorf("PerMinute5m = %v, want the slowdown diluted (>= 40)", stats.PerMinute5m)
	}
}

func TestRateTracker_RingBufferOverflow(t *testing.T) {
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	for i := 0; i < ringBufferSize*2; i++ {
		clock.Advance(time.Second)
		tracker.RecordSample()
	}
	if got := tracker.SampleCount(); got != ringBufferSize {
		t.Errorf("SampleCount() = %d, want %d", got, ringBufferSize)
	}
}

func TestRateTracker_ConcurrentAddAndRead(t *testing.T) {
	clock := newMockClock(baseTime)
	tracker := NewRateTrackerWithClock(clock)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tracker.Add(1)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			clock.Advance(time.Second)
			tracker.RecordSample()
			_ = tracker.GetStats()
		}
	}()
	wg.Wait()

	if got := tracker.GetStats().Total; got != 800 {
		t.Errorf("Total = %d, want 800", got)
	}
}

func BenchmarkRateTracker_Add(b *testing.B) {
	tracker := NewRateTracker()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tracker.Add(1)
	}
}
