package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const meterWindow = 10 * time.Second

type meterSample struct {
	at    time.Time
	bytes int64
}

// Meter tracks transfer throughput over a sliding window and derives an
// ETA from the current rate. Rates reflect only recent activity, so a
// resumed upload does not inherit speed from before the pause.
type Meter struct {
	mu      sync.Mutex
	samples []meterSample
	now     func() time.Time
}

// NewMeter returns a meter with an empty window.
func NewMeter() *Meter {
	return &Meter{now: time.Now}
}

// Record notes that n bytes were acknowledged.
func (m *Meter) Record(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.samples = append(m.samples, meterSample{at: now, bytes: n})
	m.trim(now)
}

// Reset clears the window. Call on pause so stale samples do not skew
// the rate after resume.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
}

// BytesPerSecond returns the current transfer rate, or 0 when the
// window holds no activity.
func (m *Meter) BytesPerSecond() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.trim(now)
	if len(m.samples) == 0 {
		return 0
	}

	var total int64
	for _, sample := range m.samples {
		total += sample.bytes
	}
	elapsed := now.Sub(m.samples[0].at)
	if elapsed <= 0 {
		elapsed = time.Second
	}
	return float64(total) / elapsed.Seconds()
}

// ETA estimates time to move the remaining bytes at the current rate.
// The second return is false when no rate is available yet.
func (m *Meter) ETA(remaining int64) (time.Duration, bool) {
	if remaining <= 0 {
		return 0, true
	}
	rate := m.BytesPerSecond()
	if rate <= 0 {
		return 0, false
	}
	seconds := float64(remaining) / rate
	return time.Duration(seconds * float64(time.Second)), true
}

// Describe renders a human-readable rate and ETA line for progress
// messages, reporting "unknown" until a rate is available.
func (m *Meter) Describe(remaining int64) string {
	rate := m.BytesPerSecond()
	if rate <= 0 {
		return "speed unknown, ETA unknown"
	}
	eta, ok := m.ETA(remaining)
	if !ok {
		return fmt.Sprintf("%s/s, ETA unknown", humanize.Bytes(uint64(rate)))
	}
	return fmt.Sprintf("%s/s, ETA %s", humanize.Bytes(uint64(rate)), eta.Round(time.Second))
}

func (m *Meter) trim(now time.Time) {
	cutoff := now.Add(-meterWindow)
	idx := 0
	for idx < len(m.samples) && m.samples[idx].at.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		m.samples = append([]meterSample(nil), m.samples[idx:]...)
	}
}
