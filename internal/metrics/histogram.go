package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// LatencyWindow keeps the most recent latency samples of one endpoint so
// /health can report percentiles without querying Prometheus.
type LatencyWindow struct {
	mu      sync.Mutex
	samples []float64 // milliseconds
	maxSize int
}

// LatencySummary is a snapshot of a window, in milliseconds.
type LatencySummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	Max   float64 `json:"max_ms"`
}

// NewLatencyWindow creates a window holding at most maxSize samples.
func NewLatencyWindow(maxSize int) *LatencyWindow {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &LatencyWindow{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a sample, dropping the oldest fifth once the window is full.
func (w *LatencyWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, float64(d.Microseconds())/1000.0)
	if len(w.samples) > w.maxSize {
		w.samples = append(w.samples[:0], w.samples[w.maxSize/5:]...)
	}
}

// Summary returns count, mean, p50, p95 and max of the current samples.
func (w *LatencyWindow) Summary() LatencySummary {
	w.mu.Lock()
	sorted := make([]float64, len(w.samples))
	copy(sorted, w.samples)
	w.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return LatencySummary{
		Count: len(sorted),
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
