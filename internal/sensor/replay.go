package sensor

import (
	"io"
	"sync"
	"time"
)

// ReplaySource plays recorded angles back at a fixed cadence. It stands in
// for the live feed in tests and demos and reports io.EOF when exhausted.
type ReplaySource struct {
	interval time.Duration

	mu     sync.Mutex
	angles []float64
	idx    int
	closed bool
}

// NewReplaySource builds a source over the given angles. A zero interval
// replays as fast as the consumer reads.
func NewReplaySource(angles []float64, interval time.Duration) *ReplaySource {
	copied := make([]float64, len(angles))
	copy(copied, angles)
	return &ReplaySource{angles: copied, interval: interval}
}

func (r *ReplaySource) Next() (Sample, error) {
	if r.interval > 0 {
		time.Sleep(r.interval)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.idx >= len(r.angles) {
		return Sample{}, io.EOF
	}
	angle := r.angles[r.idx]
	r.idx++
	return Sample{AngleDeg: angle, At: time.Now()}, nil
}

func (r *ReplaySource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
