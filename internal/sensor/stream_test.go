package sensor

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

func streamCfg(alpha float64, hz float64) model.SensorConfig {
	cfg := model.DefaultConfig().Sensor
	cfg.SmoothingAlpha = alpha
	cfg.MaxUpdateHz = hz
	return cfg
}

func TestStreamSmoothsAndTracksJitter(t *testing.T) {
	src := NewReplaySource([]float64{10, 20, 30}, time.Millisecond)
	s := NewStream(src, streamCfg(0.5, 10000), nil)

	if _, err := s.Lock(); !errors.Is(err, ErrNoSignal) {
		t.Fatalf("lock before start = %v, want ErrNoSignal", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-s.Done()

	lock, err := s.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	// EMA with alpha 0.5: 10, then 15, then 22.5.
	if math.Abs(lock.Degrees-22.5) > 1e-9 {
		t.Errorf("smoothed angle = %v, want 22.5", lock.Degrees)
	}
	// Sample standard deviation of {10, 20, 30}.
	if math.Abs(lock.JitterDeg-10) > 1e-9 {
		t.Errorf("jitter = %v, want 10", lock.JitterDeg)
	}
	if lock.Samples != 3 {
		t.Errorf("samples = %d, want 3", lock.Samples)
	}
	if s.Err() != nil {
		t.Errorf("replay exhaustion should not record a feed error, got %v", s.Err())
	}
}

func TestStreamDropsOverRateSamples(t *testing.T) {
	angles := make([]float64, 50)
	for i := range angles {
		angles[i] = float64(i)
	}
	src := NewReplaySource(angles, 0)
	s := NewStream(src, streamCfg(0.25, 1), nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-s.Done()

	lock, err := s.Lock()
	if err != nil {
		t.Fatal(err)
	}
	if lock.Samples != 1 {
		t.Errorf("accepted samples = %d, want 1 with a 1 Hz cap over an instant burst", lock.Samples)
	}
	if lock.Degrees != 0 {
		t.Errorf("smoothed angle = %v, want the first sample", lock.Degrees)
	}
}

// blockingSource stalls Next until Close, standing in for a feed with no
// traffic.
type blockingSource struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

func newBlockingSource() *blockingSource {
	return &blockingSource{ch: make(chan struct{})}
}

func (b *blockingSource) Next() (Sample, error) {
	<-b.ch
	return Sample{}, io.EOF
}

func (b *blockingSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.ch)
	}
	return nil
}

func (b *blockingSource) wasClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func TestStreamStopReleasesBlockedSource(t *testing.T) {
	src := newBlockingSource()
	s := NewStream(src, streamCfg(0.25, 30), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not unblock the pending read")
	}
	if !src.wasClosed() {
		t.Error("source handle was not released")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrStreamRunning) {
		t.Errorf("restart error = %v, want ErrStreamRunning (streams are single use)", err)
	}
}

func TestStreamParentCancelReleasesSource(t *testing.T) {
	src := newBlockingSource()
	s := NewStream(src, streamCfg(0.25, 30), nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelling the parent context did not end the stream")
	}
	if !src.wasClosed() {
		t.Error("source handle was not released on context cancel")
	}
}

func TestReplaySourceExhaustion(t *testing.T) {
	src := NewReplaySource([]float64{1.5}, 0)
	s1, err := src.Next()
	if err != nil || s1.AngleDeg != 1.5 {
		t.Fatalf("Next = %v, %v, want 1.5", s1.AngleDeg, err)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("exhausted replay error = %v, want io.EOF", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, err := src.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("closed replay error = %v, want io.EOF", err)
	}
}
