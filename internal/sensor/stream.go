package sensor

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/stat"

	"github.com/Kaushik-Ravi/dendro/internal/model"
)

// AngleLock is a non-blocking snapshot of the smoothed angle, taken at the
// moment the operator locks a sighting.
type AngleLock struct {
	Degrees   float64
	JitterDeg float64
	At        time.Time
	Samples   int
}

// Stream turns a Source into one continuously updated smoothed angle.
// Samples arriving above the configured rate are dropped, not queued; an
// exponential moving average damps hand shake, and the spread of the recent
// raw samples is reported as jitter.
type Stream struct {
	src     Source
	alpha   float64
	window  int
	limiter *rate.Limiter
	log     *zap.Logger

	mu      sync.RWMutex
	current Sample
	recent  []float64
	count   int
	feedErr error

	startMu   sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewStream wraps src with smoothing, jitter tracking, and rate capping.
// Unset tunables take the defaults.
func NewStream(src Source, cfg model.SensorConfig, log *zap.Logger) *Stream {
	def := model.DefaultConfig().Sensor
	if cfg.SmoothingAlpha <= 0 || cfg.SmoothingAlpha > 1 {
		cfg.SmoothingAlpha = def.SmoothingAlpha
	}
	if cfg.JitterWindow <= 1 {
		cfg.JitterWindow = def.JitterWindow
	}
	if cfg.MaxUpdateHz <= 0 {
		cfg.MaxUpdateHz = def.MaxUpdateHz
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{
		src:     src,
		alpha:   cfg.SmoothingAlpha,
		window:  cfg.JitterWindow,
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxUpdateHz), 1),
		log:     log,
	}
}

// Start begins consuming the source. Cancelling ctx, or calling Stop, closes
// the source and so unblocks any pending read: the handle is released on
// every exit path.
func (s *Stream) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.done != nil {
		return ErrStreamRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		<-ctx.Done()
		s.closeSource()
	}()
	go s.run(ctx)
	return nil
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)
	for {
		sample, err := s.src.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				s.log.Warn("orientation feed ended", zap.Error(err))
				s.mu.Lock()
				s.feedErr = err
				s.mu.Unlock()
			}
			return
		}
		if !s.limiter.Allow() {
			continue
		}
		s.accept(sample)
	}
}

func (s *Stream) accept(raw Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		s.current = raw
	} else {
		s.current = Sample{
			AngleDeg: s.alpha*raw.AngleDeg + (1-s.alpha)*s.current.AngleDeg,
			At:       raw.At,
		}
	}
	s.recent = append(s.recent, raw.AngleDeg)
	if len(s.recent) > s.window {
		s.recent = s.recent[1:]
	}
	s.count++
}

// Current returns the latest smoothed sample; ok is false before the first
// sample arrives.
func (s *Stream) Current() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.count > 0
}

// Jitter is the standard deviation of the recent raw samples, in degrees.
func (s *Stream) Jitter() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jitterLocked()
}

func (s *Stream) jitterLocked() float64 {
	if len(s.recent) < 2 {
		return 0
	}
	return stat.StdDev(s.recent, nil)
}

// Lock snapshots the smoothed angle without blocking. It fails only before
// the first sample.
func (s *Stream) Lock() (AngleLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.count == 0 {
		return AngleLock{}, ErrNoSignal
	}
	return AngleLock{
		Degrees:   s.current.AngleDeg,
		JitterDeg: s.jitterLocked(),
		At:        s.current.At,
		Samples:   s.count,
	}, nil
}

// Err reports why the feed ended, if it ended on its own.
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedErr
}

// Done is closed when the consuming goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	return s.done
}

// Stop cancels consumption, closes the source, and waits for the consuming
// goroutine to exit. Safe to call more than once; the last smoothed value
// remains readable.
func (s *Stream) Stop() {
	s.startMu.Lock()
	cancel, done := s.cancel, s.done
	s.startMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.closeSource()
	<-done
}

func (s *Stream) closeSource() {
	s.closeOnce.Do(func() {
		if err := s.src.Close(); err != nil {
			s.log.Debug("closing orientation source", zap.Error(err))
		}
	})
}
