// Package session owns one measurement from calibration to report. Exactly
// one session is active per engine: the session holds the resolved camera
// constant, the immutable scale factor, and the active point-collection
// machine, and nothing else may touch them. Changing distance or
// calibration means ending the session and starting another.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaushik-Ravi/dendro/internal/calibrate"
	"github.com/Kaushik-Ravi/dendro/internal/capture"
	"github.com/Kaushik-Ravi/dendro/internal/model"
	"github.com/Kaushik-Ravi/dendro/internal/protocol"
	"github.com/Kaushik-Ravi/dendro/internal/scale"
	"github.com/Kaushik-Ravi/dendro/internal/sensor"
	"github.com/Kaushik-Ravi/dendro/internal/tolerance"
	"github.com/Kaushik-Ravi/dendro/internal/vision"
)

var (
	// ErrSessionActive reports a Start while another session holds the
	// engine.
	ErrSessionActive = errors.New("a measurement session is already active")

	// ErrSessionEnded reports an operation on a session that was ended.
	ErrSessionEnded = errors.New("session has ended")

	// ErrNotFailed reports a Resubmit outside the submit-failed phase.
	ErrNotFailed = errors.New("no failed submission to retry")

	// ErrRetryExhausted reports a second resubmission; the service contract
	// allows exactly one.
	ErrRetryExhausted = errors.New("the single resubmission was already used")
)

// Phase is where a session currently stands.
type Phase int

const (
	PhaseCollecting Phase = iota
	PhaseSubmitFailed
	PhaseComplete
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseSubmitFailed:
		return "submit_failed"
	case PhaseComplete:
		return "complete"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Store is the persistence slice the engine uses: calibration reads for
// evidence gathering, plus the writes the session decides to make.
type Store interface {
	calibrate.Store
	PutConstant(deviceID string, value float64, source model.CalibrationSource) error
	PutFOVRatio(deviceID string, ratio float64, source model.CalibrationSource) error
	SaveMeasurement(m *model.Measurement) error
}

// Delineator is the slice of the vision client the session consumes.
type Delineator interface {
	Delineate(ctx context.Context, r *vision.Request) (*vision.Response, error)
}

// Engine produces sessions and enforces that only one runs at a time.
type Engine struct {
	cfg    *model.Config
	store  Store
	vision Delineator
	prober sensor.IntrinsicsProber
	log    *zap.Logger

	mu     sync.Mutex
	active *Session
}

// NewEngine wires the engine. store and prober may be nil; calibration then
// simply has fewer tiers to draw on.
func NewEngine(cfg *model.Config, st Store, vc Delineator, prober sensor.IntrinsicsProber, log *zap.Logger) *Engine {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, store: st, vision: vc, prober: prober, log: log}
}

// Options describe the measurement to start.
type Options struct {
	SubjectID string
	DistanceM float64
	Photo     *capture.Photo
	Protocol  protocol.Protocol
}

// Start resolves calibration, derives the scale factor, and opens the
// point-collection machine. It fails fast on a second concurrent session.
func (e *Engine) Start(ctx context.Context, opts Options) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return nil, ErrSessionActive
	}
	if opts.Photo == nil {
		return nil, errors.New("session requires a loaded photo")
	}

	constant, ev := e.resolveCalibration(ctx, opts)
	sf, err := scale.Compute(opts.DistanceM, constant, opts.Photo.Width, opts.Photo.Height)
	if err != nil {
		return nil, fmt.Errorf("derive scale factor: %w", err)
	}

	var machine *protocol.Machine
	switch opts.Protocol {
	case protocol.ProtocolManual:
		machine, err = protocol.NewManual(e.cfg.Protocol, opts.Photo.Width, opts.Photo.Height)
	default:
		machine, err = protocol.NewAssisted(e.cfg.Protocol, opts.Photo.Width, opts.Photo.Height)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		engine:    e,
		opts:      opts,
		constant:  constant,
		scale:     sf,
		machine:   machine,
		estimator: tolerance.NewEstimator(e.cfg.Tolerance),
		phase:     PhaseCollecting,
	}
	e.active = s
	e.log.Info("session started",
		zap.String("id", s.ID),
		zap.String("subject", opts.SubjectID),
		zap.String("protocol", opts.Protocol.String()),
		zap.String("calibration", constant.Source.String()),
		zap.Bool("low_confidence", constant.LowConfidence),
		zap.Float64("scale_mm_px", sf.MMPerPixel),
		zap.Bool("had_stored", ev.Stored != nil))
	return s, nil
}

// resolveCalibration gathers the evidence, runs the best-effort probe when
// the field-of-view tier would otherwise be empty, and resolves. Tier 2 and
// 3 results are persisted here; resolution itself stays pure.
func (e *Engine) resolveCalibration(ctx context.Context, opts Options) (model.CameraConstant, *model.CalibrationEvidence) {
	deviceID := e.cfg.DeviceID
	ev := calibrate.GatherEvidence(e.store, deviceID, opts.SubjectID, opts.Photo.Meta, opts.Photo.Width, opts.Photo.Height)

	if ev.Stored == nil && ev.FOVRatio == nil && e.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout())
		hfov, err := e.prober.Probe(probeCtx)
		cancel()
		switch {
		case err != nil:
			// Best effort only; the next tier covers it.
			e.log.Debug("intrinsics probe skipped", zap.Error(err))
		default:
			if r, rerr := calibrate.RatioFromHFOV(hfov); rerr == nil {
				ev.FOVRatio = &r
				if e.store != nil && deviceID != "" {
					if perr := e.store.PutFOVRatio(deviceID, r, model.SourceFOVRatio); perr != nil {
						e.log.Warn("persisting probed FOV ratio", zap.Error(perr))
					}
				}
			}
		}
	}

	constant := calibrate.NewResolver(e.cfg.Calibration).Resolve(ev)
	if e.store != nil && deviceID != "" {
		switch constant.Source {
		case model.SourceMetadata, model.SourceFOVRatio:
			if err := e.store.PutConstant(deviceID, constant.Value, constant.Source); err != nil {
				e.log.Warn("persisting resolved constant", zap.Error(err))
			}
		}
	}
	return constant, ev
}

func (e *Engine) probeTimeout() time.Duration {
	if t := e.cfg.Calibration.ProbeTimeout; t > 0 {
		return t
	}
	return model.DefaultConfig().Calibration.ProbeTimeout
}

// Active returns the running session, if any.
func (e *Engine) Active() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == s {
		e.active = nil
	}
}

// Result is the session outcome handed to the operator.
type Result struct {
	Report      model.Report
	Measurement *model.Measurement
	OverlayPNG  []byte

	// GuideRowPx is the service-suggested breast-height row, for annotation
	// when the operator never set a guide themselves. Zero means none.
	GuideRowPx float64
}

// Session is one in-flight measurement.
type Session struct {
	ID string

	engine    *Engine
	opts      Options
	constant  model.CameraConstant
	scale     model.ScaleFactor
	machine   *protocol.Machine
	estimator *tolerance.Estimator

	mu       sync.Mutex
	phase    Phase
	attempts int
	result   *Result
}

// Machine exposes the point-collection state machine. The session stays the
// sole owner; callers drive it but never replace it.
func (s *Session) Machine() *protocol.Machine { return s.machine }

// Constant returns the resolved camera constant.
func (s *Session) Constant() model.CameraConstant { return s.constant }

// Scale returns the session's immutable scale factor.
func (s *Session) Scale() model.ScaleFactor { return s.scale }

// Phase reports where the session stands.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Submit hands the completed point set to the delineation service and turns
// the response into metrics with tolerances. On failure the point set is
// retained and the session moves to the submit-failed phase; Resubmit may
// then be used exactly once.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseCollecting:
		return s.submitLocked(ctx)
	case PhaseSubmitFailed:
		if s.attempts >= 2 {
			return nil, ErrRetryExhausted
		}
		return s.submitLocked(ctx)
	case PhaseComplete:
		return s.result, nil
	default:
		return nil, ErrSessionEnded
	}
}

// Resubmit retries a failed submission with the retained point set. The
// service contract allows one manual retry; further failures end in the
// operator starting over.
func (s *Session) Resubmit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseSubmitFailed {
		return nil, ErrNotFailed
	}
	if s.attempts >= 2 {
		return nil, ErrRetryExhausted
	}
	return s.submitLocked(ctx)
}

func (s *Session) submitLocked(ctx context.Context) (*Result, error) {
	points, err := s.machine.Handoff()
	if err != nil {
		return nil, err
	}
	s.attempts++
	resp, err := s.engine.vision.Delineate(ctx, &vision.Request{
		SubjectID:   s.opts.SubjectID,
		Points:      points.Points,
		ScaleMMPx:   s.scale.MMPerPixel,
		ImageWidth:  s.opts.Photo.Width,
		ImageHeight: s.opts.Photo.Height,
		Protocol:    s.machine.Protocol().String(),
	})
	if err != nil {
		s.phase = PhaseSubmitFailed
		s.engine.log.Warn("delineation failed, point set retained",
			zap.String("session", s.ID), zap.Int("attempt", s.attempts), zap.Error(err))
		return nil, err
	}

	s.result = s.buildResult(resp)
	s.phase = PhaseComplete
	return s.result, nil
}

// buildResult assembles metrics, carbon, and tolerances from the service
// response. Carbon stays absent when its inputs are non-positive; the
// tolerance estimator likewise degrades to unavailable rather than zero.
func (s *Session) buildResult(resp *vision.Response) *Result {
	metrics := model.Metrics{
		HeightM: model.Float(resp.HeightM),
		CanopyM: model.Float(resp.CanopyM),
		GirthM:  model.Float(resp.GirthM),
	}
	if est, err := s.estimator.Carbon(resp.HeightM, resp.GirthM); err == nil {
		metrics.BiomassKg = model.Float(est.BiomassKg)
		metrics.CarbonKg = model.Float(est.CarbonKg)
		metrics.CO2eKg = model.Float(est.CO2eKg)
	}
	tol := s.estimator.Estimate(metrics, s.scale)

	report := model.Report{
		Subject:     s.opts.SubjectID,
		Photo:       s.opts.Photo.Path,
		Protocol:    s.machine.Protocol().String(),
		MeasuredAt:  time.Now().UTC(),
		DistanceM:   s.opts.DistanceM,
		Calibration: s.constant,
		ScaleMMPx:   s.scale.MMPerPixel,
		Metrics:     metrics,
		Tolerances:  tol,
	}
	if s.constant.LowConfidence {
		report.Warnings = append(report.Warnings,
			"calibration fell back to a generic camera constant; treat dimensions as rough estimates")
	}

	var m *model.Measurement
	if s.opts.SubjectID != "" {
		m = &model.Measurement{
			ID:        s.ID,
			SubjectID: s.opts.SubjectID,
			HeightM:   resp.HeightM,
			CanopyM:   resp.CanopyM,
			GirthM:    resp.GirthM,
			ScaleMMPx: s.scale.MMPerPixel,
			DistanceM: s.opts.DistanceM,
			MaxDimPx:  s.opts.Photo.MaxDim(),
			Source:    s.constant.Source,
			CreatedAt: report.MeasuredAt,
		}
		if metrics.CO2eKg != nil {
			m.CO2eKg = *metrics.CO2eKg
		}
	}
	return &Result{Report: report, Measurement: m, OverlayPNG: resp.OverlayPNG, GuideRowPx: resp.GuideRowPx}
}

// Save persists the completed measurement so later sessions on the same
// subject can reverse-derive calibration from it.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseComplete || s.result == nil || s.result.Measurement == nil {
		return errors.New("nothing to save: session has no completed measurement")
	}
	if s.engine.store == nil {
		return errors.New("no store configured")
	}
	return s.engine.store.SaveMeasurement(s.result.Measurement)
}

// End releases the engine for the next session and clears the protocol
// state. It is safe to call at any phase and more than once; an operator
// cancel is just an early End.
func (s *Session) End() {
	s.mu.Lock()
	s.phase = PhaseEnded
	s.machine = nil
	s.result = nil
	s.mu.Unlock()
	s.engine.release(s)
}
